// Package bogus implements a deterministic in-process payment gateway for
// tests and demos.
//
// Card numbers decide the outcome: "1" succeeds, "2" is declined, anything
// else fails with an error. Calls referring to an earlier authorization
// invert this: reference "1" fails with an error, "2" is declined and any
// other reference succeeds.
package bogus

import (
	"context"
	"regexp"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/money"
)

// Authorization is the reference of every successful authorization.
const Authorization = "53433"

const (
	SuccessMessage = "Bogus Gateway: Forced success"
	FailureMessage = "Bogus Gateway: Forced failure"
	ErrorMessage   = "Bogus Gateway: Use CreditCard number 1 for success, 2 for exception and anything else for error"

	CaptureErrorMessage  = "Bogus Gateway: Use authorization number 1 for exception, 2 for error and anything else for success"
	TransferFailAccount  = "fail@error.tst"
	TransferErrorAccount = "error@error.tst"
)

var (
	// ErrGateway is returned for inputs outside the scripted outcomes.
	ErrGateway = errors.New(ErrorMessage)
	// ErrReference is returned for reference "1".
	ErrReference = errors.New(CaptureErrorMessage)
)

var emailPattern = regexp.MustCompile(`(?i)^[\w-]+(?:\.[\w-]+)*@(?:[\w-]+\.)+[a-z]{2,7}$`)

// Gateway is the bogus gateway. The zero value is ready to use.
type Gateway struct{}

var _ payment.RecurringGateway = (*Gateway)(nil)

// New creates a Gateway.
func New() *Gateway {
	return &Gateway{}
}

// TestMode reports true: the gateway never moves money.
func (*Gateway) TestMode() bool { return true }

// Authorize scripts an authorization by card number.
func (g *Gateway) Authorize(_ context.Context, amount money.Money, instrument payment.Instrument, _ payment.Options) (payment.Result, error) {
	return byInstrument(instrument, Authorization, map[string]string{"authorized_amount": cents(amount)})
}

// Purchase scripts a purchase by card number.
func (g *Gateway) Purchase(_ context.Context, amount money.Money, instrument payment.Instrument, _ payment.Options) (payment.Result, error) {
	return byInstrument(instrument, Authorization, map[string]string{"paid_amount": cents(amount)})
}

// Recurring scripts setting up a recurring profile by card number.
func (g *Gateway) Recurring(_ context.Context, amount money.Money, instrument payment.Instrument, schedule payment.Schedule, _ payment.Options) (payment.Result, error) {
	return byInstrument(instrument, Authorization, map[string]string{
		"amount":      cents(amount),
		"periodicity": schedule.Periodicity,
		"occurrences": strconv.Itoa(schedule.Occurrences),
	})
}

// Capture scripts a capture by authorization reference.
func (g *Gateway) Capture(_ context.Context, amount money.Money, reference string, _ payment.Options) (payment.Result, error) {
	return byReference(reference, map[string]string{"paid_amount": cents(amount)})
}

// Void scripts a void by authorization reference.
func (g *Gateway) Void(_ context.Context, reference string, _ payment.Options) (payment.Result, error) {
	return byReference(reference, map[string]string{"authorization": reference})
}

// Credit scripts a refund by authorization reference.
func (g *Gateway) Credit(_ context.Context, amount money.Money, reference string, _ payment.Options) (payment.Result, error) {
	return byReference(reference, map[string]string{"paid_amount": cents(amount)})
}

// Transfer succeeds for any valid email destination except the fail and
// error accounts.
func (g *Gateway) Transfer(_ context.Context, amount money.Money, destination string, _ payment.Options) (payment.Result, error) {
	switch {
	case destination == TransferFailAccount:
		return payment.Result{
			Message: FailureMessage,
			Params:  map[string]string{"paid_amount": cents(amount), "error": FailureMessage},
			Test:    true,
		}, nil
	case destination == TransferErrorAccount, !emailPattern.MatchString(destination):
		return payment.Result{}, ErrGateway
	default:
		return payment.Result{
			Success: true,
			Message: SuccessMessage,
			Params:  map[string]string{"paid_amount": cents(amount)},
			Test:    true,
		}, nil
	}
}

// byInstrument scripts calls tendering an instrument. Stored recurring
// profiles follow the reference rules.
func byInstrument(instrument payment.Instrument, reference string, params map[string]string) (payment.Result, error) {
	var number string
	switch v := instrument.(type) {
	case *payment.CreditCard:
		number = v.Number
	case *payment.Profile:
		return byReference(v.Reference, params)
	default:
		return payment.Result{}, ErrGateway
	}

	switch number {
	case "1":
		return payment.Result{Success: true, Reference: reference, Message: SuccessMessage, Params: params, Test: true}, nil
	case "2":
		params["error"] = FailureMessage
		return payment.Result{Message: FailureMessage, Params: params, Test: true}, nil
	default:
		return payment.Result{}, ErrGateway
	}
}

func byReference(reference string, params map[string]string) (payment.Result, error) {
	switch reference {
	case "1":
		return payment.Result{}, ErrReference
	case "2":
		params["error"] = FailureMessage
		return payment.Result{Message: FailureMessage, Params: params, Test: true}, nil
	default:
		return payment.Result{Success: true, Reference: reference, Message: SuccessMessage, Params: params, Test: true}, nil
	}
}

func cents(m money.Money) string {
	return strconv.FormatInt(m.Amount, 10)
}
