package payment

import (
	"context"
	"time"

	"github.com/xenking/merchant-billing/internal/money"
)

// Result is the outcome of a gateway call.
type Result struct {
	Success   bool
	Reference string
	Message   string
	Params    map[string]string
	Test      bool
}

// Options is the merchant context passed along with every gateway call.
type Options struct {
	Customer   string
	CustomerID string
	Merchant   string
	MerchantID string
	Email      string
	Payable    Payable
	// Number is the invoice number, OrderNumber the order's.
	Number      string
	OrderNumber string
	Currency    string
	IP          string

	BillingAddress  map[string]string
	ShippingAddress map[string]string

	// Amount overrides the amount of credit calls.
	Amount *money.Money
	Extra  map[string]string
}

// Merge overlays the non-empty fields of extra on o.
func (o Options) Merge(extra Options) Options {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&o.Customer, extra.Customer)
	set(&o.CustomerID, extra.CustomerID)
	set(&o.Merchant, extra.Merchant)
	set(&o.MerchantID, extra.MerchantID)
	set(&o.Email, extra.Email)
	set(&o.Number, extra.Number)
	set(&o.OrderNumber, extra.OrderNumber)
	set(&o.Currency, extra.Currency)
	set(&o.IP, extra.IP)
	if extra.Payable.ID != "" {
		o.Payable = extra.Payable
	}
	if extra.BillingAddress != nil {
		o.BillingAddress = extra.BillingAddress
	}
	if extra.ShippingAddress != nil {
		o.ShippingAddress = extra.ShippingAddress
	}
	if extra.Amount != nil {
		o.Amount = extra.Amount
	}
	if len(extra.Extra) > 0 {
		merged := make(map[string]string, len(o.Extra)+len(extra.Extra))
		for k, v := range o.Extra {
			merged[k] = v
		}
		for k, v := range extra.Extra {
			merged[k] = v
		}
		o.Extra = merged
	}
	return o
}

// Gateway is a payment processor. Errors returned by a Gateway are recorded
// as failed payments and never reach callers of the billing operations.
type Gateway interface {
	Authorize(ctx context.Context, amount money.Money, instrument Instrument, opts Options) (Result, error)
	Capture(ctx context.Context, amount money.Money, reference string, opts Options) (Result, error)
	Purchase(ctx context.Context, amount money.Money, instrument Instrument, opts Options) (Result, error)
	Void(ctx context.Context, reference string, opts Options) (Result, error)
	Credit(ctx context.Context, amount money.Money, reference string, opts Options) (Result, error)
	Transfer(ctx context.Context, amount money.Money, destination string, opts Options) (Result, error)
	TestMode() bool
}

// Schedule describes a recurring billing profile.
type Schedule struct {
	// Periodicity is the billing interval, e.g. "monthly".
	Periodicity string
	Occurrences int
	StartsAt    time.Time
}

// RecurringGateway is implemented by gateways that can set up recurring
// billing profiles.
type RecurringGateway interface {
	Gateway
	Recurring(ctx context.Context, amount money.Money, instrument Instrument, schedule Schedule, opts Options) (Result, error)
}

// Instrument is whatever is tendered for a payment.
type Instrument interface {
	InstrumentType() string
}

// Destination is an instrument money can be transferred to.
type Destination interface {
	Instrument
	DestinationAccount() string
}

const (
	TypeCreditCard = "credit_card"
	TypeAccount    = "account"
)

// CreditCard is a card instrument.
type CreditCard struct {
	Number            string
	Month             int
	Year              int
	FirstName         string
	LastName          string
	VerificationValue string
	Brand             string
}

// InstrumentType returns TypeCreditCard.
func (*CreditCard) InstrumentType() string { return TypeCreditCard }

// Account is a payee account identified by e.g. an email address.
type Account struct {
	ID string
}

var _ Destination = (*Account)(nil)

// InstrumentType returns TypeAccount.
func (*Account) InstrumentType() string       { return TypeAccount }
// DestinationAccount returns the account ID.
func (a *Account) DestinationAccount() string { return a.ID }
