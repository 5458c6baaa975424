package invoice

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/payment"
)

// Service runs payments against invoices and moves them through their
// lifecycle. It does not persist: callers save the owning order.
type Service struct {
	processor *payment.Processor
	calc      *lineitem.Calculator
	machine   *Machine
	now       func() time.Time
}

// NewService creates an invoice Service.
func NewService(processor *payment.Processor, calc *lineitem.Calculator, hooks Hooks) *Service {
	s := &Service{
		processor: processor,
		calc:      calc,
		now:       time.Now,
	}
	s.machine = NewMachine(hooks, func() time.Time { return s.now() })
	return s
}

// Machine returns the invoice state machine.
func (s *Service) Machine() *Machine {
	return s.machine
}

// Fire applies event to inv.
func (s *Service) Fire(inv *Invoice, event Event) error {
	return s.machine.Fire(inv, event)
}

// Evaluate recalculates line items and totals of a pending invoice against
// its own addresses.
func (s *Service) Evaluate(ctx context.Context, inv *Invoice) error {
	if inv.Status != StatusPending {
		return errors.Wrapf(ErrInvoiceLocked, "invoice %s is %s", inv.Number, inv.Status)
	}
	destination := inv.Addresses.Shipping
	if destination == nil {
		destination = inv.Addresses.Billing
	}
	if err := s.calc.EvaluateAll(ctx, inv.LineItems, inv.Addresses.Origin, destination); err != nil {
		return errors.Wrapf(err, "evaluate invoice %s", inv.Number)
	}
	return inv.Totals()
}

// Authorize places a hold of the gross total on instrument.
func (s *Service) Authorize(ctx context.Context, inv *Invoice, instrument payment.Instrument, opts payment.Options) (*payment.Payment, error) {
	if inv.Kind != KindPurchase {
		return nil, errors.Wrap(ErrUnsupportedOperation, "authorize")
	}
	pay, err := s.processor.Authorize(ctx, inv.Payable(), inv.Gross, instrument, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentAuthorized)
}

// Purchase charges the gross total to instrument.
func (s *Service) Purchase(ctx context.Context, inv *Invoice, instrument payment.Instrument, opts payment.Options) (*payment.Payment, error) {
	if inv.Kind != KindPurchase {
		return nil, errors.Wrap(ErrUnsupportedOperation, "purchase")
	}
	pay, err := s.processor.Purchase(ctx, inv.Payable(), inv.Gross, instrument, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentPaid)
}

// Capture charges the gross total against the authorization. It returns
// nil without calling the gateway if the invoice has no authorization.
func (s *Service) Capture(ctx context.Context, inv *Invoice, opts payment.Options) (*payment.Payment, error) {
	auth := inv.Authorization()
	if auth == nil {
		return nil, nil
	}
	pay, err := s.processor.Capture(ctx, inv.Payable(), inv.Gross, auth, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentCaptured)
}

// Void releases the authorization. It returns nil if there is none.
func (s *Service) Void(ctx context.Context, inv *Invoice, opts payment.Options) (*payment.Payment, error) {
	auth := inv.Authorization()
	if auth == nil {
		return nil, nil
	}
	pay, err := s.processor.Void(ctx, inv.Payable(), inv.Gross, auth, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentVoided)
}

// Credit refunds opts.Amount, or the gross total, through the
// authorization. It returns nil if there is none.
func (s *Service) Credit(ctx context.Context, inv *Invoice, opts payment.Options) (*payment.Payment, error) {
	auth := inv.Authorization()
	if auth == nil {
		return nil, nil
	}
	amount := inv.Gross
	if opts.Amount != nil {
		amount = *opts.Amount
	}
	pay, err := s.processor.Credit(ctx, inv.Payable(), amount, auth, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentRefunded)
}

// Cash pays the gross total of a sales invoice out to destination.
func (s *Service) Cash(ctx context.Context, inv *Invoice, destination payment.Destination, opts payment.Options) (*payment.Payment, error) {
	if inv.Kind != KindSales {
		return nil, errors.Wrap(ErrUnsupportedOperation, "cash")
	}
	pay, err := s.processor.Transfer(ctx, inv.Payable(), inv.Gross, destination, inv.Options(opts))
	if err != nil {
		return nil, err
	}
	return s.record(ctx, inv, pay, EventPaymentPaid)
}

// record appends pay to the invoice history and fires success or
// transaction_declined. A declined payment the status has no decline
// transition for leaves the invoice as is. A rejected success transition is
// returned together with the recorded payment.
func (s *Service) record(ctx context.Context, inv *Invoice, pay *payment.Payment, success Event) (*payment.Payment, error) {
	inv.Payments, _ = payment.Append(inv.Payments, pay)

	event := success
	from := inv.Status
	if !pay.Success {
		event = EventTransactionDeclined
		if !s.machine.Can(inv, event) {
			zctx.From(ctx).Warn("Declined payment keeps invoice status",
				zap.String("invoice", inv.Number),
				zap.String("action", string(pay.Action)),
				zap.String("status", string(from)),
			)
			return pay, nil
		}
	}
	if err := s.machine.Fire(inv, event); err != nil {
		zctx.From(ctx).Warn("Invoice transition rejected",
			zap.String("invoice", inv.Number),
			zap.String("event", string(event)),
			zap.String("status", string(from)),
		)
		return pay, errors.Wrapf(err, "invoice %s", inv.Number)
	}
	zctx.From(ctx).Debug("Invoice transition",
		zap.String("invoice", inv.Number),
		zap.String("from", string(from)),
		zap.String("to", string(inv.Status)),
	)
	return pay, nil
}
