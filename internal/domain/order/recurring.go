package order

import (
	"context"

	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/domain/sellable"
)

// Recurring sets up a recurring billing profile charging the order total
// per cycle. The profile is recorded as a payment of the order; on success
// the order moves to pending.
func (s *Service) Recurring(ctx context.Context, o *Order, instrument payment.Instrument, schedule payment.Schedule, opts payment.Options) (*payment.Payment, error) {
	if o.Kind != KindPurchase {
		return nil, &RecurringPaymentError{OrderNumber: o.Number, Reason: "not a purchase order"}
	}
	s.before(ctx, OperationRecurring, o)
	if err := s.BuildAddresses(o); err != nil {
		return nil, err
	}

	pay, err := s.processor.Recurring(ctx, o.Payable(), o.Gross, instrument, schedule, o.Options(opts))
	if err != nil {
		return nil, err
	}
	o.Payments, _ = payment.Append(o.Payments, pay)

	if pay.Success {
		err = s.fireAll(o, []Event{EventProcessPayment})
	}
	if saveErr := s.save(ctx, o); saveErr != nil {
		err = saveErr
	}
	s.after(ctx, OperationRecurring, o, pay)
	return pay, err
}

// PayRecurring charges the next cycle of the recurring profile identified
// by reference, the latest profile if empty. Extra sellables are billed on
// the new invoice only.
func (s *Service) PayRecurring(ctx context.Context, o *Order, reference string, extra []sellable.Sellable, opts payment.Options) (*payment.Payment, error) {
	return s.cycle(ctx, OperationPayRecurring, o, reference, extra, opts, s.invoices.Purchase, invoice.EventPaymentPaid)
}

// AuthorizeRecurring authorizes the next cycle of a recurring profile. See
// PayRecurring.
func (s *Service) AuthorizeRecurring(ctx context.Context, o *Order, reference string, extra []sellable.Sellable, opts payment.Options) (*payment.Payment, error) {
	return s.cycle(ctx, OperationAuthorizeRecurring, o, reference, extra, opts, s.invoices.Authorize, invoice.EventPaymentAuthorized)
}

type instrumentCall func(ctx context.Context, inv *invoice.Invoice, instrument payment.Instrument, opts payment.Options) (*payment.Payment, error)

func (s *Service) cycle(
	ctx context.Context,
	op Operation,
	o *Order,
	reference string,
	extra []sellable.Sellable,
	opts payment.Options,
	call instrumentCall,
	success invoice.Event,
) (*payment.Payment, error) {
	profile := o.RecurringProfile(reference)
	if profile == nil {
		return nil, &RecurringPaymentError{OrderNumber: o.Number, Reason: "no recurring profile"}
	}
	if o.Status != StatusPending {
		return nil, &RecurringPaymentError{OrderNumber: o.Number, Reason: "order is " + string(o.Status)}
	}
	if profile.Occurrences > 0 && o.PaidInvoices() >= profile.Occurrences {
		return nil, &RecurringPaymentError{OrderNumber: o.Number, Reason: "occurrences exhausted"}
	}

	s.before(ctx, op, o)
	inv := s.openInvoice(o, success)
	if inv == nil {
		items := make([]*lineitem.LineItem, 0, len(extra))
		for _, sb := range extra {
			if sellable.Missing(sb) {
				return nil, ErrMissingSellable
			}
			li := lineitem.New(sb)
			if err := s.calc.Evaluate(ctx, li, o.Addresses.Origin, o.Destination()); err != nil {
				return nil, err
			}
			items = append(items, li)
		}
		var err error
		if inv, err = s.BuildInvoice(ctx, o, items...); err != nil {
			return nil, err
		}
	}

	instrument := &payment.Profile{Reference: profile.Reference, Type: profile.PaymentType}
	return s.run(ctx, op, o, inv, opts, func(ctx context.Context, inv *invoice.Invoice, opts payment.Options) (*payment.Payment, error) {
		return call(ctx, inv, instrument, opts)
	}, nil)
}

// RecurringProfile returns the successful recurring payment whose ID or
// reference matches reference, or the latest one if reference is empty.
func (o *Order) RecurringProfile(reference string) *payment.Payment {
	for i := len(o.Payments) - 1; i >= 0; i-- {
		p := &o.Payments[i]
		if p.Action != payment.ActionRecurring || !p.Success {
			continue
		}
		if reference == "" || p.ID == reference || p.Reference == reference {
			return p
		}
	}
	return nil
}
