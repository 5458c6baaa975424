package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/payment"
)

// Operation names an order-level payment operation.
type Operation string

const (
	OperationAuthorize          Operation = "authorize"
	OperationCapture            Operation = "capture"
	OperationPay                Operation = "pay"
	OperationVoid               Operation = "void"
	OperationRefund             Operation = "refund"
	OperationCash               Operation = "cash"
	OperationRecurring          Operation = "recurring"
	OperationPayRecurring       Operation = "pay_recurring"
	OperationAuthorizeRecurring Operation = "authorize_recurring"
)

// PaymentListener is implemented by buyers of purchase orders and sellers
// of sales orders that want to observe payment operations. AfterPayment
// receives nil when no payment was attempted.
type PaymentListener interface {
	BeforePayment(ctx context.Context, op Operation, o *Order)
	AfterPayment(ctx context.Context, op Operation, o *Order, p *payment.Payment)
}

// invoiceCall runs one payment against an invoice.
type invoiceCall func(ctx context.Context, inv *invoice.Invoice, opts payment.Options) (*payment.Payment, error)

// Authorize places a hold of the order total on instrument. On success the
// order moves to pending.
func (s *Service) Authorize(ctx context.Context, o *Order, instrument payment.Instrument, opts payment.Options) (*payment.Payment, error) {
	return s.settle(ctx, OperationAuthorize, o, opts, func(ctx context.Context, inv *invoice.Invoice, opts payment.Options) (*payment.Payment, error) {
		return s.invoices.Authorize(ctx, inv, instrument, opts)
	}, invoice.EventPaymentAuthorized, EventProcessPayment)
}

// Pay charges the order total to instrument. On success the order moves
// to approved.
func (s *Service) Pay(ctx context.Context, o *Order, instrument payment.Instrument, opts payment.Options) (*payment.Payment, error) {
	return s.settle(ctx, OperationPay, o, opts, func(ctx context.Context, inv *invoice.Invoice, opts payment.Options) (*payment.Payment, error) {
		return s.invoices.Purchase(ctx, inv, instrument, opts)
	}, invoice.EventPaymentPaid, EventProcessPayment, EventApprovePayment)
}

// Cash pays the total of a sales order out to destination. On success the
// order moves to approved.
func (s *Service) Cash(ctx context.Context, o *Order, destination payment.Destination, opts payment.Options) (*payment.Payment, error) {
	if o.Kind != KindSales {
		return nil, errors.Wrap(invoice.ErrUnsupportedOperation, "cash")
	}
	return s.settle(ctx, OperationCash, o, opts, func(ctx context.Context, inv *invoice.Invoice, opts payment.Options) (*payment.Payment, error) {
		return s.invoices.Cash(ctx, inv, destination, opts)
	}, invoice.EventPaymentPaid, EventProcessPayment, EventApprovePayment)
}

// Capture charges the authorization of the last invoice. On success the
// order moves to approved. It returns nil if there is nothing to capture.
func (s *Service) Capture(ctx context.Context, o *Order, opts payment.Options) (*payment.Payment, error) {
	return s.followUp(ctx, OperationCapture, o, opts, s.invoices.Capture, EventApprovePayment)
}

// Void releases the authorization of the last invoice. On success the order
// is canceled. It returns nil if there is nothing to void.
func (s *Service) Void(ctx context.Context, o *Order, opts payment.Options) (*payment.Payment, error) {
	return s.followUp(ctx, OperationVoid, o, opts, s.invoices.Void, EventCancel)
}

// Refund credits the last invoice if it is paid. On success the order moves
// to refunded, which requires it to be returned first. It returns nil if
// there is nothing to refund.
func (s *Service) Refund(ctx context.Context, o *Order, opts payment.Options) (*payment.Payment, error) {
	inv := o.LastInvoice()
	if inv == nil || inv.Status != invoice.StatusPaid {
		return nil, nil
	}
	return s.followUp(ctx, OperationRefund, o, opts, s.invoices.Credit, EventRefund)
}

// settle runs an invoice payment that settles the open invoice, building
// addresses and the invoice first. success is the invoice event a
// successful call fires.
func (s *Service) settle(
	ctx context.Context,
	op Operation,
	o *Order,
	opts payment.Options,
	call invoiceCall,
	success invoice.Event,
	events ...Event,
) (*payment.Payment, error) {
	if op != OperationCash && o.Kind != KindPurchase {
		return nil, errors.Wrap(invoice.ErrUnsupportedOperation, string(op))
	}
	s.before(ctx, op, o)
	if err := s.BuildAddresses(o); err != nil {
		return nil, err
	}
	inv := s.openInvoice(o, success)
	if inv == nil {
		var err error
		if inv, err = s.BuildInvoice(ctx, o); err != nil {
			return nil, err
		}
	}
	return s.run(ctx, op, o, inv, opts, call, events)
}

// openInvoice returns the open invoice of o if it can take success, nil if
// the next attempt needs a new invoice. A declined invoice only accepts
// authorizations.
func (s *Service) openInvoice(o *Order, success invoice.Event) *invoice.Invoice {
	inv := o.OpenInvoice()
	if inv == nil || inv.Status == invoice.StatusPending || s.invoices.Machine().Can(inv, success) {
		return inv
	}
	return nil
}

// followUp runs an invoice payment that refers to a previous authorization
// on the last invoice.
func (s *Service) followUp(ctx context.Context, op Operation, o *Order, opts payment.Options, call invoiceCall, events ...Event) (*payment.Payment, error) {
	inv := o.LastInvoice()
	if inv == nil {
		return nil, nil
	}
	s.before(ctx, op, o)
	return s.run(ctx, op, o, inv, opts, call, events)
}

func (s *Service) run(
	ctx context.Context,
	op Operation,
	o *Order,
	inv *invoice.Invoice,
	opts payment.Options,
	call invoiceCall,
	events []Event,
) (*payment.Payment, error) {
	opts = payment.Options{OrderNumber: o.Number}.Merge(opts)
	pay, err := call(ctx, inv, opts)
	if pay == nil {
		if err != nil {
			return nil, err
		}
		s.after(ctx, op, o, nil)
		return nil, nil
	}

	if err == nil && pay.Success {
		err = s.fireAll(o, events)
	}
	if saveErr := s.save(ctx, o); saveErr != nil {
		if err != nil {
			zctx.From(ctx).Warn("Order transition rejected", zap.Error(err))
		}
		err = saveErr
	}
	s.after(ctx, op, o, pay)
	return pay, err
}

func (s *Service) fireAll(o *Order, events []Event) error {
	for _, e := range events {
		if err := s.machine.Fire(o, e); err != nil {
			return errors.Wrapf(err, "order %s", o.Number)
		}
	}
	return nil
}

func (s *Service) before(ctx context.Context, op Operation, o *Order) {
	if l, ok := o.customer().(PaymentListener); ok {
		l.BeforePayment(ctx, op, o)
	}
}

func (s *Service) after(ctx context.Context, op Operation, o *Order, p *payment.Payment) {
	if l, ok := o.customer().(PaymentListener); ok {
		l.AfterPayment(ctx, op, o, p)
	}
}
