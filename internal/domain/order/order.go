package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/money"
)

// Status is the state of an order.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusShipping  Status = "shipping"
	StatusShipped   Status = "shipped"
	StatusReceived  Status = "received"
	StatusReturning Status = "returning"
	StatusReturned  Status = "returned"
	StatusRefunded  Status = "refunded"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every order status.
var Statuses = []Status{
	StatusCreated,
	StatusPending,
	StatusApproved,
	StatusShipping,
	StatusShipped,
	StatusReceived,
	StatusReturning,
	StatusReturned,
	StatusRefunded,
	StatusCanceled,
}

// Event moves an order between statuses.
type Event string

const (
	EventProcessPayment   Event = "process_payment"
	EventApprovePayment   Event = "approve_payment"
	EventProcessShipping  Event = "process_shipping"
	EventShip             Event = "ship"
	EventConfirmReception Event = "confirm_reception"
	EventReject           Event = "reject"
	EventConfirmReturn    Event = "confirm_return"
	EventRefund           Event = "refund"
	EventCancel           Event = "cancel"
)

// Kind is the direction of an order: purchase orders are paid by the buyer,
// sales orders are cashed out to the seller.
type Kind = invoice.Kind

const (
	KindPurchase = invoice.KindPurchase
	KindSales    = invoice.KindSales
)

// Sentinel errors for order operations.
var (
	ErrMissingSellable  = errors.New("no sellable provided")
	ErrMissingPrice     = errors.New("sellable has no price")
	ErrOrderLocked      = errors.New("order is locked")
	ErrRecurringPayment = errors.New("recurring payment failed")
)

// RecurringPaymentError is returned when an order cannot be billed for
// another recurring cycle.
type RecurringPaymentError struct {
	OrderNumber string
	Reason      string
}

func (e *RecurringPaymentError) Error() string {
	return fmt.Sprintf("recurring order %s: %s", e.OrderNumber, e.Reason)
}

// Is reports whether target is ErrRecurringPayment.
func (e *RecurringPaymentError) Is(target error) bool {
	return target == ErrRecurringPayment
}

// Order is a buyer's purchase or a seller's sale of line items. It owns its
// line items, addresses, order-level payments and invoices.
type Order struct {
	ID     string
	Number string
	Kind   Kind
	Status Status

	Buyer  party.Party
	Seller party.Party

	LineItems []*lineitem.LineItem
	Addresses address.Set

	Net      money.Money
	Tax      money.Money
	Gross    money.Money
	Currency string

	// Payments recorded against the order itself, i.e. recurring profiles.
	Payments []payment.Payment
	// Invoices in creation order.
	Invoices []*invoice.Invoice

	CanceledAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository persists orders.
type Repository interface {
	// Save stores the order with its line items, addresses, payments and
	// invoices in one atomic unit. Recorded payments are never updated.
	Save(ctx context.Context, o *Order) error
}

// Payable returns the payment owner reference of the order.
func (o *Order) Payable() payment.Payable {
	return payment.Payable{Kind: payment.PayableOrder, ID: o.ID}
}

// LineItemsCount returns the number of line items.
func (o *Order) LineItemsCount() int {
	return len(o.LineItems)
}

// ItemsCount returns the number of units across all line items.
func (o *Order) ItemsCount() int {
	n := 0
	for _, li := range o.LineItems {
		n += li.Quantity()
	}
	return n
}

// OpenInvoice returns the invoice in-flight payments go to, or nil. It is
// the last invoice if no payment settled it yet.
func (o *Order) OpenInvoice() *invoice.Invoice {
	inv := o.LastInvoice()
	if inv == nil || !inv.Open() {
		return nil
	}
	return inv
}

// LastInvoice returns the most recent invoice, or nil.
func (o *Order) LastInvoice() *invoice.Invoice {
	if len(o.Invoices) == 0 {
		return nil
	}
	return o.Invoices[len(o.Invoices)-1]
}

// PaidInvoices counts invoices in the paid status.
func (o *Order) PaidInvoices() int {
	n := 0
	for _, inv := range o.Invoices {
		if inv.Status == invoice.StatusPaid {
			n++
		}
	}
	return n
}

// Destination returns the address taxes are computed for.
func (o *Order) Destination() *address.Address {
	if o.Addresses.Shipping != nil {
		return o.Addresses.Shipping
	}
	return o.Addresses.Billing
}

// Totals sets the order totals from its line items.
func (o *Order) Totals() error {
	t, err := lineitem.Sum(o.Currency, o.LineItems)
	if err != nil {
		return errors.Wrapf(err, "order %s totals", o.Number)
	}
	o.Net, o.Tax, o.Gross = t.Net, t.Tax, t.Gross
	return nil
}

// customer returns the party paying the order.
func (o *Order) customer() party.Party {
	if o.Kind == KindSales {
		return o.Seller
	}
	return o.Buyer
}

// Options builds the merchant context for order-level gateway calls.
func (o *Order) Options(extra payment.Options) payment.Options {
	opts := payment.Options{
		Customer:    party.Label(o.Buyer),
		Merchant:    party.Label(o.Seller),
		Email:       party.Email(o.Buyer),
		Payable:     o.Payable(),
		OrderNumber: o.Number,
		Currency:    o.Currency,
	}
	if o.Buyer != nil {
		opts.CustomerID = o.Buyer.PartyID()
	}
	if o.Seller != nil {
		opts.MerchantID = o.Seller.PartyID()
	}
	if a := o.Addresses.Billing; a != nil {
		opts.BillingAddress = a.MerchantAttributes()
	}
	if a := o.Addresses.Shipping; a != nil {
		opts.ShippingAddress = a.MerchantAttributes()
	}
	return opts.Merge(extra)
}
