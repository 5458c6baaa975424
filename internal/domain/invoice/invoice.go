// Package invoice implements invoices, the billing unit payments are made
// against.
package invoice

import (
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/money"
)

// Status is the state of an invoice.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAuthorized      Status = "authorized"
	StatusPaid            Status = "paid"
	StatusVoided          Status = "voided"
	StatusRefunded        Status = "refunded"
	StatusPaymentDeclined Status = "payment_declined"
)

// Statuses lists every invoice status.
var Statuses = []Status{
	StatusPending,
	StatusAuthorized,
	StatusPaid,
	StatusVoided,
	StatusRefunded,
	StatusPaymentDeclined,
}

// Event moves an invoice between statuses.
type Event string

const (
	EventPaymentPaid         Event = "payment_paid"
	EventPaymentAuthorized   Event = "payment_authorized"
	EventPaymentCaptured     Event = "payment_captured"
	EventPaymentVoided       Event = "payment_voided"
	EventPaymentRefunded     Event = "payment_refunded"
	EventTransactionDeclined Event = "transaction_declined"
)

// Kind tells purchase invoices, paid by the buyer, from sales invoices,
// paid out to the seller.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSales    Kind = "sales"
)

var (
	// ErrInvoiceLocked is returned when line items of an invoice that left
	// the pending status would be recalculated.
	ErrInvoiceLocked = errors.New("invoice is locked")
	// ErrUnsupportedOperation is returned for payment operations the kind of
	// invoice does not offer.
	ErrUnsupportedOperation = errors.New("operation not supported for invoice kind")
)

// Invoice is a snapshot of an order's line items and totals. It owns its
// line items, addresses and payments.
type Invoice struct {
	ID      string
	OrderID string
	Number  string
	Kind    Kind
	Status  Status

	Buyer  party.Party
	Seller party.Party

	LineItems []*lineitem.LineItem
	Addresses address.Set

	Net      money.Money
	Tax      money.Money
	Gross    money.Money
	Currency string

	// Payments are ordered by position.
	Payments []payment.Payment

	AuthorizedAt *time.Time
	PaidAt       *time.Time
	CreatedAt    time.Time
}

// Payable returns the payment owner reference of the invoice.
func (inv *Invoice) Payable() payment.Payable {
	return payment.Payable{Kind: payment.PayableInvoice, ID: inv.ID}
}

// Open reports whether payments can still be attempted to settle the
// invoice.
func (inv *Invoice) Open() bool {
	return inv.Status == StatusPending || inv.Status == StatusPaymentDeclined
}

// Authorization returns the payment later captures, voids and credits refer
// to, or nil.
func (inv *Invoice) Authorization() *payment.Payment {
	return payment.FindAuthorization(inv.Payments)
}

// PaymentType returns the instrument type of the first payment.
func (inv *Invoice) PaymentType() string {
	if len(inv.Payments) == 0 {
		return ""
	}
	return inv.Payments[0].PaymentType
}

// Totals sets the invoice totals from its line items.
func (inv *Invoice) Totals() error {
	t, err := lineitem.Sum(inv.Currency, inv.LineItems)
	if err != nil {
		return errors.Wrapf(err, "invoice %s totals", inv.ID)
	}
	inv.Net, inv.Tax, inv.Gross = t.Net, t.Tax, t.Gross
	return nil
}

// Options builds the merchant context for gateway calls. Sales invoices
// swap the customer and merchant roles.
func (inv *Invoice) Options(extra payment.Options) payment.Options {
	customer, merchant := inv.Buyer, inv.Seller
	if inv.Kind == KindSales {
		customer, merchant = inv.Seller, inv.Buyer
	}
	opts := payment.Options{
		Customer: party.Label(customer),
		Merchant: party.Label(merchant),
		Email:    party.Email(customer),
		Payable:  inv.Payable(),
		Number:   inv.Number,
		Currency: inv.Currency,
	}
	if customer != nil {
		opts.CustomerID = customer.PartyID()
	}
	if merchant != nil {
		opts.MerchantID = merchant.PartyID()
	}
	if a := inv.Addresses.Billing; a != nil {
		opts.BillingAddress = a.MerchantAttributes()
	}
	if a := inv.Addresses.Shipping; a != nil {
		opts.ShippingAddress = a.MerchantAttributes()
	}
	return opts.Merge(extra)
}
