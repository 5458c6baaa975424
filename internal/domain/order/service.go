package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/domain/sellable"
	"github.com/xenking/merchant-billing/internal/money"
)

// NumberGenerator issues order and invoice numbers.
type NumberGenerator interface {
	Next() string
}

// Service builds orders and drives them through payment processing.
type Service struct {
	invoices  *invoice.Service
	processor *payment.Processor
	calc      *lineitem.Calculator
	orders    Repository
	numbers   NumberGenerator
	machine   *Machine
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	invoices *invoice.Service,
	processor *payment.Processor,
	calc *lineitem.Calculator,
	orders Repository,
	numbers NumberGenerator,
	hooks Hooks,
) *Service {
	s := &Service{
		invoices:  invoices,
		processor: processor,
		calc:      calc,
		orders:    orders,
		numbers:   numbers,
		now:       time.Now,
	}
	s.machine = NewMachine(hooks, func() time.Time { return s.now() })
	return s
}

// Machine returns the order state machine.
func (s *Service) Machine() *Machine {
	return s.machine
}

// Purchase creates a purchase order of sellables bought by buyer from
// seller. seller may be nil.
func (s *Service) Purchase(ctx context.Context, buyer, seller party.Party, sellables ...sellable.Sellable) (*Order, error) {
	return s.create(ctx, KindPurchase, buyer, seller, sellables)
}

// Sell creates a sales order of sellables sold by seller to buyer.
func (s *Service) Sell(ctx context.Context, seller, buyer party.Party, sellables ...sellable.Sellable) (*Order, error) {
	return s.create(ctx, KindSales, buyer, seller, sellables)
}

func (s *Service) create(ctx context.Context, kind Kind, buyer, seller party.Party, sellables []sellable.Sellable) (*Order, error) {
	currency, err := validateSellables(sellables)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:        uuid.NewString(),
		Number:    s.numbers.Next(),
		Kind:      kind,
		Status:    StatusCreated,
		Buyer:     buyer,
		Seller:    seller,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.BuildAddresses(o); err != nil {
		return nil, err
	}
	for _, sb := range sellables {
		li := lineitem.New(sb)
		li.OrderID = o.ID
		o.LineItems = append(o.LineItems, li)
	}
	if _, err := s.Evaluate(ctx, o); err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order created",
		zap.String("number", o.Number),
		zap.String("kind", string(o.Kind)),
		zap.Int("line_items", o.LineItemsCount()),
		zap.Stringer("gross", o.Gross),
	)
	return o, nil
}

// validateSellables checks every sellable is priced in one currency and
// returns that currency.
func validateSellables(sellables []sellable.Sellable) (string, error) {
	if len(sellables) == 0 {
		return "", ErrMissingSellable
	}
	var currency string
	for i, sb := range sellables {
		if sellable.Missing(sb) {
			return "", errors.Wrapf(ErrMissingSellable, "sellable %d", i)
		}
		price, ok := sb.Price()
		if !ok {
			return "", errors.Wrapf(ErrMissingPrice, "sellable %s", sb.SellableID())
		}
		switch {
		case currency == "":
			currency = price.Currency
		case currency != price.Currency:
			return "", &money.CurrencyMismatchError{Left: currency, Right: price.Currency}
		}
	}
	return currency, nil
}

// Evaluate recalculates line items and totals and saves the order. It does
// nothing and returns false once the order left the created status.
func (s *Service) Evaluate(ctx context.Context, o *Order) (bool, error) {
	if o.Status != StatusCreated {
		return false, nil
	}
	if err := s.calc.EvaluateAll(ctx, o.LineItems, o.Addresses.Origin, o.Destination()); err != nil {
		return false, errors.Wrapf(err, "evaluate order %s", o.Number)
	}
	if err := o.Totals(); err != nil {
		return false, err
	}
	if err := s.save(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

// Push adds a sellable to a created order and re-evaluates it.
func (s *Service) Push(ctx context.Context, o *Order, sb sellable.Sellable) error {
	if sellable.Missing(sb) {
		return ErrMissingSellable
	}
	return s.PushLineItem(ctx, o, lineitem.New(sb))
}

// PushLineItem adds a line item to a created order and re-evaluates it.
func (s *Service) PushLineItem(ctx context.Context, o *Order, li *lineitem.LineItem) error {
	if o.Status != StatusCreated {
		return errors.Wrapf(ErrOrderLocked, "order %s is %s", o.Number, o.Status)
	}
	li.OrderID = o.ID
	li.InvoiceID = ""
	o.LineItems = append(o.LineItems, li)
	_, err := s.Evaluate(ctx, o)
	return err
}

// BuildAddresses resolves the addresses of o from its buyer and seller.
// Addresses already set are kept.
func (s *Service) BuildAddresses(o *Order) error {
	buyer, ok := o.Buyer.(address.Book)
	if !ok {
		return &address.MissingAddressError{Role: "buyer", PartyID: partyID(o.Buyer), Kind: address.KindBilling}
	}

	if o.Addresses.Billing == nil {
		var billing *address.Address
		if b, ok := buyer.(address.BillingBook); ok {
			billing = b.DefaultBillingAddress()
		}
		if billing == nil {
			billing = buyer.FindDefaultAddress()
		}
		if billing == nil {
			return &address.MissingAddressError{Role: "buyer", PartyID: partyID(o.Buyer), Kind: address.KindBilling}
		}
		o.Addresses.Billing = billing.Clone()
	}

	if sb, ok := buyer.(address.ShippingBook); ok && o.Addresses.Shipping == nil {
		o.Addresses.Shipping = sb.FindShippingAddressOrCloneFrom(o.Addresses.Billing).Clone()
	}

	if o.Seller == nil {
		if o.Kind == KindSales {
			return &address.MissingAddressError{Role: "seller", Kind: address.KindOrigin}
		}
		return nil
	}
	seller, ok := o.Seller.(address.Book)
	if !ok {
		return &address.MissingAddressError{Role: "seller", PartyID: partyID(o.Seller), Kind: address.KindOrigin}
	}
	if o.Addresses.Origin == nil {
		var origin *address.Address
		if b, ok := seller.(address.BillingBook); ok {
			origin = b.DefaultBillingAddress()
		}
		if origin == nil {
			origin = seller.FindDefaultAddress()
		}
		if origin == nil && o.Kind == KindSales {
			return &address.MissingAddressError{Role: "seller", PartyID: partyID(o.Seller), Kind: address.KindOrigin}
		}
		o.Addresses.Origin = origin.Clone()
	}
	return nil
}

func partyID(p party.Party) string {
	if p == nil {
		return "<nil>"
	}
	return p.PartyID()
}

// BuildInvoice creates a pending invoice from fresh copies of the order's
// line items and addresses plus extra, appends it to the order and returns
// it. Extra line items belong to the invoice only.
func (s *Service) BuildInvoice(ctx context.Context, o *Order, extra ...*lineitem.LineItem) (*invoice.Invoice, error) {
	inv := &invoice.Invoice{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Number:    s.numbers.Next(),
		Kind:      o.Kind,
		Status:    invoice.StatusPending,
		Buyer:     o.Buyer,
		Seller:    o.Seller,
		Addresses: o.Addresses.Clone(),
		Currency:  o.Currency,
		CreatedAt: s.now(),
	}
	items := make([]*lineitem.LineItem, 0, len(o.LineItems)+len(extra))
	items = append(items, o.LineItems...)
	items = append(items, extra...)
	for _, li := range items {
		c := li.Copy()
		c.InvoiceID = inv.ID
		inv.LineItems = append(inv.LineItems, c)
	}
	if err := s.invoices.Evaluate(ctx, inv); err != nil {
		return nil, err
	}
	o.Invoices = append(o.Invoices, inv)
	return inv, nil
}

// Fire applies event to o and saves it.
func (s *Service) Fire(ctx context.Context, o *Order, event Event) error {
	if err := s.machine.Fire(o, event); err != nil {
		return errors.Wrapf(err, "order %s", o.Number)
	}
	return s.save(ctx, o)
}

func (s *Service) save(ctx context.Context, o *Order) error {
	o.UpdatedAt = s.now()
	if err := s.orders.Save(ctx, o); err != nil {
		return errors.Wrapf(err, "save order %s", o.Number)
	}
	return nil
}
