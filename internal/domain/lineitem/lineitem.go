// Package lineitem computes net, tax and gross amounts of priced entries on
// orders and invoices.
package lineitem

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-billing/internal/domain/sellable"
	"github.com/xenking/merchant-billing/internal/money"
)

// LineItem is one priced entry of an order or invoice. Exactly one of
// OrderID and InvoiceID is set.
type LineItem struct {
	ID         string
	OrderID    string
	InvoiceID  string
	SellableID string
	Sellable   sellable.Sellable `json:"-"`
	Net        money.Money
	Tax        money.Money
	Gross      money.Money
	TaxRate    decimal.Decimal
}

// New returns an unevaluated line item for s.
func New(s sellable.Sellable) *LineItem {
	li := &LineItem{ID: uuid.NewString(), Sellable: s}
	if s != nil {
		li.SellableID = s.SellableID()
	}
	return li
}

// Currency returns the currency of the gross amount.
func (li *LineItem) Currency() string {
	return li.Gross.Currency
}

// Quantity returns the number of units the line item stands for.
func (li *LineItem) Quantity() int {
	if li.Sellable == nil {
		return 1
	}
	return sellable.Quantity(li.Sellable)
}

// Copy returns a fresh line item with the same sellable and amounts, a new
// ID and no owner.
func (li *LineItem) Copy() *LineItem {
	c := *li
	c.ID = uuid.NewString()
	c.OrderID = ""
	c.InvoiceID = ""
	return &c
}

// Totals are the summed amounts of a line item sequence.
type Totals struct {
	Net   money.Money
	Tax   money.Money
	Gross money.Money
}

// Sum adds the amounts of items. Empty sequences total zero in currency.
func Sum(currency string, items []*LineItem) (Totals, error) {
	t := Totals{
		Net:   money.Zero(currency),
		Tax:   money.Zero(currency),
		Gross: money.Zero(currency),
	}
	if len(items) == 0 {
		return t, nil
	}
	nets := make([]money.Money, len(items))
	taxes := make([]money.Money, len(items))
	grosses := make([]money.Money, len(items))
	for i, li := range items {
		nets[i], taxes[i], grosses[i] = li.Net, li.Tax, li.Gross
	}
	var err error
	if t.Net, err = money.Sum(currency, nets...); err != nil {
		return Totals{}, err
	}
	if t.Tax, err = money.Sum(currency, taxes...); err != nil {
		return Totals{}, err
	}
	if t.Gross, err = money.Sum(currency, grosses...); err != nil {
		return Totals{}, err
	}
	return t, nil
}
