// Package sellable defines what can be put on an order.
package sellable

import "github.com/xenking/merchant-billing/internal/money"

// Sellable is anything with a price that can be added to an order.
// Price returns false when the sellable has no price.
type Sellable interface {
	SellableID() string
	Price() (money.Money, bool)
}

// Taxable is implemented by sellables that decide whether tax applies.
// Sellables without it are taxable.
type Taxable interface {
	Taxable() bool
}

// NetPriced is implemented by sellables that declare whether their price
// excludes tax. Sellables without it are priced gross.
type NetPriced interface {
	PriceIsNet() bool
}

// Quantified is implemented by sellables that stand for several units.
type Quantified interface {
	Quantity() int
}

// IsTaxable reports whether tax applies to s.
func IsTaxable(s Sellable) bool {
	if t, ok := s.(Taxable); ok {
		return t.Taxable()
	}
	return true
}

// PriceIsNet reports whether the price of s excludes tax.
func PriceIsNet(s Sellable) bool {
	if n, ok := s.(NetPriced); ok {
		return n.PriceIsNet()
	}
	return false
}

// Quantity returns the unit count of s, 1 unless s reports one.
func Quantity(s Sellable) int {
	if q, ok := s.(Quantified); ok {
		return q.Quantity()
	}
	return 1
}

// Missing reports whether s is nil, including a nil *Product.
func Missing(s Sellable) bool {
	if s == nil {
		return true
	}
	p, ok := s.(*Product)
	return ok && p == nil
}

// Product is a catalog sellable. A nil *Product has no price.
type Product struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	UnitPrice *money.Money `json:"price,omitempty"`
	Units     int          `json:"units,omitempty"`
	TaxExempt bool         `json:"tax_exempt,omitempty"`
	NetPrice  bool         `json:"net_price,omitempty"`
}

var (
	_ Sellable   = (*Product)(nil)
	_ Taxable    = (*Product)(nil)
	_ NetPriced  = (*Product)(nil)
	_ Quantified = (*Product)(nil)
)

// SellableID returns the product ID.
func (p *Product) SellableID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

// Price returns the unit price, false if the product has none.
func (p *Product) Price() (money.Money, bool) {
	if p == nil || p.UnitPrice == nil {
		return money.Money{}, false
	}
	return *p.UnitPrice, true
}

// Taxable reports whether tax applies to the product.
func (p *Product) Taxable() bool { return p == nil || !p.TaxExempt }

// PriceIsNet reports whether the unit price excludes tax.
func (p *Product) PriceIsNet() bool { return p != nil && p.NetPrice }

// Quantity returns the unit count, at least 1.
func (p *Product) Quantity() int {
	if p == nil || p.Units <= 0 {
		return 1
	}
	return p.Units
}
