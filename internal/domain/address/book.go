package address

// Book is implemented by buyers and sellers that keep addresses. A party
// without a Book cannot take part in payment processing.
type Book interface {
	FindDefaultAddress() *Address
}

// BillingBook is implemented by parties with a dedicated billing address.
type BillingBook interface {
	DefaultBillingAddress() *Address
}

// ShippingBook is implemented by parties with a dedicated shipping address.
// FindShippingAddressOrCloneFrom returns the shipping address, or a copy of
// fallback when none is stored.
type ShippingBook interface {
	FindShippingAddressOrCloneFrom(fallback *Address) *Address
}

// Set is the triple of addresses owned by an order or an invoice.
type Set struct {
	Origin   *Address
	Billing  *Address
	Shipping *Address
}

// Clone deep-copies every address of the set.
func (s Set) Clone() Set {
	return Set{
		Origin:   s.Origin.Clone(),
		Billing:  s.Billing.Clone(),
		Shipping: s.Shipping.Clone(),
	}
}

// Get returns the address of the given kind.
func (s Set) Get(k Kind) *Address {
	switch k {
	case KindOrigin:
		return s.Origin
	case KindBilling:
		return s.Billing
	case KindShipping:
		return s.Shipping
	default:
		return nil
	}
}

// Each calls fn for every present address.
func (s Set) Each(fn func(k Kind, a *Address)) {
	for _, k := range []Kind{KindOrigin, KindBilling, KindShipping} {
		if a := s.Get(k); a != nil {
			fn(k, a)
		}
	}
}

// Static is a Book backed by fixed addresses. It implements Book,
// BillingBook and ShippingBook.
type Static struct {
	Default  *Address
	Billing  *Address
	Shipping *Address
}

var (
	_ Book         = (*Static)(nil)
	_ BillingBook  = (*Static)(nil)
	_ ShippingBook = (*Static)(nil)
)

// FindDefaultAddress returns the default address.
func (s *Static) FindDefaultAddress() *Address {
	return s.Default
}

// DefaultBillingAddress returns the billing address.
func (s *Static) DefaultBillingAddress() *Address {
	return s.Billing
}

// FindShippingAddressOrCloneFrom returns the shipping address or a copy of fallback.
func (s *Static) FindShippingAddressOrCloneFrom(fallback *Address) *Address {
	if s.Shipping != nil {
		return s.Shipping
	}
	return fallback.Clone()
}
