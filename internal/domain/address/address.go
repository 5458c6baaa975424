// Package address defines postal addresses attached to orders and invoices
// and the capabilities buyers and sellers expose to resolve them.
package address

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Kind identifies the role of an address on an order or invoice.
type Kind string

const (
	// KindOrigin is the seller's address, the tax origin.
	KindOrigin Kind = "origin"
	// KindBilling is the buyer's billing address.
	KindBilling Kind = "billing"
	// KindShipping is the buyer's shipping address, the tax destination.
	KindShipping Kind = "shipping"
)

// ErrMissingAddress is returned when a buyer or seller cannot provide a
// required address.
var ErrMissingAddress = errors.New("missing address")

// MissingAddressError names the party and address that could not be resolved.
type MissingAddressError struct {
	Role    string
	PartyID string
	Kind    Kind
}

func (e *MissingAddressError) Error() string {
	return fmt.Sprintf("no %s or default address for %s %s", e.Kind, e.Role, e.PartyID)
}

// Is reports whether target is ErrMissingAddress.
func (e *MissingAddressError) Is(target error) bool {
	return target == ErrMissingAddress
}

// Address is a postal address.
type Address struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Street       string `json:"street,omitempty"`
	Street2      string `json:"street2,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Province     string `json:"province,omitempty"`
	ProvinceCode string `json:"province_code,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// Clone returns a copy of a, or nil.
func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Name joins first and last name.
func (a *Address) Name() string {
	return joinNonEmpty(" ", a.FirstName, a.LastName)
}

// ContentAttributes returns the non-empty content fields keyed by column
// name. It is the input of tax-rate lookups.
func (a *Address) ContentAttributes() map[string]string {
	if a == nil {
		return map[string]string{}
	}
	attrs := map[string]string{
		"first_name":    a.FirstName,
		"last_name":     a.LastName,
		"street":        a.Street,
		"street2":       a.Street2,
		"city":          a.City,
		"postal_code":   a.PostalCode,
		"province":      a.Province,
		"province_code": a.ProvinceCode,
		"country":       a.Country,
		"country_code":  a.CountryCode,
		"phone":         a.Phone,
	}
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}
	return attrs
}

// MerchantAttributes returns the address in the shape payment gateways
// expect.
func (a *Address) MerchantAttributes() map[string]string {
	if a == nil {
		return nil
	}
	return map[string]string{
		"name":     a.Name(),
		"address1": a.Street,
		"address2": a.Street2,
		"city":     a.City,
		"state":    firstNonEmpty(a.ProvinceCode, a.Province),
		"country":  firstNonEmpty(a.CountryCode, a.Country),
		"zip":      a.PostalCode,
		"phone":    a.Phone,
	}
}

// String formats the address as a single comma separated line.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	return joinNonEmpty(", ",
		a.Street,
		a.Street2,
		a.City,
		firstNonEmpty(a.Province, a.ProvinceCode),
		a.PostalCode,
		firstNonEmpty(a.Country, a.CountryCode),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
