// Package party identifies buyers and sellers.
package party

import (
	"fmt"

	"github.com/xenking/merchant-billing/internal/domain/address"
)

// Party is a buyer or seller.
type Party interface {
	PartyID() string
	PartyName() string
}

// Contact is implemented by parties with an email address.
type Contact interface {
	Email() string
}

// Label formats p as "name (id)", the way gateways expect customer and
// merchant names. It returns "" for nil.
func Label(p Party) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", p.PartyName(), p.PartyID())
}

// Email returns the address of p if it has one.
func Email(p Party) string {
	if c, ok := p.(Contact); ok {
		return c.Email()
	}
	return ""
}

// Account is a party with an address book.
type Account struct {
	ID           string
	Name         string
	EmailAddress string
	address.Static
}

var (
	_ Party        = (*Account)(nil)
	_ Contact      = (*Account)(nil)
	_ address.Book = (*Account)(nil)
)

// PartyID, PartyName and Email expose the account fields.
func (a *Account) PartyID() string   { return a.ID }
func (a *Account) PartyName() string { return a.Name }
func (a *Account) Email() string     { return a.EmailAddress }
