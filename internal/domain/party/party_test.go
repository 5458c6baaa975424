package party

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/merchant-billing/internal/domain/address"
)

type anonymous struct{}

func (anonymous) PartyID() string   { return "7" }
func (anonymous) PartyName() string { return "Guest" }

func TestLabel(t *testing.T) {
	assert.Equal(t, "Ada (42)", Label(&Account{ID: "42", Name: "Ada"}))
	assert.Equal(t, "", Label(nil))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", Email(&Account{EmailAddress: "ada@example.com"}))
	assert.Equal(t, "", Email(anonymous{}))
}

func TestAccountAddressBook(t *testing.T) {
	home := &address.Address{City: "London"}
	var book address.Book = &Account{Static: address.Static{Default: home}}
	assert.Same(t, home, book.FindDefaultAddress())

	_, ok := book.(address.ShippingBook)
	assert.True(t, ok)
}
