// Package payment records attempts to move money and sequences calls to
// payment gateways.
package payment

import (
	"context"
	"time"

	"github.com/xenking/merchant-billing/internal/money"
)

// PayableKind is the kind of aggregate payments are recorded against.
type PayableKind string

const (
	PayableOrder   PayableKind = "order"
	PayableInvoice PayableKind = "invoice"
)

// Payable identifies the owner of a payment.
type Payable struct {
	Kind PayableKind `json:"kind"`
	ID   string      `json:"id"`
}

func (p Payable) String() string {
	return string(p.Kind) + "/" + p.ID
}

// Action is the gateway operation a payment records.
type Action string

const (
	ActionAuthorization Action = "authorization"
	ActionCapture       Action = "capture"
	ActionPurchase      Action = "purchase"
	ActionVoid          Action = "void"
	ActionCredit        Action = "credit"
	ActionTransfer      Action = "transfer"
	ActionRecurring     Action = "recurring"
)

// Payment is one attempt against a gateway. Payments are never changed once
// recorded.
type Payment struct {
	ID      string
	Payable Payable
	Action  Action
	Amount  money.Money
	Success bool
	// Reference is the gateway's authorization reference.
	Reference string
	Message   string
	Params    map[string]string
	// Position orders attempts within one payable, starting at 1.
	Position int
	Test     bool
	// PaymentType is the instrument type the payment was made with. It
	// selects the gateway for follow-up calls.
	PaymentType string
	// Occurrences is the number of billing cycles of a recurring profile.
	Occurrences int
	CreatedAt   time.Time
}

// Clone returns a copy that shares no maps with p.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.Params != nil {
		c.Params = make(map[string]string, len(p.Params))
		for k, v := range p.Params {
			c.Params[k] = v
		}
	}
	return &c
}

// Append adds p to payments at the next position. It returns the stored
// copy's position.
func Append(payments []Payment, p *Payment) ([]Payment, int) {
	pos := 0
	for _, existing := range payments {
		pos = max(pos, existing.Position)
	}
	p.Position = pos + 1
	return append(payments, *p.Clone()), p.Position
}

// FindAuthorization returns the first successful authorization, or failing
// that the first successful purchase. It returns nil when neither exists.
func FindAuthorization(payments []Payment) *Payment {
	var purchase *Payment
	for i := range payments {
		p := &payments[i]
		if !p.Success {
			continue
		}
		switch p.Action {
		case ActionAuthorization:
			return p
		case ActionPurchase:
			if purchase == nil {
				purchase = p
			}
		}
	}
	return purchase
}

// History lists recorded payments.
type History interface {
	// Payments returns the payments of payable ordered by position.
	Payments(ctx context.Context, payable Payable) ([]Payment, error)
}
