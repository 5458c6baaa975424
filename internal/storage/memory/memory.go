// Package memory keeps orders in process memory. It backs tests and the
// demo when no database is configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/order"
	"github.com/xenking/merchant-billing/internal/domain/payment"
)

var (
	// ErrNotFound is returned by Get for unknown orders.
	ErrNotFound = errors.New("order not found")
	// ErrPaymentConflict is returned when a payment position of a payable is
	// already taken by another payment.
	ErrPaymentConflict = errors.New("payment position already recorded")
)

// Store is an order repository and payment history. Saved orders are
// snapshotted; later changes to the caller's copy are not visible until the
// next Save.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]*order.Order
	payments map[payment.Payable][]payment.Payment
	ids      map[string]struct{}
}

var (
	_ order.Repository = (*Store)(nil)
	_ payment.History  = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders:   make(map[string]*order.Order),
		payments: make(map[payment.Payable][]payment.Payment),
		ids:      make(map[string]struct{}),
	}
}

// Save stores a snapshot of o. Payments already recorded are left as they
// are; new ones are appended. Nothing is written if any payment conflicts.
func (s *Store) Save(_ context.Context, o *order.Order) error {
	snap := snapshot(o)

	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []payment.Payment
	collect := func(list []payment.Payment) error {
		for _, p := range list {
			if _, ok := s.ids[p.ID]; ok {
				continue
			}
			for _, existing := range s.payments[p.Payable] {
				if existing.Position == p.Position {
					return errors.Wrapf(ErrPaymentConflict, "%s position %d", p.Payable, p.Position)
				}
			}
			fresh = append(fresh, p)
		}
		return nil
	}
	if err := collect(snap.Payments); err != nil {
		return err
	}
	for _, inv := range snap.Invoices {
		if err := collect(inv.Payments); err != nil {
			return err
		}
	}

	for _, p := range fresh {
		s.ids[p.ID] = struct{}{}
		s.payments[p.Payable] = append(s.payments[p.Payable], p)
	}
	s.orders[snap.ID] = snap
	return nil
}

// Get returns a copy of the order with id.
func (s *Store) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order %s", id)
	}
	return snapshot(o), nil
}

// Len returns the number of stored orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Payments returns the recorded payments of payable ordered by position.
func (s *Store) Payments(_ context.Context, payable payment.Payable) ([]payment.Payment, error) {
	s.mu.RLock()
	list := s.payments[payable]
	out := make([]payment.Payment, 0, len(list))
	for i := range list {
		out = append(out, *list[i].Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b payment.Payment) int { return a.Position - b.Position })
	return out, nil
}

func snapshot(o *order.Order) *order.Order {
	c := *o
	c.LineItems = copyItems(o.LineItems)
	c.Addresses = o.Addresses.Clone()
	c.Payments = copyPayments(o.Payments)
	c.Invoices = make([]*invoice.Invoice, 0, len(o.Invoices))
	for _, inv := range o.Invoices {
		ic := *inv
		ic.LineItems = copyItems(inv.LineItems)
		ic.Addresses = inv.Addresses.Clone()
		ic.Payments = copyPayments(inv.Payments)
		c.Invoices = append(c.Invoices, &ic)
	}
	return &c
}

func copyItems(items []*lineitem.LineItem) []*lineitem.LineItem {
	out := make([]*lineitem.LineItem, 0, len(items))
	for _, li := range items {
		c := *li
		out = append(out, &c)
	}
	return out
}

func copyPayments(list []payment.Payment) []payment.Payment {
	out := make([]payment.Payment, 0, len(list))
	for i := range list {
		out = append(out, *list[i].Clone())
	}
	return out
}
