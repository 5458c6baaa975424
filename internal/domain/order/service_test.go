package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/merchant-billing/internal/domain/address"
	"github.com/xenking/merchant-billing/internal/domain/invoice"
	"github.com/xenking/merchant-billing/internal/domain/lineitem"
	"github.com/xenking/merchant-billing/internal/domain/party"
	"github.com/xenking/merchant-billing/internal/domain/payment"
	"github.com/xenking/merchant-billing/internal/domain/sellable"
	"github.com/xenking/merchant-billing/internal/fsm"
	"github.com/xenking/merchant-billing/internal/gateway/bogus"
	"github.com/xenking/merchant-billing/internal/money"
)

// --- Mock implementations ---

type mockRepository struct {
	saves    int
	statuses []Status
	err      error
}

func (m *mockRepository) Save(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.statuses = append(m.statuses, o.Status)
	return nil
}

type sequence struct {
	n int
}

func (s *sequence) Next() string {
	s.n++
	return fmt.Sprintf("%07x", s.n)
}

// listeningAccount records payment notifications.
type listeningAccount struct {
	party.Account
	events []string
}

func (l *listeningAccount) BeforePayment(_ context.Context, op Operation, _ *Order) {
	l.events = append(l.events, "before "+string(op))
}

func (l *listeningAccount) AfterPayment(_ context.Context, op Operation, _ *Order, p *payment.Payment) {
	outcome := "none"
	if p != nil {
		outcome = fmt.Sprintf("%t", p.Success)
	}
	l.events = append(l.events, "after "+string(op)+" "+outcome)
}

// anonymous has no address book.
type anonymous struct{}

func (anonymous) PartyID() string   { return "anon" }
func (anonymous) PartyName() string { return "Anonymous" }

// --- Helpers ---

var (
	fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	tenPct   = lineitem.FixedRate(decimal.NewFromInt(10))
	valid    = &payment.CreditCard{Number: "1"}
	declined = &payment.CreditCard{Number: "2"}
	broken   = &payment.CreditCard{Number: "4111111111111111"}
)

func newService(t *testing.T, rates lineitem.TaxRateFinder, hooks Hooks) (*Service, *mockRepository) {
	t.Helper()
	gw := bogus.New()
	processor, err := payment.NewProcessor(payment.NewRegistry(
		payment.Method{Type: payment.TypeCreditCard, Gateway: gw},
		payment.Method{Type: payment.TypeAccount, Gateway: gw},
	), payment.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	calc := lineitem.NewCalculator(rates, "USD")
	repo := &mockRepository{}
	s := NewService(invoice.NewService(processor, calc, invoice.Hooks{}), processor, calc, repo, &sequence{}, hooks)
	s.now = func() time.Time { return fixedNow }
	return s, repo
}

func product(id string, cents int64, net bool) *sellable.Product {
	price := money.New(cents, "USD")
	return &sellable.Product{ID: id, Name: id, UnitPrice: &price, NetPrice: net}
}

func buyer() *party.Account {
	return &party.Account{
		ID:           "b1",
		Name:         "Jane Buyer",
		EmailAddress: "jane@example.com",
		Static: address.Static{
			Default: &address.Address{FirstName: "Jane", Street: "1 Main St", City: "Springfield", CountryCode: "US"},
		},
	}
}

func seller() *party.Account {
	return &party.Account{
		ID:           "s1",
		Name:         "Acme",
		EmailAddress: "shop@acme.example.com",
		Static: address.Static{
			Billing: &address.Address{Street: "9 Market St", City: "Shelbyville", CountryCode: "US"},
		},
	}
}

func newOrder(t *testing.T, s *Service, sellables ...sellable.Sellable) *Order {
	t.Helper()
	if len(sellables) == 0 {
		sellables = []sellable.Sellable{product("sku-1", 1000, true)}
	}
	o, err := s.Purchase(context.Background(), buyer(), seller(), sellables...)
	require.NoError(t, err)
	return o
}

// walk fires events in order, failing the test on the first rejection.
func walk(t *testing.T, s *Service, o *Order, events ...Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, s.Fire(context.Background(), o, e), "fire %s", e)
	}
}

// --- Tests ---

func TestMachineTable(t *testing.T) {
	m := NewMachine(Hooks{}, func() time.Time { return fixedNow })

	allowed := map[Transition]Status{}
	for _, row := range table {
		for _, from := range row.from {
			allowed[Transition{Event: row.event, From: from}] = row.to
		}
	}

	for _, event := range m.Events() {
		for _, from := range Statuses {
			o := &Order{Status: from}
			err := m.Fire(o, event)

			to, ok := allowed[Transition{Event: event, From: from}]
			if ok {
				require.NoError(t, err, "%s from %s", event, from)
				assert.Equal(t, to, o.Status)
				continue
			}
			require.ErrorIs(t, err, fsm.ErrTransitionRejected, "%s from %s", event, from)
			assert.Equal(t, from, o.Status, "%s from %s", event, from)
		}
	}
}

func TestMachineCancelHooks(t *testing.T) {
	var seen *time.Time
	var after []Status
	m := NewMachine(Hooks{
		Enter: map[Status]func(*Order){StatusCanceled: func(o *Order) { seen = o.CanceledAt }},
		After: map[Status]func(*Order){StatusCanceled: func(o *Order) { after = append(after, o.Status) }},
	}, func() time.Time { return fixedNow })

	o := &Order{Status: StatusPending}
	require.NoError(t, m.Fire(o, EventCancel))
	require.NotNil(t, seen)
	assert.Equal(t, fixedNow, *seen)
	assert.Equal(t, []Status{StatusCanceled}, after)
}

func TestPurchaseTotals(t *testing.T) {
	s, repo := newService(t, tenPct, Hooks{})
	o := newOrder(t, s)

	assert.Equal(t, "0000001", o.Number)
	assert.Equal(t, KindPurchase, o.Kind)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, money.New(1000, "USD"), o.Net)
	assert.Equal(t, money.New(100, "USD"), o.Tax)
	assert.Equal(t, money.New(1100, "USD"), o.Gross)
	assert.Equal(t, "USD", o.Currency)
	assert.Equal(t, 1, repo.saves)

	require.Len(t, o.LineItems, 1)
	assert.Equal(t, o.ID, o.LineItems[0].OrderID)
	assert.Empty(t, o.LineItems[0].InvoiceID)

	changed, err := s.Evaluate(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, money.New(1100, "USD"), o.Gross)
}

func TestPurchaseTwoSellablesBuildInvoice(t *testing.T) {
	s, _ := newService(t, nil, Hooks{})
	o := newOrder(t, s, product("shirt", 2995, false), product("socks", 399, false))

	assert.Equal(t, money.New(3394, "USD"), o.Gross)
	assert.Equal(t, money.Zero("USD"), o.Tax)

	inv, err := s.BuildInvoice(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, money.New(3394, "USD"), inv.Gross)
	assert.Equal(t, invoice.StatusPending, inv.Status)
	assert.Equal(t, o.ID, inv.OrderID)
	assert.Equal(t, "0000002", inv.Number)
	assert.Same(t, inv, o.LastInvoice())

	for i, li := range inv.LineItems {
		assert.NotEqual(t, o.LineItems[i].ID, li.ID)
		assert.Equal(t, inv.ID, li.InvoiceID)
		assert.Empty(t, li.OrderID)
		assert.NotSame(t, o.LineItems[i], li)
	}
	assert.NotSame(t, o.Addresses.Billing, inv.Addresses.Billing)
	assert.Equal(t, *o.Addresses.Billing, *inv.Addresses.Billing)
}

func TestPurchaseValidation(t *testing.T) {
	usd := product("usd", 100, false)
	eur := money.New(100, "EUR")

	tests := []struct {
		name      string
		buyer     party.Party
		sellables []sellable.Sellable
		want      error
	}{
		{name: "no sellables", buyer: buyer(), want: ErrMissingSellable},
		{name: "nil sellable", buyer: buyer(), sellables: []sellable.Sellable{usd, nil}, want: ErrMissingSellable},
		{name: "nil product", buyer: buyer(), sellables: []sellable.Sellable{usd, (*sellable.Product)(nil)}, want: ErrMissingSellable},
		{name: "unpriced", buyer: buyer(), sellables: []sellable.Sellable{&sellable.Product{ID: "free"}}, want: ErrMissingPrice},
		{name: "currencies", buyer: buyer(), sellables: []sellable.Sellable{usd, &sellable.Product{ID: "eur", UnitPrice: &eur}}, want: money.ErrCurrencyMismatch},
		{name: "no address book", buyer: anonymous{}, sellables: []sellable.Sellable{usd}, want: address.ErrMissingAddress},
		{name: "no default address", buyer: &party.Account{ID: "b2"}, sellables: []sellable.Sellable{usd}, want: address.ErrMissingAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo := newService(t, tenPct, Hooks{})
			o, err := s.Purchase(context.Background(), tt.buyer, seller(), tt.sellables...)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, o)
			assert.Zero(t, repo.saves)
		})
	}
}

func TestBuildAddresses(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	b := buyer()
	b.Billing = &address.Address{Street: "2 Bill St", City: "Springfield"}
	b.Shipping = &address.Address{Street: "3 Ship St", City: "Capital City"}

	o, err := s.Purchase(context.Background(), b, seller(), product("sku", 500, true))
	require.NoError(t, err)

	assert.Equal(t, "2 Bill St", o.Addresses.Billing.Street)
	assert.Equal(t, "3 Ship St", o.Addresses.Shipping.Street)
	assert.Equal(t, "9 Market St", o.Addresses.Origin.Street)
	assert.NotSame(t, b.Billing, o.Addresses.Billing)
	assert.Same(t, o.Addresses.Shipping, o.Destination())

	// Without a seller the origin stays empty.
	o, err = s.Purchase(context.Background(), buyer(), nil, product("sku", 500, true))
	require.NoError(t, err)
	assert.Nil(t, o.Addresses.Origin)
	assert.Equal(t, o.Addresses.Billing.Street, o.Addresses.Shipping.Street)
	assert.NotSame(t, o.Addresses.Billing, o.Addresses.Shipping)
}

func TestPushAndLock(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	require.NoError(t, s.Push(ctx, o, product("extra", 500, true)))
	assert.Equal(t, money.New(1650, "USD"), o.Gross)
	require.ErrorIs(t, s.Push(ctx, o, nil), ErrMissingSellable)

	_, err := s.Authorize(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	require.Equal(t, StatusPending, o.Status)

	require.ErrorIs(t, s.Push(ctx, o, product("late", 100, true)), ErrOrderLocked)
	changed, err := s.Evaluate(ctx, o)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, o.LineItems, 2)
}

func TestItemsCount(t *testing.T) {
	s, _ := newService(t, nil, Hooks{})
	bulk := product("bulk", 100, false)
	bulk.Units = 3
	o := newOrder(t, s, bulk, product("one", 100, false))

	assert.Equal(t, 2, o.LineItemsCount())
	assert.Equal(t, 4, o.ItemsCount())
}

func TestPay(t *testing.T) {
	s, repo := newService(t, tenPct, Hooks{})
	o := newOrder(t, s)

	pay, err := s.Pay(context.Background(), o, valid, payment.Options{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, pay)

	assert.True(t, pay.Success)
	assert.Equal(t, payment.ActionPurchase, pay.Action)
	assert.Equal(t, money.New(1100, "USD"), pay.Amount)
	assert.Equal(t, StatusApproved, o.Status)
	require.Len(t, o.Invoices, 1)
	assert.Equal(t, invoice.StatusPaid, o.Invoices[0].Status)
	assert.Equal(t, o.Invoices[0].Payable(), pay.Payable)
	assert.Equal(t, []Status{StatusCreated, StatusApproved}, repo.statuses)
}

func TestPayDeclinedKeepsOrderStatus(t *testing.T) {
	s, repo := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	pay, err := s.Pay(ctx, o, declined, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)
	assert.Equal(t, bogus.FailureMessage, pay.Message)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, invoice.StatusPaymentDeclined, o.Invoices[0].Status)
	assert.Equal(t, 2, repo.saves)

	// A declined invoice cannot be paid, so the next purchase gets its own.
	pay, err = s.Pay(ctx, o, broken, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)
	assert.Equal(t, bogus.ErrorMessage, pay.Message)
	assert.Empty(t, pay.Params)
	require.Len(t, o.Invoices, 2)
	assert.Equal(t, o.Invoices[1].Payable(), pay.Payable)

	// A declined invoice stays open for an authorization.
	pay, err = s.Authorize(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	assert.Equal(t, 2, pay.Position)
	require.Len(t, o.Invoices, 2)
	assert.Equal(t, invoice.StatusAuthorized, o.Invoices[1].Status)
	assert.Equal(t, StatusPending, o.Status)
}

func TestPayRetryAfterDecline(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	pay, err := s.Pay(ctx, o, declined, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)

	pay, err = s.Pay(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	assert.Equal(t, 1, pay.Position)
	assert.Equal(t, StatusApproved, o.Status)

	require.Len(t, o.Invoices, 2)
	assert.Equal(t, invoice.StatusPaymentDeclined, o.Invoices[0].Status)
	assert.Equal(t, invoice.StatusPaid, o.Invoices[1].Status)
	assert.Equal(t, o.Invoices[1].Payable(), pay.Payable)
	assert.NotEqual(t, o.Invoices[0].Number, o.Invoices[1].Number)
	assert.Equal(t, o.Invoices[0].Gross, o.Invoices[1].Gross)
}

func TestAuthorizeCapture(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	pay, err := s.Capture(ctx, o, payment.Options{})
	require.NoError(t, err)
	assert.Nil(t, pay)

	pay, err = s.Authorize(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	assert.Equal(t, bogus.Authorization, pay.Reference)
	assert.Equal(t, StatusPending, o.Status)

	pay, err = s.Capture(ctx, o, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	assert.Equal(t, payment.ActionCapture, pay.Action)
	assert.Equal(t, 2, pay.Position)
	assert.Equal(t, StatusApproved, o.Status)
	assert.Equal(t, invoice.StatusPaid, o.LastInvoice().Status)
	assert.NotNil(t, o.LastInvoice().PaidAt)
}

func TestVoid(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	_, err := s.Authorize(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	pay, err := s.Void(ctx, o, payment.Options{})
	require.NoError(t, err)

	assert.Equal(t, payment.ActionVoid, pay.Action)
	assert.Equal(t, StatusCanceled, o.Status)
	require.NotNil(t, o.CanceledAt)
	assert.Equal(t, fixedNow, *o.CanceledAt)
	assert.Equal(t, invoice.StatusVoided, o.LastInvoice().Status)
}

func TestRefund(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()

	o := newOrder(t, s)
	pay, err := s.Refund(ctx, o, payment.Options{})
	require.NoError(t, err)
	assert.Nil(t, pay)

	_, err = s.Pay(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	walk(t, s, o, EventProcessShipping, EventShip, EventConfirmReception, EventReject, EventConfirmReturn)

	pay, err = s.Refund(ctx, o, payment.Options{})
	require.NoError(t, err)
	assert.Equal(t, payment.ActionCredit, pay.Action)
	assert.Equal(t, money.New(1100, "USD"), pay.Amount)
	assert.Equal(t, StatusRefunded, o.Status)
	assert.Equal(t, invoice.StatusRefunded, o.LastInvoice().Status)
}

func TestRefundDeclined(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	_, err := s.Pay(ctx, o, valid, payment.Options{})
	require.NoError(t, err)
	walk(t, s, o, EventProcessShipping, EventShip, EventConfirmReception, EventReject, EventConfirmReturn)
	o.LastInvoice().Payments[0].Reference = "2"

	pay, err := s.Refund(ctx, o, payment.Options{})
	require.NoError(t, err)
	require.NotNil(t, pay)
	assert.False(t, pay.Success)
	assert.Equal(t, bogus.FailureMessage, pay.Message)
	assert.Equal(t, StatusReturned, o.Status)
	assert.Equal(t, invoice.StatusPaid, o.LastInvoice().Status)
	assert.Len(t, o.LastInvoice().Payments, 2)
}

func TestRefundBeforeReturn(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	_, err := s.Pay(ctx, o, valid, payment.Options{})
	require.NoError(t, err)

	// The gateway credit goes through but the order cannot skip the return.
	pay, err := s.Refund(ctx, o, payment.Options{})
	require.ErrorIs(t, err, fsm.ErrTransitionRejected)
	require.NotNil(t, pay)
	assert.True(t, pay.Success)
	assert.Equal(t, StatusApproved, o.Status)
	assert.Equal(t, invoice.StatusRefunded, o.LastInvoice().Status)
}

func TestGuardBlocksOrderTransition(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{
		Guards: map[Transition]func(*Order) bool{
			{Event: EventApprovePayment, From: StatusPending}: func(*Order) bool { return false },
		},
	})
	o := newOrder(t, s)

	pay, err := s.Pay(context.Background(), o, valid, payment.Options{})
	require.ErrorIs(t, err, fsm.ErrTransitionRejected)
	assert.True(t, pay.Success)
	assert.Equal(t, StatusPending, o.Status)
}

func TestSaveErrorSupersedesResult(t *testing.T) {
	s, repo := newService(t, tenPct, Hooks{})
	o := newOrder(t, s)
	repo.err = errors.New("connection reset")

	pay, err := s.Pay(context.Background(), o, valid, payment.Options{})
	require.ErrorIs(t, err, repo.err)
	require.NotNil(t, pay)
	assert.True(t, pay.Success)
}

func TestUnsupportedInstrument(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	o := newOrder(t, s)

	_, err := s.Pay(context.Background(), o, &payment.Profile{Reference: "x", Type: "paypal"}, payment.Options{})
	require.ErrorIs(t, err, payment.ErrUnsupportedInstrument)
	assert.Equal(t, StatusCreated, o.Status)
}

func TestCash(t *testing.T) {
	s, _ := newService(t, nil, Hooks{})
	ctx := context.Background()

	o, err := s.Sell(ctx, seller(), buyer(), product("service", 2500, false))
	require.NoError(t, err)
	assert.Equal(t, KindSales, o.Kind)
	assert.Equal(t, "9 Market St", o.Addresses.Origin.Street)

	_, err = s.Pay(ctx, o, valid, payment.Options{})
	require.ErrorIs(t, err, invoice.ErrUnsupportedOperation)

	pay, err := s.Cash(ctx, o, &payment.Account{ID: "shop@acme.example.com"}, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	assert.Equal(t, payment.ActionTransfer, pay.Action)
	assert.Equal(t, StatusApproved, o.Status)
	assert.Equal(t, invoice.KindSales, o.LastInvoice().Kind)

	purchase := newOrder(t, s)
	_, err = s.Cash(ctx, purchase, &payment.Account{ID: "shop@acme.example.com"}, payment.Options{})
	require.ErrorIs(t, err, invoice.ErrUnsupportedOperation)
}

func TestCashRetryAfterDecline(t *testing.T) {
	s, _ := newService(t, nil, Hooks{})
	ctx := context.Background()

	o, err := s.Sell(ctx, seller(), buyer(), product("service", 2500, false))
	require.NoError(t, err)

	pay, err := s.Cash(ctx, o, &payment.Account{ID: bogus.TransferFailAccount}, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, invoice.StatusPaymentDeclined, o.LastInvoice().Status)

	pay, err = s.Cash(ctx, o, &payment.Account{ID: "shop@acme.example.com"}, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	assert.Equal(t, StatusApproved, o.Status)
	require.Len(t, o.Invoices, 2)
	assert.Equal(t, invoice.StatusPaid, o.Invoices[1].Status)
}

func TestSellRequiresSellerAddress(t *testing.T) {
	s, _ := newService(t, nil, Hooks{})

	_, err := s.Sell(context.Background(), &party.Account{ID: "s2"}, buyer(), product("x", 100, false))
	var missing *address.MissingAddressError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "seller", missing.Role)
	assert.Equal(t, address.KindOrigin, missing.Kind)
}

func TestPaymentListener(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	b := &listeningAccount{Account: *buyer()}

	o, err := s.Purchase(ctx, b, seller(), product("sku", 1000, true))
	require.NoError(t, err)

	_, err = s.Pay(ctx, o, declined, payment.Options{})
	require.NoError(t, err)
	_, err = s.Authorize(ctx, o, valid, payment.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before pay", "after pay false",
		"before authorize", "after authorize true",
	}, b.events)
}

func TestRecurring(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	_, err := s.PayRecurring(ctx, o, "", nil, payment.Options{})
	require.ErrorIs(t, err, ErrRecurringPayment)

	profile, err := s.Recurring(ctx, o, valid, payment.Schedule{Periodicity: "monthly", Occurrences: 2}, payment.Options{})
	require.NoError(t, err)
	assert.True(t, profile.Success)
	assert.Equal(t, payment.ActionRecurring, profile.Action)
	assert.Equal(t, o.Payable(), profile.Payable)
	assert.Equal(t, 2, profile.Occurrences)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Payments, 1)
	assert.Same(t, &o.Payments[0], o.RecurringProfile(""))
	assert.Same(t, &o.Payments[0], o.RecurringProfile(bogus.Authorization))
	assert.Nil(t, o.RecurringProfile("unknown"))

	pay, err := s.PayRecurring(ctx, o, "", []sellable.Sellable{product("setup-fee", 500, true)}, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	require.Len(t, o.Invoices, 1)
	first := o.Invoices[0]
	assert.Len(t, first.LineItems, 2)
	assert.Equal(t, money.New(1650, "USD"), first.Gross)
	assert.Equal(t, invoice.StatusPaid, first.Status)
	assert.Len(t, o.LineItems, 1)
	assert.Equal(t, StatusPending, o.Status)

	pay, err = s.AuthorizeRecurring(ctx, o, "", nil, payment.Options{})
	require.NoError(t, err)
	assert.Equal(t, payment.ActionAuthorization, pay.Action)
	require.Len(t, o.Invoices, 2)
	assert.Equal(t, money.New(1100, "USD"), o.Invoices[1].Gross)
	_, err = s.invoices.Capture(ctx, o.Invoices[1], payment.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, o.PaidInvoices())

	_, err = s.PayRecurring(ctx, o, "", nil, payment.Options{})
	var recurring *RecurringPaymentError
	require.ErrorAs(t, err, &recurring)
	assert.Equal(t, o.Number, recurring.OrderNumber)
	require.ErrorIs(t, err, ErrRecurringPayment)
}

func TestRecurringRequiresPendingOrder(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	_, err := s.Recurring(ctx, o, valid, payment.Schedule{Periodicity: "weekly"}, payment.Options{})
	require.NoError(t, err)
	walk(t, s, o, EventCancel)

	_, err = s.PayRecurring(ctx, o, "", nil, payment.Options{})
	require.ErrorIs(t, err, ErrRecurringPayment)
	assert.Empty(t, o.Invoices)

	sales, err := s.Sell(ctx, seller(), buyer(), product("x", 100, false))
	require.NoError(t, err)
	_, err = s.Recurring(ctx, sales, valid, payment.Schedule{Periodicity: "weekly"}, payment.Options{})
	require.ErrorIs(t, err, ErrRecurringPayment)
}

func TestPayRecurringRetryAfterDecline(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	ctx := context.Background()
	o := newOrder(t, s)

	profile, err := s.Recurring(ctx, o, valid, payment.Schedule{Periodicity: "monthly"}, payment.Options{})
	require.NoError(t, err)

	o.Payments[0].Reference = "2"
	pay, err := s.PayRecurring(ctx, o, profile.ID, nil, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)
	require.Len(t, o.Invoices, 1)
	assert.Equal(t, invoice.StatusPaymentDeclined, o.Invoices[0].Status)

	o.Payments[0].Reference = bogus.Authorization
	pay, err = s.PayRecurring(ctx, o, profile.ID, nil, payment.Options{})
	require.NoError(t, err)
	assert.True(t, pay.Success)
	require.Len(t, o.Invoices, 2)
	assert.Equal(t, invoice.StatusPaid, o.Invoices[1].Status)
	assert.Equal(t, 1, o.PaidInvoices())
}

func TestRecurringDeclined(t *testing.T) {
	s, _ := newService(t, tenPct, Hooks{})
	o := newOrder(t, s)

	pay, err := s.Recurring(context.Background(), o, declined, payment.Schedule{Periodicity: "monthly"}, payment.Options{})
	require.NoError(t, err)
	assert.False(t, pay.Success)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Nil(t, o.RecurringProfile(""))
}
