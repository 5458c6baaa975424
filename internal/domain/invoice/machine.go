package invoice

import (
	"time"

	"github.com/xenking/merchant-billing/internal/fsm"
)

// Transition identifies one row of the invoice transition table.
type Transition struct {
	Event Event
	From  Status
}

// Hooks customize the invoice machine. Guards default to allowing the
// transition, hooks to doing nothing.
type Hooks struct {
	Guards map[Transition]func(*Invoice) bool
	Enter  map[Status]func(*Invoice)
	Exit   map[Status]func(*Invoice)
	After  map[Status]func(*Invoice)
}

// Machine is the invoice state machine.
type Machine = fsm.Machine[Status, Event, *Invoice]

var table = []struct {
	event Event
	from  []Status
	to    Status
}{
	{EventPaymentPaid, []Status{StatusPending}, StatusPaid},
	{EventPaymentAuthorized, []Status{StatusPending}, StatusAuthorized},
	{EventPaymentAuthorized, []Status{StatusPaymentDeclined}, StatusAuthorized},
	{EventPaymentCaptured, []Status{StatusAuthorized}, StatusPaid},
	{EventPaymentVoided, []Status{StatusAuthorized}, StatusVoided},
	{EventPaymentRefunded, []Status{StatusPaid}, StatusRefunded},
	{EventTransactionDeclined, []Status{StatusPending}, StatusPaymentDeclined},
	{EventTransactionDeclined, []Status{StatusPaymentDeclined}, StatusPaymentDeclined},
	{EventTransactionDeclined, []Status{StatusAuthorized}, StatusAuthorized},
}

// NewMachine builds the invoice machine. Entering authorized and paid
// records AuthorizedAt and PaidAt using now, before custom enter hooks run.
func NewMachine(h Hooks, now func() time.Time) *Machine {
	cfg := fsm.Config[Status, Event, *Invoice]{
		Enter: map[Status]fsm.Hook[*Invoice]{},
		Exit:  map[Status]fsm.Hook[*Invoice]{},
		After: map[Status]fsm.Hook[*Invoice]{},
		State: func(inv *Invoice) Status {
			return inv.Status
		},
		SetState: func(inv *Invoice, s Status) {
			inv.Status = s
		},
	}
	for _, row := range table {
		for _, from := range row.from {
			cfg.Transitions = append(cfg.Transitions, fsm.Transition[Status, Event, *Invoice]{
				Event: row.event,
				From:  []Status{from},
				To:    row.to,
				Guard: h.Guards[Transition{Event: row.event, From: from}],
			})
		}
	}

	stamp := map[Status]func(inv *Invoice, t time.Time){
		StatusAuthorized: func(inv *Invoice, t time.Time) {
			if inv.AuthorizedAt == nil {
				inv.AuthorizedAt = &t
			}
		},
		StatusPaid: func(inv *Invoice, t time.Time) { inv.PaidAt = &t },
	}
	for _, s := range Statuses {
		builtin, custom := stamp[s], h.Enter[s]
		if builtin != nil || custom != nil {
			cfg.Enter[s] = func(inv *Invoice) {
				if builtin != nil {
					builtin(inv, now())
				}
				if custom != nil {
					custom(inv)
				}
			}
		}
		if fn := h.Exit[s]; fn != nil {
			cfg.Exit[s] = fsm.Hook[*Invoice](fn)
		}
		if fn := h.After[s]; fn != nil {
			cfg.After[s] = fsm.Hook[*Invoice](fn)
		}
	}
	return fsm.New(cfg)
}
