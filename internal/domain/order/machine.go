package order

import (
	"time"

	"github.com/xenking/merchant-billing/internal/fsm"
)

// Transition identifies one row of the order transition table.
type Transition struct {
	Event Event
	From  Status
}

// Hooks customize the order machine, e.g. to send notifications. Guards
// default to allowing the transition, hooks to doing nothing.
type Hooks struct {
	Guards map[Transition]func(*Order) bool
	Enter  map[Status]func(*Order)
	After  map[Status]func(*Order)
}

// Machine is the order state machine.
type Machine = fsm.Machine[Status, Event, *Order]

var table = []struct {
	event Event
	from  []Status
	to    Status
}{
	{EventProcessPayment, []Status{StatusCreated}, StatusPending},
	{EventApprovePayment, []Status{StatusPending}, StatusApproved},
	{EventProcessShipping, []Status{StatusApproved}, StatusShipping},
	{EventShip, []Status{StatusShipping}, StatusShipped},
	{EventConfirmReception, []Status{StatusShipped}, StatusReceived},
	{EventReject, []Status{StatusReceived}, StatusReturning},
	{EventConfirmReturn, []Status{StatusReturning, StatusShipped}, StatusReturned},
	{EventRefund, []Status{StatusReturned}, StatusRefunded},
	{EventCancel, []Status{StatusCreated, StatusPending}, StatusCanceled},
}

// NewMachine builds the order machine. Entering canceled records CanceledAt
// using now, before a custom enter hook runs.
func NewMachine(h Hooks, now func() time.Time) *Machine {
	cfg := fsm.Config[Status, Event, *Order]{
		Enter: map[Status]fsm.Hook[*Order]{},
		After: map[Status]fsm.Hook[*Order]{},
		State: func(o *Order) Status {
			return o.Status
		},
		SetState: func(o *Order, s Status) {
			o.Status = s
		},
	}
	for _, row := range table {
		for _, from := range row.from {
			cfg.Transitions = append(cfg.Transitions, fsm.Transition[Status, Event, *Order]{
				Event: row.event,
				From:  []Status{from},
				To:    row.to,
				Guard: h.Guards[Transition{Event: row.event, From: from}],
			})
		}
	}

	for s, fn := range h.Enter {
		cfg.Enter[s] = fsm.Hook[*Order](fn)
	}
	custom := h.Enter[StatusCanceled]
	cfg.Enter[StatusCanceled] = func(o *Order) {
		t := now()
		o.CanceledAt = &t
		if custom != nil {
			custom(o)
		}
	}
	for s, fn := range h.After {
		cfg.After[s] = fsm.Hook[*Order](fn)
	}
	return fsm.New(cfg)
}
