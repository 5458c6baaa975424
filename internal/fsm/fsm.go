// Package fsm implements state machines described by an explicit transition
// table.
//
// A Machine does not own state: it reads and writes the state of a subject
// through accessor functions, so one Machine value can drive many subjects.
package fsm

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrTransitionRejected is returned when an event cannot be fired from the
// current state or its guard refused it.
var ErrTransitionRejected = errors.New("transition rejected")

// TransitionError describes a rejected transition.
type TransitionError[S, E comparable] struct {
	Event  E
	State  S
	Reason string
}

func (e *TransitionError[S, E]) Error() string {
	return fmt.Sprintf("transition %v from %v rejected: %s", e.Event, e.State, e.Reason)
}

// Is reports whether target is ErrTransitionRejected.
func (e *TransitionError[S, E]) Is(target error) bool {
	return target == ErrTransitionRejected
}

const (
	reasonNoTransition = "no transition"
	reasonGuard        = "guard refused"
)

// Transition moves a subject from From to To on Event. Guard is optional.
type Transition[S, E comparable, T any] struct {
	Event E
	From  []S
	To    S
	Guard func(T) bool
}

// Hook is a side effect attached to a state.
type Hook[T any] func(T)

// Config describes a machine.
type Config[S, E comparable, T any] struct {
	Transitions []Transition[S, E, T]
	// Exit hooks run for the old state before it is left.
	Exit map[S]Hook[T]
	// Enter hooks run for the new state before it is stored.
	Enter map[S]Hook[T]
	// After hooks run once the new state is stored.
	After map[S]Hook[T]

	State    func(T) S
	SetState func(T, S)
}

type key[S, E comparable] struct {
	event E
	from  S
}

// Machine fires events against subjects of type T.
type Machine[S, E comparable, T any] struct {
	table    map[key[S, E]]Transition[S, E, T]
	events   []E
	exit     map[S]Hook[T]
	enter    map[S]Hook[T]
	after    map[S]Hook[T]
	state    func(T) S
	setState func(T, S)
}

// New builds a Machine. It panics on a malformed config: missing accessors
// or two transitions for the same (event, from) pair.
func New[S, E comparable, T any](cfg Config[S, E, T]) *Machine[S, E, T] {
	if cfg.State == nil || cfg.SetState == nil {
		panic("fsm: state accessors are required")
	}
	m := &Machine[S, E, T]{
		table:    make(map[key[S, E]]Transition[S, E, T]),
		exit:     cfg.Exit,
		enter:    cfg.Enter,
		after:    cfg.After,
		state:    cfg.State,
		setState: cfg.SetState,
	}
	seen := make(map[E]struct{})
	for _, t := range cfg.Transitions {
		for _, from := range t.From {
			k := key[S, E]{event: t.Event, from: from}
			if _, dup := m.table[k]; dup {
				panic(fmt.Sprintf("fsm: duplicate transition %v from %v", t.Event, from))
			}
			m.table[k] = t
		}
		if _, ok := seen[t.Event]; !ok {
			seen[t.Event] = struct{}{}
			m.events = append(m.events, t.Event)
		}
	}
	return m
}

// Events lists every event of the table in declaration order.
func (m *Machine[S, E, T]) Events() []E {
	return append([]E(nil), m.events...)
}

// Can reports whether event would be accepted for subject.
func (m *Machine[S, E, T]) Can(subject T, event E) bool {
	t, ok := m.table[key[S, E]{event: event, from: m.state(subject)}]
	if !ok {
		return false
	}
	return t.Guard == nil || t.Guard(subject)
}

// Fire applies event to subject. On rejection the state is unchanged and a
// *TransitionError is returned.
func (m *Machine[S, E, T]) Fire(subject T, event E) error {
	from := m.state(subject)
	t, ok := m.table[key[S, E]{event: event, from: from}]
	if !ok {
		return &TransitionError[S, E]{Event: event, State: from, Reason: reasonNoTransition}
	}
	if t.Guard != nil && !t.Guard(subject) {
		return &TransitionError[S, E]{Event: event, State: from, Reason: reasonGuard}
	}

	if h := m.exit[from]; h != nil {
		h(subject)
	}
	if h := m.enter[t.To]; h != nil {
		h(subject)
	}
	m.setState(subject, t.To)
	if h := m.after[t.To]; h != nil {
		h(subject)
	}
	return nil
}
