package payment

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnsupportedInstrument is returned when no gateway is registered for an
// instrument type.
var ErrUnsupportedInstrument = errors.New("unsupported payment instrument")

// UnsupportedInstrumentError names the instrument type that has no gateway.
type UnsupportedInstrumentError struct {
	Type string
}

func (e *UnsupportedInstrumentError) Error() string {
	return fmt.Sprintf("no gateway for instrument type %q", e.Type)
}

// Is reports whether target is ErrUnsupportedInstrument.
func (e *UnsupportedInstrumentError) Is(target error) bool {
	return target == ErrUnsupportedInstrument
}

// Method binds an instrument type to the gateway that processes it.
type Method struct {
	Type    string
	Gateway Gateway
}

// Registry resolves instruments to methods. It is built once at startup and
// read-only afterwards.
type Registry struct {
	methods map[string]Method
}

// NewRegistry creates a Registry from methods. Later methods replace earlier
// ones of the same type.
func NewRegistry(methods ...Method) *Registry {
	r := &Registry{methods: make(map[string]Method, len(methods))}
	for _, m := range methods {
		r.methods[m.Type] = m
	}
	return r
}

// Lookup returns the method of an instrument type.
func (r *Registry) Lookup(typ string) (Method, error) {
	m, ok := r.methods[typ]
	if !ok || m.Gateway == nil {
		return Method{}, &UnsupportedInstrumentError{Type: typ}
	}
	return m, nil
}

// Resolve returns the method of instrument.
func (r *Registry) Resolve(instrument Instrument) (Method, error) {
	if instrument == nil {
		return Method{}, &UnsupportedInstrumentError{Type: "<nil>"}
	}
	return r.Lookup(instrument.InstrumentType())
}
