package hotkey

import (
	"errors"
	"fmt"
)

// ID identifies one registration within a Source.
type ID uint32

// Source is anything that can deliver triggers for registered bindings.
type Source interface {
	// Register arms b and returns the identifier its triggers carry.
	Register(b Binding) (ID, error)
	// Poll returns one pending trigger, or false when none is waiting. It never blocks.
	Poll() (ID, bool)
	// Close releases every registration.
	Close() error
}

var (
	ErrNotRegistered = errors.New("hotkey: binding not registered")
	ErrClosed        = errors.New("hotkey: source closed")
)

// RegistrationError reports a binding the platform refused.
type RegistrationError struct {
	Binding Binding
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register hotkey %s: %v", e.Binding, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
