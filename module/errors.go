package module

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a nil module, invalid identity or an empty
	// message.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotOwned reports a module that is not registered with this loader.
	ErrNotOwned = errors.New("module does not belong to this loader")
	// ErrInvalidTransition matches every *TransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError is returned when a module's observed status does not allow
// the requested operation.
type TransitionError struct {
	// Module is the module name.
	Module string
	// Op is the rejected operation: "start", "message", "death" or "remove".
	Op string
	// Status is what the loader read when it checked.
	Status Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s module %s: status = %s", e.Op, e.Module, e.Status)
}

// Is reports ErrInvalidTransition as a match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
