// Package fault defines the error kinds shared by the driver packages.
//
// Concrete errors wrap one of the kinds below so callers can classify a
// failure with errors.Is without depending on the package that produced it.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for a value, index or buffer window outside
	// of what the operation accepts. Nothing has been sent to the hardware.
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidOperation is returned when an operation is not allowed in the
	// current state, e.g. reading while the caller holds a section.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrCommunication is returned when the USB bridge could not be used.
	ErrCommunication = errors.New("communication failure")
)

// Range builds an ErrOutOfRange error naming the offending argument.
func Range(name string, value, lo, hi any) error {
	return fmt.Errorf("%s = %v, want [%v, %v]: %w", name, value, lo, hi, ErrOutOfRange)
}

// Invalid builds an ErrInvalidOperation error with a reason.
func Invalid(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidOperation)
}

// Comm wraps err from the underlying bridge into an ErrCommunication.
func Comm(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrCommunication, err)
}
