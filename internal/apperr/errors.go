// Package apperr holds the sentinel errors shared by the simulation,
// optimization and storage layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a public operation rejects its input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a stored record does not exist.
	ErrNotFound = errors.New("not found")
)

// Invalid wraps ErrInvalidArgument with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsInvalid reports whether err was caused by a rejected argument.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
