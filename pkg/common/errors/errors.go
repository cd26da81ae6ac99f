package errors

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks failures of the underlying storage engine.
// Callers match it with errors.Is and propagate it unchanged.
var ErrStoreUnavailable = errors.New("store unavailable")

func Wrap(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}

func New(msg string) error {
	return errors.New(msg)
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStoreUnavailable, e.err)
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.err}
}

// Unavailable tags err as a storage engine failure while keeping the
// original error reachable through errors.Is / errors.As.
// Unavailable(nil) returns nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &unavailableError{err: err}
}

// IsUnavailable reports whether err was produced by the storage engine.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
