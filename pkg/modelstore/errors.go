package modelstore

import (
	"errors"
	"fmt"
)

var (
	// ErrMetaMissing means a stored buffer has no meta map entry naming its
	// schema. It indicates an interrupted save or corruption.
	ErrMetaMissing = errors.New("meta map entry missing")

	ErrNilBuffer           = errors.New("nil model buffer")
	ErrHistoryNotSupported = errors.New("version log does not support listing")
)

// SchemaResolutionError reports a buffer whose schema cannot be resolved.
// Err is schema.ErrSchemaNotFound or ErrMetaMissing.
type SchemaResolutionError struct {
	StorageKey string
	TypeName   string
	Err        error
}

func (e *SchemaResolutionError) Error() string {
	if e.TypeName == "" {
		return fmt.Sprintf("resolve schema of %q: %v", e.StorageKey, e.Err)
	}
	return fmt.Sprintf("resolve schema %q of %q: %v", e.TypeName, e.StorageKey, e.Err)
}

func (e *SchemaResolutionError) Unwrap() error {
	return e.Err
}
