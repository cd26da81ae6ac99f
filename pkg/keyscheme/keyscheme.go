// Package keyscheme maps (component key, buffer name) pairs onto the flat
// storage keys of a pipeline model table.
//
// Two addressing modes exist. The component mode splits a storage key on its
// first ":" and is exact. The pipeline-wide mode takes the last "." segment of
// the storage key as the buffer name and is only used to enumerate a whole
// pipeline version.
package keyscheme

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ComponentDelimiter = ":"
	PipelineDelimiter  = "."
)

var (
	ErrInvalidComponentKey = errors.New("invalid component key")
	ErrMalformedStorageKey = errors.New("malformed storage key")
	ErrAmbiguousStorageKey = errors.New("ambiguous storage key")
)

// ValidateComponentKey rejects keys that cannot be recovered from a storage key.
func ValidateComponentKey(componentKey string) error {
	if componentKey == "" {
		return fmt.Errorf("%w: empty", ErrInvalidComponentKey)
	}
	if strings.Contains(componentKey, ComponentDelimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidComponentKey, componentKey, ComponentDelimiter)
	}
	return nil
}

// Encode builds the storage key of a buffer. Buffer names may contain the
// delimiter, component keys may not.
func Encode(componentKey, bufferName string) (string, error) {
	if err := ValidateComponentKey(componentKey); err != nil {
		return "", err
	}
	return componentKey + ComponentDelimiter + bufferName, nil
}

// Decode splits a storage key into the component key and buffer name that
// produced it.
func Decode(storageKey string) (componentKey, bufferName string, err error) {
	componentKey, bufferName, found := strings.Cut(storageKey, ComponentDelimiter)
	if !found || componentKey == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedStorageKey, storageKey)
	}
	return componentKey, bufferName, nil
}

// PipelineWideName is the buffer name of storageKey when a whole pipeline
// version is enumerated: the last "." separated segment. Keys whose component
// part contains a "." would lose part of the component key here and are
// rejected.
func PipelineWideName(storageKey string) (string, error) {
	componentKey, _, err := Decode(storageKey)
	if err != nil {
		return "", err
	}
	if strings.Contains(componentKey, PipelineDelimiter) {
		return "", fmt.Errorf("%w: component %q contains %q", ErrAmbiguousStorageKey, componentKey, PipelineDelimiter)
	}
	segments := strings.Split(storageKey, PipelineDelimiter)
	return segments[len(segments)-1], nil
}
