// Package versionlog keeps the human readable changelog of saved pipeline
// model versions.
package versionlog

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Recorder appends one changelog entry for a model version.
type Recorder interface {
	Record(namespace, name, message string) error
}

// Lister is implemented by recorders that can read their entries back.
type Lister interface {
	List(namespace, name string) ([]Entry, error)
}

type Entry struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func newEntry(namespace, name, message string, now time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Name:      name,
		Message:   message,
		CreatedAt: now.UTC(),
	}
}

// entryKey orders entries by creation time inside a version.
func entryKey(prefix string, e Entry) string {
	return fmt.Sprintf("%s%020d-%s", versionPrefix(prefix, e.Namespace, e.Name), e.CreatedAt.UnixNano(), e.ID)
}

func versionPrefix(prefix, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s/", prefix, url.PathEscape(namespace), url.PathEscape(name))
}

// Nop drops every entry.
type Nop struct{}

func (Nop) Record(namespace, name, message string) error {
	return nil
}
