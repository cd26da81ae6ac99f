// Package table provides namespace/name addressed tables on top of a
// key-value store. A pipeline model version lives in one table.
package table

import "errors"

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// ScanFunc receives every record of a table. The value slice is only valid
// for the duration of the call.
type ScanFunc func(key string, value []byte) error

// Options controls how Manager.Table opens a table.
type Options struct {
	// Partitions is the physical partition count requested on creation.
	Partitions      int
	CreateIfMissing bool
	ErrorIfExist    bool
}

// Descriptor is persisted once per table when it is created.
type Descriptor struct {
	Namespace  string `json:"namespace"`
	Name       string `json:"name"`
	Partitions int    `json:"partitions"`
	CreatedAt  string `json:"created_at"`
}

type Manager interface {
	// Table opens (namespace, name). It returns ErrTableNotFound when the
	// table does not exist and opts.CreateIfMissing is false, and
	// ErrTableExists when it exists and opts.ErrorIfExist is true.
	Table(namespace, name string, opts Options) (Table, error)

	// List returns the descriptors of every table in namespace.
	List(namespace string) ([]Descriptor, error)
}

type Table interface {
	Descriptor() Descriptor

	// Put writes one record, overwriting any previous value.
	Put(key string, value []byte) error

	// Scan visits every record in key order.
	Scan(fn ScanFunc) error

	// PutMetadata upserts entries of the record meta map.
	PutMetadata(kv map[string]string) error

	// GetAllMetadata returns the whole record meta map.
	GetAllMetadata() (map[string]string, error)

	// PutAttributes upserts table level attributes, kept apart from the
	// record meta map.
	PutAttributes(kv map[string]string) error

	GetAttributes() (map[string]string, error)
}
