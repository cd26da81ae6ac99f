package kvstore

import "errors"

var ErrKeyNotFound = errors.New("key not found")

// ScanFunc is called for every key/value pair visited by Scan. The value
// slice is only valid for the duration of the call. Returning an error stops
// the scan and the error is returned from Scan.
type ScanFunc func(key string, value []byte) error

// KVStore defines the interface for a key-value store.
type KVStore interface {
	// Put stores a key-value pair in the store.
	Put(key string, value []byte) error

	// PutBatch stores all pairs in a single transaction.
	PutBatch(entries map[string][]byte) error

	// Get retrieves the value associated with a key. If the key is not found, it returns ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Has reports whether a key exists.
	Has(key string) (bool, error)

	// Scan visits every pair whose key starts with prefix, in key order.
	Scan(prefix string, fn ScanFunc) error

	// Delete removes a key-value pair from the store.
	Delete(key string) error

	// Close closes the key-value store.
	Close() error
}
