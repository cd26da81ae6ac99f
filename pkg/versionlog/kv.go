package versionlog

import (
	"fmt"
	"time"

	"github.com/fystack/modelstore/pkg/kvstore"
	"github.com/goccy/go-json"
)

const DefaultKVPrefix = "vlog"

// KVRecorder stores entries next to the model tables in the local store.
type KVRecorder struct {
	kv     kvstore.KVStore
	prefix string
	now    func() time.Time
}

func NewKVRecorder(kv kvstore.KVStore, prefix string) *KVRecorder {
	if prefix == "" {
		prefix = DefaultKVPrefix
	}
	return &KVRecorder{kv: kv, prefix: prefix, now: time.Now}
}

func (r *KVRecorder) Record(namespace, name, message string) error {
	entry := newEntry(namespace, name, message, r.now())
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := r.kv.Put(entryKey(r.prefix, entry), raw); err != nil {
		return fmt.Errorf("record version %s/%s: %w", namespace, name, err)
	}
	return nil
}

// List returns the entries of one version, oldest first.
func (r *KVRecorder) List(namespace, name string) ([]Entry, error) {
	var entries []Entry
	err := r.kv.Scan(versionPrefix(r.prefix, namespace, name), func(key string, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode version entry %s: %w", key, err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
