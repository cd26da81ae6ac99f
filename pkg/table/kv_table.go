package table

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fystack/modelstore/pkg/kvstore"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Key families inside the backing store.
const (
	familyTable     = "tbl"
	familyRecord    = "rec"
	familyMeta      = "meta"
	familyAttribute = "attr"
)

type kvManager struct {
	kv kvstore.KVStore
}

// NewKVManager serves tables out of a single key-value store. Namespace and
// name are path-escaped so that "/" inside them cannot collide.
func NewKVManager(kv kvstore.KVStore) Manager {
	return &kvManager{kv: kv}
}

func tableKey(namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s", familyTable, url.PathEscape(namespace), url.PathEscape(name))
}

func familyPrefix(family, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s/", family, url.PathEscape(namespace), url.PathEscape(name))
}

func (m *kvManager) Table(namespace, name string, opts Options) (Table, error) {
	if namespace == "" || name == "" {
		return nil, fmt.Errorf("table namespace and name are required")
	}

	raw, err := m.kv.Get(tableKey(namespace, name))
	switch {
	case err == nil:
		if opts.ErrorIfExist {
			return nil, fmt.Errorf("%w: %s/%s", ErrTableExists, namespace, name)
		}
		var desc Descriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			return nil, fmt.Errorf("decode table descriptor %s/%s: %w", namespace, name, err)
		}
		if opts.Partitions > 0 && opts.Partitions != desc.Partitions {
			logger.Debug("Table partition hint ignored for existing table",
				"namespace", namespace, "name", name,
				"requested", opts.Partitions, "actual", desc.Partitions)
		}
		return m.open(desc), nil
	case errors.Is(err, kvstore.ErrKeyNotFound):
		if !opts.CreateIfMissing {
			return nil, fmt.Errorf("%w: %s/%s", ErrTableNotFound, namespace, name)
		}
		return m.create(namespace, name, opts.Partitions)
	default:
		return nil, err
	}
}

func (m *kvManager) create(namespace, name string, partitions int) (Table, error) {
	if partitions <= 0 {
		partitions = 1
	}
	desc := Descriptor{
		Namespace:  namespace,
		Name:       name,
		Partitions: partitions,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}
	if err := m.kv.Put(tableKey(namespace, name), raw); err != nil {
		return nil, fmt.Errorf("create table %s/%s: %w", namespace, name, err)
	}
	logger.Info("Created model table", "namespace", namespace, "name", name, "partitions", partitions)
	return m.open(desc), nil
}

func (m *kvManager) open(desc Descriptor) Table {
	return &kvTable{
		kv:         m.kv,
		desc:       desc,
		recordPref: familyPrefix(familyRecord, desc.Namespace, desc.Name),
		metaPref:   familyPrefix(familyMeta, desc.Namespace, desc.Name),
		attrPref:   familyPrefix(familyAttribute, desc.Namespace, desc.Name),
	}
}

func (m *kvManager) List(namespace string) ([]Descriptor, error) {
	prefix := fmt.Sprintf("%s/%s/", familyTable, url.PathEscape(namespace))
	var out []Descriptor
	err := m.kv.Scan(prefix, func(key string, value []byte) error {
		var desc Descriptor
		if err := json.Unmarshal(value, &desc); err != nil {
			return fmt.Errorf("decode table descriptor %s: %w", key, err)
		}
		out = append(out, desc)
		return nil
	})
	return out, err
}

type kvTable struct {
	kv         kvstore.KVStore
	desc       Descriptor
	recordPref string
	metaPref   string
	attrPref   string
}

func (t *kvTable) Descriptor() Descriptor {
	return t.desc
}

func (t *kvTable) Put(key string, value []byte) error {
	return t.kv.Put(t.recordPref+key, value)
}

func (t *kvTable) Scan(fn ScanFunc) error {
	return t.kv.Scan(t.recordPref, func(key string, value []byte) error {
		return fn(strings.TrimPrefix(key, t.recordPref), value)
	})
}

func (t *kvTable) PutMetadata(kv map[string]string) error {
	return t.putFamily(t.metaPref, kv)
}

func (t *kvTable) GetAllMetadata() (map[string]string, error) {
	return t.getFamily(t.metaPref)
}

func (t *kvTable) PutAttributes(kv map[string]string) error {
	return t.putFamily(t.attrPref, kv)
}

func (t *kvTable) GetAttributes() (map[string]string, error) {
	return t.getFamily(t.attrPref)
}

func (t *kvTable) putFamily(prefix string, kv map[string]string) error {
	entries := lo.MapEntries(kv, func(k, v string) (string, []byte) {
		return prefix + k, []byte(v)
	})
	return t.kv.PutBatch(entries)
}

func (t *kvTable) getFamily(prefix string) (map[string]string, error) {
	out := make(map[string]string)
	err := t.kv.Scan(prefix, func(key string, value []byte) error {
		out[strings.TrimPrefix(key, prefix)] = string(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
