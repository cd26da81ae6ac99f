package versionlog

import (
	"fmt"
	"sort"
	"time"

	"github.com/fystack/modelstore/pkg/infra"
	"github.com/goccy/go-json"
	"github.com/hashicorp/consul/api"
)

const DefaultConsulPrefix = "model_versions"

// ConsulRecorder keeps the changelog in Consul KV so every node of a cluster
// sees the same history.
type ConsulRecorder struct {
	consulKV infra.ConsulKV
	prefix   string
	now      func() time.Time
}

func NewConsulRecorder(consulKV infra.ConsulKV, prefix string) *ConsulRecorder {
	if prefix == "" {
		prefix = DefaultConsulPrefix
	}
	return &ConsulRecorder{consulKV: consulKV, prefix: prefix, now: time.Now}
}

func (r *ConsulRecorder) Record(namespace, name, message string) error {
	entry := newEntry(namespace, name, message, r.now())
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pair := &api.KVPair{
		Key:   entryKey(r.prefix, entry),
		Value: raw,
	}
	if _, err := r.consulKV.Put(pair, nil); err != nil {
		return fmt.Errorf("failed to save version entry: %w", err)
	}
	return nil
}

func (r *ConsulRecorder) List(namespace, name string) ([]Entry, error) {
	pairs, _, err := r.consulKV.List(versionPrefix(r.prefix, namespace, name), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list version entries: %w", err)
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	entries := make([]Entry, 0, len(pairs))
	for _, pair := range pairs {
		var e Entry
		if err := json.Unmarshal(pair.Value, &e); err != nil {
			return nil, fmt.Errorf("decode version entry %s: %w", pair.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
