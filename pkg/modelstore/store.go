// Package modelstore persists the model buffers of pipeline components.
//
// A pipeline model version (party model id, model version) maps to one
// table. Every buffer is stored under a key derived from its component key
// and buffer name, and the table's meta map records which schema decodes it.
package modelstore

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fystack/modelstore/pkg/emptyfill"
	"github.com/fystack/modelstore/pkg/keyscheme"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/metrics"
	"github.com/fystack/modelstore/pkg/schema"
	"github.com/fystack/modelstore/pkg/table"
	"github.com/fystack/modelstore/pkg/versionlog"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
)

const (
	opSave     = "save"
	opRead     = "read"
	opCollect  = "collect"
	opSaveMeta = "save_meta"
	opGetMeta  = "get_meta"
)

type Store struct {
	tables   table.Manager
	registry *schema.Registry
	recorder versionlog.Recorder
	mode     RuntimeMode
	now      func() time.Time
}

type Option func(*Store)

// WithRegistry replaces the default schema registry.
func WithRegistry(registry *schema.Registry) Option {
	return func(s *Store) { s.registry = registry }
}

// WithRecorder sets where version log entries go. Without it entries are
// dropped.
func WithRecorder(recorder versionlog.Recorder) Option {
	return func(s *Store) { s.recorder = recorder }
}

func WithRuntimeMode(mode RuntimeMode) Option {
	return func(s *Store) { s.mode = mode }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(tables table.Manager, opts ...Option) *Store {
	s := &Store{
		tables:   tables,
		registry: schema.Default(),
		recorder: versionlog.Nop{},
		mode:     Standalone,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultVersionLog is the changelog message used when Save gets none.
func DefaultVersionLog(at time.Time) string {
	return fmt.Sprintf("[AUTO] save model at %s.", at.Format(time.RFC3339))
}

func (s *Store) tableOptions(create bool) table.Options {
	return table.Options{
		Partitions:      PartitionCount(s.mode),
		CreateIfMissing: create,
		ErrorIfExist:    false,
	}
}

// Save writes every buffer of one component, then the meta map entries for
// them, then a version log entry. It is not atomic: after an error the
// version may hold part of the buffers.
func (s *Store) Save(componentKey string, buffers map[string]proto.Message, partyModelID, modelVersion, versionLog string) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation(opSave, start, err) }(time.Now())

	if err := keyscheme.ValidateComponentKey(componentKey); err != nil {
		return err
	}

	names := lo.Keys(buffers)
	sort.Strings(names)

	// resolve everything up front so an unreadable buffer is never written
	storageKeys := make(map[string]string, len(names))
	for _, name := range names {
		msg := buffers[name]
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrNilBuffer, name)
		}
		storageKey, err := keyscheme.Encode(componentKey, name)
		if err != nil {
			return err
		}
		typeName := schema.NameOf(msg)
		if _, err := s.registry.Resolve(typeName); err != nil {
			return &SchemaResolutionError{StorageKey: storageKey, TypeName: typeName, Err: err}
		}
		storageKeys[name] = storageKey
	}

	tbl, err := s.tables.Table(partyModelID, modelVersion, s.tableOptions(true))
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(names))
	marshal := proto.MarshalOptions{Deterministic: true}
	for _, name := range names {
		msg := buffers[name]
		storageKey := storageKeys[name]

		raw, err := marshal.Marshal(msg)
		if err != nil {
			return fmt.Errorf("serialize buffer %q: %w", storageKey, err)
		}
		if len(raw) == 0 {
			metrics.EmptyPayloadsWrapped.Inc()
		}
		if err := tbl.Put(storageKey, emptyfill.Wrap(raw)); err != nil {
			return fmt.Errorf("put buffer %q: %w", storageKey, err)
		}
		metrics.BuffersWritten.Inc()
		meta[storageKey] = schema.NameOf(msg)
	}

	if err := tbl.PutMetadata(meta); err != nil {
		return fmt.Errorf("save meta map: %w", err)
	}

	if versionLog == "" {
		versionLog = DefaultVersionLog(s.now())
	}
	if err := s.recorder.Record(partyModelID, modelVersion, versionLog); err != nil {
		logger.Error("Failed to record model version", err,
			"party_model_id", partyModelID, "model_version", modelVersion)
	}

	logger.Info("Saved component model",
		"component", componentKey,
		"party_model_id", partyModelID,
		"model_version", modelVersion,
		"buffers", len(names),
	)
	return nil
}

// Read returns the buffers of one component keyed by buffer name. A version
// that was never saved yields an empty map. The read fails as a whole on the
// first buffer that cannot be resolved or decoded.
func (s *Store) Read(componentKey, partyModelID, modelVersion string) (buffers map[string]proto.Message, err error) {
	defer func(start time.Time) { metrics.ObserveOperation(opRead, start, err) }(time.Now())

	buffers = make(map[string]proto.Message)
	tbl, meta, err := s.openForRead(partyModelID, modelVersion)
	if err != nil || tbl == nil {
		return buffers, err
	}

	err = tbl.Scan(func(storageKey string, value []byte) error {
		component, bufferName, err := keyscheme.Decode(storageKey)
		if err != nil {
			logger.Warn("Skipping undecodable storage key", "storage_key", storageKey,
				"party_model_id", partyModelID, "model_version", modelVersion)
			return nil
		}
		if component != componentKey {
			return nil
		}

		msg, err := s.decode(storageKey, value, meta)
		if err != nil {
			return err
		}
		buffers[bufferName] = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

// Collect returns every buffer of a pipeline version keyed by its
// pipeline-wide name (see keyscheme.PipelineWideName). It is meant for
// inspection and export, not for loading a component.
func (s *Store) Collect(partyModelID, modelVersion string) (buffers map[string]proto.Message, err error) {
	defer func(start time.Time) { metrics.ObserveOperation(opCollect, start, err) }(time.Now())

	buffers = make(map[string]proto.Message)
	tbl, meta, err := s.openForRead(partyModelID, modelVersion)
	if err != nil || tbl == nil {
		return buffers, err
	}

	owners := make(map[string]string)
	err = tbl.Scan(func(storageKey string, value []byte) error {
		name, err := keyscheme.PipelineWideName(storageKey)
		if err != nil {
			return err
		}
		if owner, dup := owners[name]; dup {
			return fmt.Errorf("%w: %q and %q both collect as %q",
				keyscheme.ErrAmbiguousStorageKey, owner, storageKey, name)
		}
		owners[name] = storageKey

		msg, err := s.decode(storageKey, value, meta)
		if err != nil {
			return err
		}
		buffers[name] = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buffers, nil
}

// openForRead returns a nil table when the version does not exist.
func (s *Store) openForRead(partyModelID, modelVersion string) (table.Table, map[string]string, error) {
	tbl, err := s.tables.Table(partyModelID, modelVersion, s.tableOptions(false))
	if errors.Is(err, table.ErrTableNotFound) {
		logger.Debug("Model version not found", "party_model_id", partyModelID, "model_version", modelVersion)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	meta, err := tbl.GetAllMetadata()
	if err != nil {
		return nil, nil, fmt.Errorf("load meta map: %w", err)
	}
	return tbl, meta, nil
}

func (s *Store) decode(storageKey string, value []byte, meta map[string]string) (proto.Message, error) {
	typeName, ok := meta[storageKey]
	if !ok {
		return nil, &SchemaResolutionError{StorageKey: storageKey, Err: ErrMetaMissing}
	}
	desc, err := s.registry.Resolve(typeName)
	if err != nil {
		return nil, &SchemaResolutionError{StorageKey: storageKey, TypeName: typeName, Err: err}
	}

	attempt, err := emptyfill.Unwrap(bytes.Clone(value), desc)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", storageKey, err)
	}
	metrics.BuffersDecoded.WithLabelValues(attempt.Strategy.String()).Inc()
	logger.Debug("Decoded model buffer", "storage_key", storageKey, "schema", typeName, "strategy", attempt.Strategy.String())
	return attempt.Message, nil
}

// SaveMeta stores pipeline level key/values, kept apart from the buffer meta
// map.
func (s *Store) SaveMeta(kv map[string]string, partyModelID, modelVersion string) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation(opSaveMeta, start, err) }(time.Now())

	tbl, err := s.tables.Table(partyModelID, modelVersion, s.tableOptions(true))
	if err != nil {
		return err
	}
	return tbl.PutAttributes(kv)
}

// GetMeta returns the pipeline level key/values, empty for unknown versions.
func (s *Store) GetMeta(partyModelID, modelVersion string) (kv map[string]string, err error) {
	defer func(start time.Time) { metrics.ObserveOperation(opGetMeta, start, err) }(time.Now())

	tbl, err := s.tables.Table(partyModelID, modelVersion, s.tableOptions(false))
	if errors.Is(err, table.ErrTableNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return tbl.GetAttributes()
}

// History lists the version log entries of a model version when the
// configured recorder can read them back.
func (s *Store) History(partyModelID, modelVersion string) ([]versionlog.Entry, error) {
	lister, ok := s.recorder.(versionlog.Lister)
	if !ok {
		return nil, ErrHistoryNotSupported
	}
	return lister.List(partyModelID, modelVersion)
}

// ModelVersions lists the saved versions of a party model.
func (s *Store) ModelVersions(partyModelID string) ([]table.Descriptor, error) {
	return s.tables.List(partyModelID)
}
