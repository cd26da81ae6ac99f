// Package schema resolves stored type names to protobuf message factories.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/modelpb"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrSchemaNotFound = errors.New("schema not found")

// Descriptor is a constructible schema: the declared type name and a factory
// producing empty messages of that type.
type Descriptor struct {
	Name string
	New  func() proto.Message
}

// Source supplies a fixed collection of schema definitions.
type Source func() []protoreflect.MessageType

// Registry indexes schemas by their protobuf full name. The index is built on
// first use and never modified afterwards, so lookups need no locking.
type Registry struct {
	sources []Source

	once   sync.Once
	byName map[string]Descriptor
}

func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

var defaultRegistry = NewRegistry(modelpb.Types, WellKnownTypes)

// Default returns the process wide registry holding the model schemas and
// the protobuf wrapper types.
func Default() *Registry {
	return defaultRegistry
}

// WellKnownTypes are the protobuf wrapper and struct types.
func WellKnownTypes() []protoreflect.MessageType {
	msgs := []proto.Message{
		&wrapperspb.DoubleValue{},
		&wrapperspb.FloatValue{},
		&wrapperspb.Int64Value{},
		&wrapperspb.UInt64Value{},
		&wrapperspb.Int32Value{},
		&wrapperspb.UInt32Value{},
		&wrapperspb.BoolValue{},
		&wrapperspb.StringValue{},
		&wrapperspb.BytesValue{},
		&structpb.Struct{},
		&structpb.ListValue{},
		&structpb.Value{},
	}
	out := make([]protoreflect.MessageType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ProtoReflect().Type())
	}
	return out
}

// NameOf returns the type name recorded for m in the meta map.
func NameOf(m proto.Message) string {
	return string(m.ProtoReflect().Descriptor().FullName())
}

func (r *Registry) warmUp() {
	r.once.Do(func() {
		byName := make(map[string]Descriptor)
		for _, source := range r.sources {
			for _, mt := range source() {
				name := string(mt.Descriptor().FullName())
				if _, exists := byName[name]; exists {
					logger.Warn("Duplicate schema ignored", "name", name)
					continue
				}
				mt := mt
				byName[name] = Descriptor{
					Name: name,
					New: func() proto.Message {
						return mt.New().Interface()
					},
				}
			}
		}
		r.byName = byName
		logger.Debug("Schema registry warmed up", "schemas", len(byName))
	})
}

// Resolve returns the schema registered under name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.warmUp()
	desc, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	return desc, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.warmUp()
	_, ok := r.byName[name]
	return ok
}

// Names lists all registered type names in sorted order.
func (r *Registry) Names() []string {
	r.warmUp()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
