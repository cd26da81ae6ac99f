// Package emptyfill keeps an all-default message distinguishable from a
// missing value. Protobuf encodes a message whose fields all hold their
// defaults as zero bytes; such payloads are stored as a small marker message
// instead and turned back into an empty message of the target schema on read.
package emptyfill

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fystack/modelstore/pkg/logger"
	"github.com/fystack/modelstore/pkg/schema"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	MarkerTypeName = "fate.flow.DefaultEmptyFillMessage"

	// MarkerFieldNumber is the field carrying the flag. It is the largest
	// valid field number so no model schema declares it.
	MarkerFieldNumber protowire.Number = protowire.MaxValidNumber

	markerFlag = "set"
)

var (
	ErrMarkerPayload = errors.New("payload is an empty-fill marker")
	ErrNotMarker     = errors.New("payload is not an empty-fill marker")
)

var (
	markerType  protoreflect.MessageType
	markerField protoreflect.FieldDescriptor
	markerBytes []byte
)

func init() {
	fd, err := protodesc.NewFile(&descriptorpb.FileDescriptorProto{
		Name:    proto.String("fate/flow/default_empty_fill.proto"),
		Package: proto.String("fate.flow"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("DefaultEmptyFillMessage"),
			Field: []*descriptorpb.FieldDescriptorProto{{
				Name:   proto.String("flag"),
				Number: proto.Int32(int32(MarkerFieldNumber)),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			}},
		}},
	}, nil)
	if err != nil {
		panic(fmt.Errorf("emptyfill: build marker descriptor: %w", err))
	}

	md := fd.Messages().Get(0)
	markerType = dynamicpb.NewMessageType(md)
	markerField = md.Fields().ByNumber(MarkerFieldNumber)

	marker := markerType.New()
	marker.Set(markerField, protoreflect.ValueOfString(markerFlag))
	markerBytes, err = proto.MarshalOptions{Deterministic: true}.Marshal(marker.Interface())
	if err != nil {
		panic(fmt.Errorf("emptyfill: marshal marker: %w", err))
	}
}

// MarkerBytes returns the stored form of an intentionally empty payload.
func MarkerBytes() []byte {
	return bytes.Clone(markerBytes)
}

// Wrap returns payload unchanged unless it is empty, in which case the
// marker bytes are returned.
func Wrap(payload []byte) []byte {
	if len(payload) == 0 {
		return MarkerBytes()
	}
	return payload
}

// Strategy names one way of decoding a stored payload.
type Strategy int

const (
	TryDirect Strategy = iota
	TryMarkerFallback
)

func (s Strategy) String() string {
	switch s {
	case TryDirect:
		return "direct"
	case TryMarkerFallback:
		return "marker_fallback"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Attempt is the outcome of decoding a payload with one strategy.
type Attempt struct {
	Strategy Strategy
	Message  proto.Message
	Err      error
}

func (a Attempt) OK() bool {
	return a.Err == nil
}

// DecodeError reports a payload that neither decodes as the target schema
// nor as the marker. Err is the error of the direct attempt.
type DecodeError struct {
	TypeName string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.TypeName, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Unwrap decodes raw as desc. It tries the payload as-is first and falls back
// to the marker interpretation, which yields an all-default message.
func Unwrap(raw []byte, desc schema.Descriptor) (Attempt, error) {
	direct := Direct(raw, desc)
	if direct.OK() {
		return direct, nil
	}

	fallback := MarkerFallback(raw, desc)
	if fallback.OK() {
		return fallback, nil
	}

	logger.Debug("Empty-fill fallback failed",
		"schema", desc.Name,
		"direct_error", direct.Err.Error(),
		"fallback_error", fallback.Err.Error(),
	)
	return direct, &DecodeError{TypeName: desc.Name, Err: direct.Err}
}

// Direct unmarshals raw into a new desc message. Payloads carrying the marker
// field are rejected so the marker never leaks into a model message as an
// unknown field.
func Direct(raw []byte, desc schema.Descriptor) Attempt {
	msg := desc.New()
	if err := proto.Unmarshal(raw, msg); err != nil {
		return Attempt{Strategy: TryDirect, Err: err}
	}
	if carriesMarker(msg.ProtoReflect().GetUnknown()) {
		return Attempt{Strategy: TryDirect, Err: ErrMarkerPayload}
	}
	return Attempt{Strategy: TryDirect, Message: msg}
}

// MarkerFallback succeeds when raw is a marker with its flag set and returns
// the empty message of desc.
func MarkerFallback(raw []byte, desc schema.Descriptor) Attempt {
	marker := markerType.New()
	if err := proto.Unmarshal(raw, marker.Interface()); err != nil {
		return Attempt{Strategy: TryMarkerFallback, Err: err}
	}
	if !marker.Has(markerField) || len(marker.GetUnknown()) > 0 {
		return Attempt{Strategy: TryMarkerFallback, Err: ErrNotMarker}
	}

	msg := desc.New()
	if err := proto.Unmarshal(nil, msg); err != nil {
		return Attempt{Strategy: TryMarkerFallback, Err: err}
	}
	return Attempt{Strategy: TryMarkerFallback, Message: msg}
}

// IsMarker reports whether raw is exactly the marker encoding.
func IsMarker(raw []byte) bool {
	return bytes.Equal(raw, markerBytes)
}

func carriesMarker(unknown []byte) bool {
	for len(unknown) > 0 {
		num, _, n := protowire.ConsumeField(unknown)
		if n < 0 {
			return false
		}
		if num == MarkerFieldNumber {
			return true
		}
		unknown = unknown[n:]
	}
	return false
}
