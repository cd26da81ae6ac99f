// Package modelpb declares the protobuf schemas of the pipeline components
// whose fitted models are persisted by the model store.
//
// The descriptors are assembled in code and served as dynamic messages, so
// no generated code is required to encode or decode a stored buffer.
package modelpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	Package  = "fate.model"
	fileName = "fate/model/pipeline_model.proto"
)

// Message names, relative to Package.
const (
	DataIOMeta            = "DataIOMeta"
	DataIOParam           = "DataIOParam"
	FeatureSelectionMeta  = "FeatureSelectionMeta"
	FeatureSelectionParam = "FeatureSelectionParam"
	LRModelMeta           = "LRModelMeta"
	LRModelParam          = "LRModelParam"
	PipelineModelMeta     = "PipelineModelMeta"
)

var (
	file  protoreflect.FileDescriptor
	types = map[string]protoreflect.MessageType{}
)

func init() {
	fd, err := protodesc.NewFile(fileDescriptorProto(), nil)
	if err != nil {
		panic(fmt.Errorf("modelpb: build %s: %w", fileName, err))
	}
	file = fd

	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		types[string(md.Name())] = dynamicpb.NewMessageType(md)
	}
}

// File returns the descriptor of the model schema file.
func File() protoreflect.FileDescriptor {
	return file
}

// Types returns every model message type in declaration order.
func Types() []protoreflect.MessageType {
	msgs := file.Messages()
	out := make([]protoreflect.MessageType, 0, msgs.Len())
	for i := 0; i < msgs.Len(); i++ {
		out = append(out, types[string(msgs.Get(i).Name())])
	}
	return out
}

// Type looks up a message type by its short name, e.g. "LRModelParam".
func Type(name string) (protoreflect.MessageType, bool) {
	mt, ok := types[name]
	return mt, ok
}

// New returns an empty message of the named type. It panics on unknown names
// and is meant for callers that reference the constants above.
func New(name string) proto.Message {
	mt, ok := types[name]
	if !ok {
		panic(fmt.Sprintf("modelpb: unknown message %q", name))
	}
	return mt.New().Interface()
}

type fieldKind = descriptorpb.FieldDescriptorProto_Type

const (
	kString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	kBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	kInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	kInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	kDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
)

func scalar(name string, number int32, kind fieldKind) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   kind.Enum(),
	}
}

func repeated(name string, number int32, kind fieldKind) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, kind)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  proto.String(name),
		Field: fields,
	}
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(fileName),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message(DataIOMeta,
				scalar("input_format", 1, kString),
				scalar("delimitor", 2, kString),
				scalar("data_type", 3, kString),
				scalar("with_label", 4, kBool),
				scalar("label_name", 5, kString),
				scalar("output_format", 6, kString),
			),
			message(DataIOParam,
				repeated("header", 1, kString),
				scalar("sid_name", 2, kString),
				scalar("label_name", 3, kString),
			),
			message(FeatureSelectionMeta,
				repeated("filter_methods", 1, kString),
				repeated("cols", 2, kString),
				scalar("need_run", 3, kBool),
			),
			message(FeatureSelectionParam,
				repeated("original_cols", 1, kString),
				repeated("left_cols", 2, kString),
				repeated("header", 3, kString),
			),
			message(LRModelMeta,
				scalar("penalty", 1, kString),
				scalar("tol", 2, kDouble),
				scalar("alpha", 3, kDouble),
				scalar("optimizer", 4, kString),
				scalar("batch_size", 5, kInt32),
				scalar("learning_rate", 6, kDouble),
				scalar("max_iter", 7, kInt32),
				scalar("early_stop", 8, kString),
				scalar("fit_intercept", 9, kBool),
				scalar("need_one_vs_rest", 10, kBool),
			),
			message(LRModelParam,
				scalar("iters", 1, kInt32),
				repeated("loss_history", 2, kDouble),
				scalar("is_converged", 3, kBool),
				repeated("weight", 4, kDouble),
				scalar("intercept", 5, kDouble),
				repeated("header", 6, kString),
			),
			message(PipelineModelMeta,
				repeated("component_keys", 1, kString),
				scalar("party_model_id", 2, kString),
				scalar("model_version", 3, kString),
				scalar("create_time", 4, kInt64),
			),
		},
	}
}
