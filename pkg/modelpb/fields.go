package modelpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Set assigns a field by name. Repeated fields take a slice and replace the
// current contents.
func Set(m proto.Message, name string, value interface{}) error {
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return fmt.Errorf("modelpb: %s has no field %q", r.Descriptor().FullName(), name)
	}

	if !fd.IsList() {
		v, err := scalarValue(fd, value)
		if err != nil {
			return err
		}
		r.Set(fd, v)
		return nil
	}

	r.Clear(fd)
	list := r.Mutable(fd).List()
	switch vs := value.(type) {
	case []string:
		return appendAll(list, fd, vs)
	case []float64:
		return appendAll(list, fd, vs)
	case []int32:
		return appendAll(list, fd, vs)
	case []int64:
		return appendAll(list, fd, vs)
	case []bool:
		return appendAll(list, fd, vs)
	}
	return fmt.Errorf("modelpb: field %s: unsupported list value %T", fd.FullName(), value)
}

// MustSet is Set for static message construction; it panics on error.
func MustSet(m proto.Message, name string, value interface{}) proto.Message {
	if err := Set(m, name, value); err != nil {
		panic(err)
	}
	return m
}

// Get returns the value of a field by name, or an invalid Value when the
// message has no such field.
func Get(m proto.Message, name string) protoreflect.Value {
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return protoreflect.Value{}
	}
	return r.Get(fd)
}

func appendAll[T any](list protoreflect.List, fd protoreflect.FieldDescriptor, values []T) error {
	for _, v := range values {
		pv, err := scalarValue(fd, v)
		if err != nil {
			return err
		}
		list.Append(pv)
	}
	return nil
}

func scalarValue(fd protoreflect.FieldDescriptor, v interface{}) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind:
		switch n := v.(type) {
		case int32:
			return protoreflect.ValueOfInt32(n), nil
		case int:
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind:
		switch n := v.(type) {
		case int64:
			return protoreflect.ValueOfInt64(n), nil
		case int:
			return protoreflect.ValueOfInt64(int64(n)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := v.(float64); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("modelpb: field %s (%s): unsupported value %T", fd.FullName(), fd.Kind(), v)
}
