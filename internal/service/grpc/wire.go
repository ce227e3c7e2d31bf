package grpcsvc

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// wireMessage связывает Go-структуру с сообщением socks.v1 того же имени.
// protoName не обращается к получателю и допустим на nil.
type wireMessage interface {
	protoName() protoreflect.Name
	writeTo(m protoreflect.Message)
	readFrom(m protoreflect.Message)
}

// wirePtr — указатель на структуру сообщения, нужен generic-обработчикам,
// которые сами создают экземпляр через new(T).
type wirePtr[T any] interface {
	*T
	wireMessage
}

// toProto переносит структуру в новое protobuf-сообщение.
func toProto(w wireMessage) *dynamicpb.Message {
	m := newMessage(w.protoName())
	w.writeTo(m)
	return m
}

// fromProto читает protobuf-сообщение в новую структуру.
func fromProto[T any, P wirePtr[T]](m protoreflect.Message) P {
	out := P(new(T))
	out.readFrom(m)
	return out
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("%s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(field(m, name), protoreflect.ValueOfString(v))
	}
}

func setInt32(m protoreflect.Message, name protoreflect.Name, v int) {
	if v != 0 {
		m.Set(field(m, name), protoreflect.ValueOfInt32(int32(v))) //nolint:gosec // percent values.
	}
}

func setInt64(m protoreflect.Message, name protoreflect.Name, v int64) {
	if v != 0 {
		m.Set(field(m, name), protoreflect.ValueOfInt64(v))
	}
}

func setMessage(m protoreflect.Message, name protoreflect.Name, w wireMessage) {
	w.writeTo(m.Mutable(field(m, name)).Message())
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func getInt64(m protoreflect.Message, name protoreflect.Name) int64 {
	return m.Get(field(m, name)).Int()
}

func getInt(m protoreflect.Message, name protoreflect.Name) int {
	return int(m.Get(field(m, name)).Int())
}

func getMessage(m protoreflect.Message, name protoreflect.Name, w wireMessage) {
	w.readFrom(m.Get(field(m, name)).Message())
}

func optionalString(m protoreflect.Message, name protoreflect.Name) *string {
	fd := field(m, name)
	if !m.Has(fd) {
		return nil
	}
	v := m.Get(fd).String()
	return &v
}

func optionalInt(m protoreflect.Message, name protoreflect.Name) *int {
	fd := field(m, name)
	if !m.Has(fd) {
		return nil
	}
	v := int(m.Get(fd).Int())
	return &v
}
