package grpcsvc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ProtoFile — путь описания сервиса в реестре protobuf.
// Совпадает с proto/socks/v1/sock_service.proto.
const ProtoFile = "socks/v1/sock_service.proto"

const protoPackage = "socks.v1"

// File — дескриптор socks/v1/sock_service.proto. Регистрируется в
// protoregistry.GlobalFiles при инициализации пакета, поэтому сервис
// доступен через gRPC reflection.
var File = mustRegisterFile(sockServiceFile())

func sockServiceFile() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/vladislavdragonenkov/sockstore/internal/service/grpc;grpcsvc"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Sock",
				scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				scalarField("color", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("size", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalarField("cotton_percentage", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalarField("quantity", 5, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			),
			message("AddSocksRequest", messageField("sock", 1, "Sock")),
			message("GetSocksRequest", scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
			message("GetSocksByColorRequest", scalarField("color", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("GetSocksBySizeRequest", scalarField("size", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
			message("GetSocksByCompositionRequest", scalarField("cotton_percentage", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
			message("ListSocksRequest"),
			message("ListSocksResponse", repeatedField("socks", 1, "Sock")),
			message("CountSocksRequest",
				optionalField("color", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				optionalField("size", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				optionalField("cotton_min", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				optionalField("cotton_max", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			),
			message("CountSocksResponse", scalarField("quantity", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
			message("SellSocksRequest",
				scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
				messageField("sock", 2, "Sock"),
			),
			message("SellSocksResponse",
				messageField("sock", 1, "Sock"),
				scalarField("message", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			message("DeleteSocksRequest", scalarField("id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
			message("SockResponse", messageField("sock", 1, "Sock")),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("SockService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc("AddSocks", "AddSocksRequest", "SockResponse"),
				rpc("GetSocks", "GetSocksRequest", "SockResponse"),
				rpc("ListSocks", "ListSocksRequest", "ListSocksResponse"),
				rpc("GetSocksByColor", "GetSocksByColorRequest", "SockResponse"),
				rpc("GetSocksBySize", "GetSocksBySizeRequest", "SockResponse"),
				rpc("GetSocksByComposition", "GetSocksByCompositionRequest", "SockResponse"),
				rpc("CountSocks", "CountSocksRequest", "CountSocksResponse"),
				rpc("SellSocks", "SellSocksRequest", "SellSocksResponse"),
				rpc("DeleteSocks", "DeleteSocksRequest", "SockResponse"),
			},
		}},
	}
}

// message собирает описание сообщения. Для proto3 optional полей
// добавляются синтетические oneof с именем "_<поле>".
func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
	for _, field := range fields {
		if !field.GetProto3Optional() {
			continue
		}
		field.OneofIndex = proto.Int32(int32(len(msg.OneofDecl))) //nolint:gosec // a handful of fields.
		msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{
			Name: proto.String("_" + field.GetName()),
		})
	}
	return msg
}

func scalarField(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   kind.Enum(),
	}
}

func optionalField(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	field := scalarField(name, number, kind)
	field.Proto3Optional = proto.Bool(true)
	return field
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	field := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	field.TypeName = proto.String("." + protoPackage + "." + typeName)
	return field
}

func repeatedField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	field := messageField(name, number, typeName)
	field.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return field
}

func rpc(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + protoPackage + "." + input),
		OutputType: proto.String("." + protoPackage + "." + output),
	}
}

func mustRegisterFile(fdp *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("build %s: %v", fdp.GetName(), err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s: %v", fdp.GetName(), err))
	}
	return fd
}

// newMessage создаёт пустое сообщение socks.v1 по короткому имени.
func newMessage(name protoreflect.Name) *dynamicpb.Message {
	md := File.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("%s: unknown message %s", ProtoFile, name))
	}
	return dynamicpb.NewMessage(md)
}
