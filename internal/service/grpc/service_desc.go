package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

const serviceName = "socks.v1.SockService"

// Полные имена методов SockService.
const (
	MethodAddSocks              = "/" + serviceName + "/AddSocks"
	MethodGetSocks              = "/" + serviceName + "/GetSocks"
	MethodListSocks             = "/" + serviceName + "/ListSocks"
	MethodGetSocksByColor       = "/" + serviceName + "/GetSocksByColor"
	MethodGetSocksBySize        = "/" + serviceName + "/GetSocksBySize"
	MethodGetSocksByComposition = "/" + serviceName + "/GetSocksByComposition"
	MethodCountSocks            = "/" + serviceName + "/CountSocks"
	MethodSellSocks             = "/" + serviceName + "/SellSocks"
	MethodDeleteSocks           = "/" + serviceName + "/DeleteSocks"
)

// SockServiceServer — серверная часть socks.v1.SockService.
type SockServiceServer interface {
	AddSocks(context.Context, *AddSocksRequest) (*SockResponse, error)
	GetSocks(context.Context, *GetSocksRequest) (*SockResponse, error)
	ListSocks(context.Context, *ListSocksRequest) (*ListSocksResponse, error)
	GetSocksByColor(context.Context, *GetSocksByColorRequest) (*SockResponse, error)
	GetSocksBySize(context.Context, *GetSocksBySizeRequest) (*SockResponse, error)
	GetSocksByComposition(context.Context, *GetSocksByCompositionRequest) (*SockResponse, error)
	CountSocks(context.Context, *CountSocksRequest) (*CountSocksResponse, error)
	SellSocks(context.Context, *SellSocksRequest) (*SellSocksResponse, error)
	DeleteSocks(context.Context, *DeleteSocksRequest) (*SockResponse, error)
}

// RegisterSockServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterSockServiceServer(registrar grpc.ServiceRegistrar, srv SockServiceServer) {
	registrar.RegisterService(&SockServiceDesc, srv)
}

// SockServiceDesc описывает socks.v1.SockService. Сообщения идут через
// стандартный proto-кодек gRPC как динамические сообщения из File.
var SockServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddSocks", Handler: unaryHandler(MethodAddSocks, SockServiceServer.AddSocks)},
		{MethodName: "GetSocks", Handler: unaryHandler(MethodGetSocks, SockServiceServer.GetSocks)},
		{MethodName: "ListSocks", Handler: unaryHandler(MethodListSocks, SockServiceServer.ListSocks)},
		{MethodName: "GetSocksByColor", Handler: unaryHandler(MethodGetSocksByColor, SockServiceServer.GetSocksByColor)},
		{MethodName: "GetSocksBySize", Handler: unaryHandler(MethodGetSocksBySize, SockServiceServer.GetSocksBySize)},
		{MethodName: "GetSocksByComposition", Handler: unaryHandler(MethodGetSocksByComposition, SockServiceServer.GetSocksByComposition)},
		{MethodName: "CountSocks", Handler: unaryHandler(MethodCountSocks, SockServiceServer.CountSocks)},
		{MethodName: "SellSocks", Handler: unaryHandler(MethodSellSocks, SockServiceServer.SellSocks)},
		{MethodName: "DeleteSocks", Handler: unaryHandler(MethodDeleteSocks, SockServiceServer.DeleteSocks)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ProtoFile,
}

// unaryHandler декодирует запрос в сообщение socks.v1, переводит его в Go-структуру
// и кодирует ответ обратно. Интерцепторы видят protobuf-сообщения.
func unaryHandler[Req, Resp any, PReq wirePtr[Req], PResp wirePtr[Resp]](
	fullMethod string,
	call func(SockServiceServer, context.Context, PReq) (PResp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newMessage(PReq(nil).protoName())
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(SockServiceServer), ctx, fromProto[Req, PReq](req.(proto.Message).ProtoReflect()))
			if err != nil {
				return nil, err
			}
			if resp == nil {
				return newMessage(PResp(nil).protoName()), nil
			}
			return toProto(resp), nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}
