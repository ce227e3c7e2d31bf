package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client — клиент socks.v1.SockService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient оборачивает готовое соединение.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithIdempotencyKey добавляет ключ идемпотентности в исходящую metadata.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, IdempotencyKeyMetadata, key)
}

func invoke[Resp any, PResp wirePtr[Resp]](ctx context.Context, c *Client, method string, req wireMessage, opts []grpc.CallOption) (PResp, error) {
	out := newMessage(PResp(nil).protoName())
	if err := c.cc.Invoke(ctx, method, toProto(req), out, opts...); err != nil {
		return nil, err
	}
	return fromProto[Resp, PResp](out), nil
}

func (c *Client) AddSocks(ctx context.Context, req *AddSocksRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodAddSocks, req, opts)
}

func (c *Client) GetSocks(ctx context.Context, req *GetSocksRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodGetSocks, req, opts)
}

func (c *Client) ListSocks(ctx context.Context, req *ListSocksRequest, opts ...grpc.CallOption) (*ListSocksResponse, error) {
	return invoke[ListSocksResponse](ctx, c, MethodListSocks, req, opts)
}

func (c *Client) GetSocksByColor(ctx context.Context, req *GetSocksByColorRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodGetSocksByColor, req, opts)
}

func (c *Client) GetSocksBySize(ctx context.Context, req *GetSocksBySizeRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodGetSocksBySize, req, opts)
}

func (c *Client) GetSocksByComposition(ctx context.Context, req *GetSocksByCompositionRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodGetSocksByComposition, req, opts)
}

func (c *Client) CountSocks(ctx context.Context, req *CountSocksRequest, opts ...grpc.CallOption) (*CountSocksResponse, error) {
	return invoke[CountSocksResponse](ctx, c, MethodCountSocks, req, opts)
}

func (c *Client) SellSocks(ctx context.Context, req *SellSocksRequest, opts ...grpc.CallOption) (*SellSocksResponse, error) {
	return invoke[SellSocksResponse](ctx, c, MethodSellSocks, req, opts)
}

func (c *Client) DeleteSocks(ctx context.Context, req *DeleteSocksRequest, opts ...grpc.CallOption) (*SockResponse, error) {
	return invoke[SockResponse](ctx, c, MethodDeleteSocks, req, opts)
}
