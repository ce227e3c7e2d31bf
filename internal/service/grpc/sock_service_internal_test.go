package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sockstore/internal/service/inventory"
	"github.com/vladislavdragonenkov/sockstore/internal/storage/memory"
)

type stubIdempotencyRepository struct {
	createRecord domain.IdempotencyRecord
	createErr    error
}

func (s *stubIdempotencyRepository) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	return s.createRecord, s.createErr
}

func (s *stubIdempotencyRepository) Get(string) (domain.IdempotencyRecord, error) {
	return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
}

func (s *stubIdempotencyRepository) MarkDone(string, []byte, int) error   { return nil }
func (s *stubIdempotencyRepository) MarkFailed(string, []byte, int) error { return nil }
func (s *stubIdempotencyRepository) Delete(string) error                  { return nil }
func (s *stubIdempotencyRepository) DeleteExpired(time.Time, int) (int, error) {
	return 0, nil
}

func newInternalService(repo domain.IdempotencyRepository) *SockService {
	svc := inventory.NewService(memory.NewSockRepository())
	return NewSockService(svc, idempotency.NewGuard(repo, time.Hour, nil), nil)
}

func keyedContext(key string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(IdempotencyKeyMetadata, key))
}

func TestFile_DescribesSockService(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ProtoFile, File.Path())
	assert.Equal(t, protoreflect.FullName(protoPackage), File.Package())

	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(serviceName)
	require.NoError(t, err, "service must be resolvable for reflection")
	service, ok := desc.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	assert.Equal(t, ProtoFile, service.ParentFile().Path())

	require.Equal(t, len(SockServiceDesc.Methods), service.Methods().Len())
	for _, method := range SockServiceDesc.Methods {
		md := service.Methods().ByName(protoreflect.Name(method.MethodName))
		require.NotNil(t, md, method.MethodName)
		assert.NotNil(t, File.Messages().ByName(md.Input().Name()))
		assert.NotNil(t, File.Messages().ByName(md.Output().Name()))
	}
	assert.Equal(t, ProtoFile, SockServiceDesc.Metadata)
}

func TestCountSocksRequest_PresenceSurvivesWire(t *testing.T) {
	t.Parallel()

	zero, hundred := 0, 100
	gray := "GRAY"
	tests := []struct {
		name string
		req  CountSocksRequest
	}{
		{name: "empty filter", req: CountSocksRequest{}},
		{name: "zero minimum", req: CountSocksRequest{CottonMin: &zero}},
		{name: "color and range", req: CountSocksRequest{Color: &gray, CottonMin: &zero, CottonMax: &hundred}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := proto.Marshal(toProto(&tt.req))
			require.NoError(t, err)

			decoded := newMessage("CountSocksRequest")
			require.NoError(t, proto.Unmarshal(data, decoded))
			assert.Equal(t, &tt.req, fromProto[CountSocksRequest](decoded))
		})
	}
}

func TestListSocksResponse_Wire(t *testing.T) {
	t.Parallel()

	resp := &ListSocksResponse{Socks: []Sock{
		{ID: 1, Color: "GRAY", Size: "M", CottonPercentage: 80, Quantity: 6},
		{ID: 2, Color: "BLACK", Size: "XL", Quantity: 0},
	}}

	data, err := proto.Marshal(toProto(resp))
	require.NoError(t, err)
	decoded := newMessage("ListSocksResponse")
	require.NoError(t, proto.Unmarshal(data, decoded))
	assert.Equal(t, resp, fromProto[ListSocksResponse](decoded))

	empty := fromProto[ListSocksResponse](newMessage("ListSocksResponse"))
	assert.NotNil(t, empty.Socks)
	assert.Empty(t, empty.Socks)
}

func TestToStatus(t *testing.T) {
	t.Parallel()

	s := NewSockService(inventory.NewService(memory.NewSockRepository()), nil, nil)

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "not found", err: fmt.Errorf("%w by id 1", domain.ErrSockNotFound), want: codes.NotFound},
		{name: "insufficient", err: domain.ErrInsufficientStock, want: codes.FailedPrecondition},
		{name: "validation", err: errors.Join(domain.ErrColorInvalid, domain.ErrQuantityNegative), want: codes.InvalidArgument},
		{name: "range", err: domain.ErrCottonRangeInvalid, want: codes.InvalidArgument},
		{name: "canceled", err: context.Canceled, want: codes.Canceled},
		{name: "deadline", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "internal", err: errors.New("disk is on fire"), want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.toStatus(tt.err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}

	assert.NotContains(t, s.toStatus(errors.New("disk is on fire")).Error(), "disk")
}

func TestSellSocks_ProcessingKeyIsAborted(t *testing.T) {
	t.Parallel()

	s := newInternalService(&stubIdempotencyRepository{
		createRecord: domain.IdempotencyRecord{Status: domain.IdempotencyStatusProcessing},
		createErr:    domain.ErrIdempotencyKeyAlreadyExists,
	})

	_, err := s.SellSocks(keyedContext("k"), &SellSocksRequest{Sock: Sock{Color: "GRAY", Size: "M", Quantity: 1}})
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestSellSocks_RepositoryFailureIsInternal(t *testing.T) {
	t.Parallel()

	s := newInternalService(&stubIdempotencyRepository{createErr: errors.New("redis down")})

	_, err := s.SellSocks(keyedContext("k"), &SellSocksRequest{Sock: Sock{Color: "GRAY", Size: "M", Quantity: 1}})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSellSocks_EmptyCachedResponseIsInternal(t *testing.T) {
	t.Parallel()

	s := newInternalService(&stubIdempotencyRepository{
		createRecord: domain.IdempotencyRecord{Status: domain.IdempotencyStatusDone},
		createErr:    domain.ErrIdempotencyKeyAlreadyExists,
	})

	_, err := s.SellSocks(keyedContext("k"), &SellSocksRequest{Sock: Sock{Color: "GRAY", Size: "M", Quantity: 1}})
	assert.Equal(t, codes.Internal, status.Code(err))
}

// brokenSockRepository отвечает ошибкой соединения на продажу.
type brokenSockRepository struct {
	domain.SockRepository
}

func (brokenSockRepository) Sell(int64, domain.Sock) (domain.Sock, error) {
	return domain.Sock{}, errors.New("connection refused")
}

func TestSellSocks_InternalFailureReleasesKey(t *testing.T) {
	t.Parallel()

	keys := memory.NewIdempotencyRepository()
	s := NewSockService(inventory.NewService(brokenSockRepository{}), idempotency.NewGuard(keys, time.Hour, nil), nil)
	req := &SellSocksRequest{ID: 1, Sock: Sock{Color: "GRAY", Size: "M", CottonPercentage: 80, Quantity: 1}}

	_, err := s.SellSocks(keyedContext("sell-outage"), req)
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = keys.Get("sell-outage")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound, "internal failure must not pin the key")
}

func TestCacheableFailure(t *testing.T) {
	t.Parallel()

	for _, code := range []codes.Code{codes.NotFound, codes.FailedPrecondition, codes.InvalidArgument} {
		assert.True(t, cacheableFailure(code), code.String())
	}
	for _, code := range []codes.Code{codes.Internal, codes.Canceled, codes.DeadlineExceeded, codes.Unavailable} {
		assert.False(t, cacheableFailure(code), code.String())
	}
}

func TestDecodeFailure(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(idempotencyErrorPayload{Code: int32(codes.FailedPrecondition), Message: "no stock"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		record  domain.IdempotencyRecord
		code    codes.Code
		message string
	}{
		{
			name:    "payload",
			record:  domain.IdempotencyRecord{ResponseBody: payload},
			code:    codes.FailedPrecondition,
			message: "no stock",
		},
		{
			name:    "status code only",
			record:  domain.IdempotencyRecord{StatusCode: int(codes.NotFound)},
			code:    codes.NotFound,
			message: "previous request with the same idempotency key failed",
		},
		{
			name:    "garbage",
			record:  domain.IdempotencyRecord{ResponseBody: []byte("{"), StatusCode: 999},
			code:    codes.Internal,
			message: "previous request with the same idempotency key failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(decodeFailure(tt.record))
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestEncodeFailure_NonStatusErrorKeepsUnknownCode(t *testing.T) {
	t.Parallel()

	var payload idempotencyErrorPayload
	require.NoError(t, json.Unmarshal(encodeFailure(errors.New("boom")), &payload))
	assert.Equal(t, int32(codes.Unknown), payload.Code)
}

func TestReadIdempotencyKey(t *testing.T) {
	t.Parallel()

	assert.Empty(t, readIdempotencyKey(context.Background()))
	assert.Equal(t, "abc", readIdempotencyKey(keyedContext("  abc ")))
}
