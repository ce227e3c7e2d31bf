// Package grpcsvc публикует складские операции как gRPC-сервис socks.v1.SockService.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/sockstore/internal/service/inventory"
)

const (
	// IdempotencyKeyMetadata — ключ metadata с ключом идемпотентности продажи.
	IdempotencyKeyMetadata = "idempotency-key"

	msgSold = "Товар успешно отпущен со склада"
)

// SockService реализует SockServiceServer поверх inventory.Service.
type SockService struct {
	svc    *inventory.Service
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewSockService создаёт gRPC-сервис. guard может быть nil.
func NewSockService(svc *inventory.Service, guard *idempotency.Guard, logger *log.Entry) *SockService {
	if logger == nil {
		logger = log.WithField("component", "grpc-sock-service")
	}
	return &SockService{svc: svc, guard: guard, logger: logger}
}

func (s *SockService) AddSocks(ctx context.Context, req *AddSocksRequest) (*SockResponse, error) {
	sock, err := req.Sock.toDomain()
	if err != nil {
		return nil, s.toStatus(err)
	}
	stored, err := s.svc.Add(ctx, sock)
	return s.sockResponse(stored, err)
}

func (s *SockService) GetSocks(ctx context.Context, req *GetSocksRequest) (*SockResponse, error) {
	sock, err := s.svc.Get(ctx, req.ID)
	return s.sockResponse(sock, err)
}

func (s *SockService) ListSocks(ctx context.Context, _ *ListSocksRequest) (*ListSocksResponse, error) {
	socks, err := s.svc.List(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp := &ListSocksResponse{Socks: make([]Sock, 0, len(socks))}
	for _, sock := range socks {
		resp.Socks = append(resp.Socks, toMessage(sock))
	}
	return resp, nil
}

func (s *SockService) GetSocksByColor(ctx context.Context, req *GetSocksByColorRequest) (*SockResponse, error) {
	color, err := domain.ParseColor(req.Color)
	if err != nil {
		return nil, s.toStatus(err)
	}
	sock, err := s.svc.GetByColor(ctx, color)
	return s.sockResponse(sock, err)
}

func (s *SockService) GetSocksBySize(ctx context.Context, req *GetSocksBySizeRequest) (*SockResponse, error) {
	size, err := domain.ParseSize(req.Size)
	if err != nil {
		return nil, s.toStatus(err)
	}
	sock, err := s.svc.GetBySize(ctx, size)
	return s.sockResponse(sock, err)
}

func (s *SockService) GetSocksByComposition(ctx context.Context, req *GetSocksByCompositionRequest) (*SockResponse, error) {
	sock, err := s.svc.GetByComposition(ctx, domain.Composition{CottonPercentage: req.CottonPercentage})
	return s.sockResponse(sock, err)
}

func (s *SockService) CountSocks(ctx context.Context, req *CountSocksRequest) (*CountSocksResponse, error) {
	filter := domain.QuantityFilter{CottonMin: req.CottonMin, CottonMax: req.CottonMax}
	if req.Color != nil {
		color, err := domain.ParseColor(*req.Color)
		if err != nil {
			return nil, s.toStatus(err)
		}
		filter.Color = &color
	}
	if req.Size != nil {
		size, err := domain.ParseSize(*req.Size)
		if err != nil {
			return nil, s.toStatus(err)
		}
		filter.Size = &size
	}

	total, err := s.svc.Count(ctx, filter)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &CountSocksResponse{Quantity: total}, nil
}

// SellSocks списывает остаток. С metadata idempotency-key повтор запроса
// возвращает сохранённый ответ или отказ склада первой попытки.
func (s *SockService) SellSocks(ctx context.Context, req *SellSocksRequest) (*SellSocksResponse, error) {
	key := readIdempotencyKey(ctx)
	if s.guard == nil || key == "" {
		return s.sell(ctx, req)
	}

	body, err := proto.MarshalOptions{Deterministic: true}.Marshal(toProto(req))
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
	record, replay, err := s.guard.Begin(key, idempotency.RequestHash(MethodSellSocks, body))
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return nil, status.Error(codes.Aborted, err.Error())
	case err != nil:
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	case replay:
		return s.replay(record)
	}

	resp, runErr := s.sell(ctx, req)
	if runErr != nil {
		if cacheableFailure(status.Code(runErr)) {
			s.guard.Complete(key, encodeFailure(runErr), int(status.Code(runErr)), true)
		} else {
			s.guard.Release(key)
		}
		return nil, runErr
	}

	data, err := protojson.Marshal(toProto(resp))
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent success response")
		data = nil
	}
	s.guard.Complete(key, data, int(codes.OK), false)
	return resp, nil
}

func (s *SockService) sell(ctx context.Context, req *SellSocksRequest) (*SellSocksResponse, error) {
	requested, err := req.Sock.toDomain()
	if err != nil {
		return nil, s.toStatus(err)
	}
	updated, err := s.svc.Sell(ctx, req.ID, requested)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SellSocksResponse{Sock: toMessage(updated), Message: msgSold}, nil
}

func (s *SockService) DeleteSocks(ctx context.Context, req *DeleteSocksRequest) (*SockResponse, error) {
	removed, err := s.svc.Delete(ctx, req.ID)
	return s.sockResponse(removed, err)
}

func (s *SockService) sockResponse(sock domain.Sock, err error) (*SockResponse, error) {
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &SockResponse{Sock: toMessage(sock)}, nil
}

// toStatus переводит доменные ошибки в коды gRPC.
// Внутренние ошибки клиенту не раскрываются.
func (s *SockService) toStatus(err error) error {
	switch {
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case domain.IsInsufficientStock(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.WithError(err).Error("inventory request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *SockService) replay(record domain.IdempotencyRecord) (*SellSocksResponse, error) {
	if record.Status == domain.IdempotencyStatusFailed {
		return nil, decodeFailure(record)
	}
	if len(record.ResponseBody) == 0 {
		return nil, status.Error(codes.Internal, "idempotency cache is empty")
	}
	cached := newMessage((*SellSocksResponse)(nil).protoName())
	if err := protojson.Unmarshal(record.ResponseBody, cached); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return fromProto[SellSocksResponse](cached), nil
}

// cacheableFailure: за ключом закрепляются только отказы склада.
// Отмена, таймаут и внутренние сбои снимают резерв, повтор выполнит продажу.
func cacheableFailure(code codes.Code) bool {
	switch code {
	case codes.NotFound, codes.FailedPrecondition, codes.InvalidArgument:
		return true
	default:
		return false
	}
}

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

func encodeFailure(err error) []byte {
	st := status.Convert(err)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}
	payload, marshalErr := json.Marshal(idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	})
	if marshalErr != nil {
		return nil
	}
	return payload
}

func decodeFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	if len(record.ResponseBody) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil {
			if code, ok := grpcCode(int(payload.Code)); ok && code != codes.OK {
				if payload.Message == "" {
					payload.Message = fallback
				}
				return status.Error(code, payload.Message)
			}
		}
	}
	if code, ok := grpcCode(record.StatusCode); ok && code != codes.OK {
		return status.Error(code, fallback)
	}
	return status.Error(codes.Internal, fallback)
}

func grpcCode(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // bounded above.
}

func readIdempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(IdempotencyKeyMetadata)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

var _ SockServiceServer = (*SockService)(nil)
