// Package redis хранит ключи идемпотентности в Redis.
// Истечение записей выполняет сам Redis по TTL ключа.
package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
)

const (
	keyPrefix             = "socks:idempotency:"
	opTimeout             = 2 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	minExpiration         = time.Millisecond
)

// finishScript обновляет статус и ответ, сохраняя оставшийся TTL ключа.
var finishScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end

local record = cjson.decode(raw)
record.status = ARGV[1]
record.response_body = ARGV[2]
record.status_code = tonumber(ARGV[3])
record.updated_at = ARGV[4]
redis.call('SET', KEYS[1], cjson.encode(record), 'KEEPTTL')
return 1
`)

type storedRecord struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body"`
	StatusCode   int       `json:"status_code"`
	Status       string    `json:"status"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type idempotencyRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
func NewIdempotencyRepository(client redis.UniversalClient) domain.IdempotencyRepository {
	return &idempotencyRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateProcessing занимает ключ через SET NX с TTL до ttlAt.
func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)

	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}
	expiration := ttlAt.Sub(now)
	if expiration < minExpiration {
		expiration = minExpiration
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(toStored(record))
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("encode idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, keyPrefix+key, payload, expiration).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	if !ok {
		existing, getErr := r.Get(key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}
	return record, nil
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	record := fromStored(stored)
	if !record.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", stored.Status, key)
	}
	return record, nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, statusCode int) error {
	return r.finish(key, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, statusCode int) error {
	return r.finish(key, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

func (r *idempotencyRepository) Delete(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	removed, err := r.client.Del(ctx, keyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	if removed == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

// DeleteExpired ничего не делает: просроченные ключи удаляет Redis.
func (r *idempotencyRepository) DeleteExpired(time.Time, int) (int, error) {
	return 0, nil
}

func (r *idempotencyRepository) finish(key string, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	updated, err := finishScript.Run(ctx, r.client, []string{keyPrefix + key},
		string(status),
		base64.StdEncoding.EncodeToString(responseBody),
		statusCode,
		r.now().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("mark idempotency key %s: %w", status, err)
	}
	if updated == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func toStored(record domain.IdempotencyRecord) storedRecord {
	return storedRecord{
		Key:          record.Key,
		RequestHash:  record.RequestHash,
		ResponseBody: record.ResponseBody,
		StatusCode:   record.StatusCode,
		Status:       string(record.Status),
		TTLAt:        record.TTLAt,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func fromStored(stored storedRecord) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          stored.Key,
		RequestHash:  stored.RequestHash,
		ResponseBody: append([]byte(nil), stored.ResponseBody...),
		StatusCode:   stored.StatusCode,
		Status:       domain.IdempotencyStatus(stored.Status),
		TTLAt:        stored.TTLAt,
		CreatedAt:    stored.CreatedAt,
		UpdatedAt:    stored.UpdatedAt,
	}
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
