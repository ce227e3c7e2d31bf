package memory

import (
	"bytes"
	"container/heap"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
)

const defaultSellKeyTTL = 24 * time.Hour

type expiryEntry struct {
	key   string
	ttlAt time.Time
}

// expiryQueue упорядочивает ключи по TTLAt (min-куча).
// При перезаписи или удалении ключа старый элемент остаётся в куче
// и отбрасывается при извлечении.
type expiryQueue []expiryEntry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].ttlAt.Before(q[j].ttlAt) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(expiryEntry)) }

func (q *expiryQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	*q = old[:len(old)-1]
	return last
}

// sellKeyRepository хранит ключи идемпотентности продаж в памяти процесса.
type sellKeyRepository struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	expiry  expiryQueue
	now     func() time.Time
}

// NewIdempotencyRepository создаёт in-memory хранилище ключей продаж.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &sellKeyRepository{
		records: make(map[string]domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateProcessing резервирует ключ под продажу. Ключ с истёкшим TTL
// считается свободным, даже если очистка до него ещё не дошла.
func (r *sellKeyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash, err := normalizeSellKey(key, requestHash)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultSellKeyTTL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[key]; ok && existing.TTLAt.After(now) {
		if existing.RequestHash != requestHash {
			return copyRecord(existing), domain.ErrIdempotencyHashMismatch
		}
		return copyRecord(existing), domain.ErrIdempotencyKeyAlreadyExists
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.records[key] = record
	heap.Push(&r.expiry, expiryEntry{key: key, ttlAt: ttlAt})
	return copyRecord(record), nil
}

func (r *sellKeyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return copyRecord(record), nil
}

func (r *sellKeyRepository) MarkDone(key string, responseBody []byte, statusCode int) error {
	return r.complete(key, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *sellKeyRepository) MarkFailed(key string, responseBody []byte, statusCode int) error {
	return r.complete(key, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

func (r *sellKeyRepository) Delete(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	delete(r.records, key)
	return nil
}

// DeleteExpired снимает ключи с TTLAt <= before в порядке истечения.
// limit<=0 снимает все просроченные.
func (r *sellKeyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for r.expiry.Len() > 0 && (limit <= 0 || removed < limit) {
		next := r.expiry[0]
		if next.ttlAt.After(before) {
			break
		}
		heap.Pop(&r.expiry)

		record, ok := r.records[next.key]
		if !ok || !record.TTLAt.Equal(next.ttlAt) {
			continue
		}
		delete(r.records, next.key)
		removed++
	}
	return removed, nil
}

func (r *sellKeyRepository) complete(key string, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}
	record.Status = status
	record.StatusCode = statusCode
	record.ResponseBody = bytes.Clone(responseBody)
	record.UpdatedAt = r.now()
	r.records[key] = record
	return nil
}

func normalizeSellKey(key, requestHash string) (string, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", domain.ErrIdempotencyKeyRequired
	}
	requestHash = strings.TrimSpace(requestHash)
	if requestHash == "" {
		return "", "", domain.ErrIdempotencyRequestHashRequired
	}
	return key, requestHash, nil
}

func copyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = bytes.Clone(src.ResponseBody)
	return dst
}

var _ domain.IdempotencyRepository = (*sellKeyRepository)(nil)
