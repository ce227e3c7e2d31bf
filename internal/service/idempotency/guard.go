// Package idempotency содержит общую для транспортов логику повторных продаж
// по ключу идемпотентности и воркер очистки просроченных ключей.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/metrics"
)

const defaultTTL = 24 * time.Hour

// ErrRequestInProgress — запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = errors.New("request with the same idempotency key is already processing")

// Guard резервирует ключ перед выполнением запроса и сохраняет результат после.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
	now     func() time.Time
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithMetrics включает учёт исходов резервирования ключей.
func WithMetrics(m *metrics.IdempotencyMetrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard создаёт Guard; ttl<=0 заменяется на 24 часа.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry, opts ...GuardOption) *Guard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	g := &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequestHash строит отпечаток запроса: метод и каноническое тело.
func RequestHash(method string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin занимает ключ. Если запрос с этим ключом уже завершён,
// возвращает сохранённую запись и replay=true: обработчик вызывать не нужно.
//
// Ошибки: domain.ErrIdempotencyHashMismatch при другом теле запроса,
// ErrRequestInProgress при параллельном дубликате.
func (g *Guard) Begin(key, requestHash string) (record domain.IdempotencyRecord, replay bool, err error) {
	record, err = g.repo.CreateProcessing(key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		g.metrics.RecordOutcome(metrics.OutcomeReserved)
		return record, false, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordOutcome(metrics.OutcomeMismatch)
		return domain.IdempotencyRecord{}, false, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusProcessing:
			g.metrics.RecordOutcome(metrics.OutcomeInProgress)
			return domain.IdempotencyRecord{}, false, ErrRequestInProgress
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			g.metrics.RecordOutcome(metrics.OutcomeReplayed)
			g.logger.WithField("idempotency_key", key).Debug("replaying stored response")
			return record, true, nil
		default:
			g.metrics.RecordOutcome(metrics.OutcomeError)
			return domain.IdempotencyRecord{}, false, fmt.Errorf("unknown idempotency status %q", record.Status)
		}
	default:
		g.metrics.RecordOutcome(metrics.OutcomeError)
		return domain.IdempotencyRecord{}, false, fmt.Errorf("reserve idempotency key: %w", err)
	}
}

// Complete сохраняет ответ для последующих повторов.
// Сбой записи только логируется: сам запрос уже выполнен.
func (g *Guard) Complete(key string, body []byte, statusCode int, failed bool) {
	mark := g.repo.MarkDone
	if failed {
		mark = g.repo.MarkFailed
	}
	if err := mark(key, body, statusCode); err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"failed":          failed,
		}).Warn("failed to store idempotent response")
	}
}

// Release снимает резерв ключа без сохранения ответа, чтобы клиент мог
// повторить запрос. Применяется, когда запрос упал на инфраструктуре.
func (g *Guard) Release(key string) {
	if err := g.repo.Delete(key); err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key")
		return
	}
	g.metrics.RecordOutcome(metrics.OutcomeReleased)
}
