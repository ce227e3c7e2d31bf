package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/metrics"
)

// Умолчания расписания очистки.
const (
	DefaultSweepInterval  = 10 * time.Minute
	DefaultSweepBatchSize = 500
)

// SweepConfig задаёт расписание очистки ключей продаж.
type SweepConfig struct {
	// Interval — пауза между проходами.
	Interval time.Duration
	// BatchSize ограничивает число ключей за одно обращение к хранилищу.
	BatchSize int
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultSweepInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultSweepBatchSize
	}
	return c
}

// KeySweeper снимает ключи продаж с истёкшим TTL, чтобы хранилище не росло.
// В Redis ключи истекают сами, и проход там ничего не находит.
type KeySweeper struct {
	repo    domain.IdempotencyRepository
	cfg     SweepConfig
	metrics *metrics.IdempotencyMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewKeySweeper создаёт очистку поверх хранилища ключей. metrics может быть nil.
func NewKeySweeper(repo domain.IdempotencyRepository, cfg SweepConfig, m *metrics.IdempotencyMetrics, logger *log.Entry) *KeySweeper {
	if logger == nil {
		logger = log.WithField("component", "idempotency-sweeper")
	}
	return &KeySweeper{
		repo:    repo,
		cfg:     cfg.withDefaults(),
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Sweep снимает все ключи, истёкшие к текущему моменту, порциями по BatchSize.
// Возвращает число снятых ключей, в том числе при ошибке посреди прохода.
func (s *KeySweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now()
	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		n, err := s.repo.DeleteExpired(cutoff, s.cfg.BatchSize)
		removed += n
		if err != nil {
			return removed, err
		}
		if n < s.cfg.BatchSize {
			return removed, nil
		}
	}
}

// Run проходит хранилище сразу и затем раз в Interval, пока ctx не отменён.
func (s *KeySweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.logger.Warn("idempotency sweeper is disabled: repo is nil")
		return
	}

	s.logger.WithFields(log.Fields{
		"interval":   s.cfg.Interval,
		"batch_size": s.cfg.BatchSize,
	}).Info("idempotency sweeper started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idempotency sweeper stopped")
			return
		case <-timer.C:
			s.sweepAndReport(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *KeySweeper) sweepAndReport(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}
	s.metrics.RecordSweep(removed, err)

	entry := s.logger.WithField("removed", removed)
	switch {
	case err != nil:
		entry.WithError(err).Warn("idempotency sweep failed")
	case removed > 0:
		entry.Info("expired sell keys removed")
	default:
		entry.Debug("no expired sell keys")
	}
}
