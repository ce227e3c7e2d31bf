// Package inventory реализует прикладной слой склада носков:
// валидация, метрики, логирование и публикация событий поверх SockRepository.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/metrics"
)

// Названия операций для логов и метрик.
const (
	OperationAdd              = "add"
	OperationGet              = "get"
	OperationGetByColor       = "get_by_color"
	OperationGetBySize        = "get_by_size"
	OperationGetByComposition = "get_by_composition"
	OperationList             = "list"
	OperationCount            = "count"
	OperationSell             = "sell"
	OperationDelete           = "delete"
)

// Option настраивает Service.
type Option func(*Service)

// WithPublisher задаёт получателя складских событий.
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service — единая точка входа для HTTP и gRPC транспортов.
type Service struct {
	repo      domain.SockRepository
	publisher domain.EventPublisher
	metrics   *metrics.InventoryMetrics
	logger    *log.Entry
}

// NewService создаёт сервис поверх репозитория.
func NewService(repo domain.SockRepository, options ...Option) *Service {
	s := &Service{repo: repo}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "inventory-service")
	}
	return s
}

// Add проверяет партию и сохраняет её под новым ID.
func (s *Service) Add(ctx context.Context, sock domain.Sock) (domain.Sock, error) {
	started := time.Now()

	if err := ctx.Err(); err != nil {
		return domain.Sock{}, err
	}
	if errs := sock.Validate(); len(errs) > 0 {
		err := errors.Join(errs...)
		s.finish(OperationAdd, started, err)
		return domain.Sock{}, err
	}

	stored, err := s.repo.Add(sock)
	s.finish(OperationAdd, started, err)
	if err != nil {
		return domain.Sock{}, err
	}

	s.metrics.RecordAdded(stored.Quantity)
	s.logger.WithFields(log.Fields{
		"sock_id":  stored.ID,
		"color":    stored.Color,
		"size":     stored.Size,
		"cotton":   stored.Composition.CottonPercentage,
		"quantity": stored.Quantity,
	}).Info("sock batch added")
	s.publish(domain.NewSockEvent(domain.SockEventAdded, stored, stored.Quantity))
	return stored, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Sock, error) {
	return s.lookup(ctx, OperationGet, func() (domain.Sock, error) { return s.repo.GetByID(id) })
}

func (s *Service) GetByColor(ctx context.Context, color domain.Color) (domain.Sock, error) {
	return s.lookup(ctx, OperationGetByColor, func() (domain.Sock, error) { return s.repo.GetByColor(color) })
}

func (s *Service) GetBySize(ctx context.Context, size domain.Size) (domain.Sock, error) {
	return s.lookup(ctx, OperationGetBySize, func() (domain.Sock, error) { return s.repo.GetBySize(size) })
}

func (s *Service) GetByComposition(ctx context.Context, composition domain.Composition) (domain.Sock, error) {
	return s.lookup(ctx, OperationGetByComposition, func() (domain.Sock, error) {
		return s.repo.GetByComposition(composition)
	})
}

func (s *Service) lookup(ctx context.Context, operation string, find func() (domain.Sock, error)) (domain.Sock, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sock{}, err
	}

	started := time.Now()
	sock, err := find()
	s.finish(operation, started, err)
	return sock, err
}

// List возвращает все партии в порядке добавления.
func (s *Service) List(ctx context.Context) ([]domain.Sock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	socks, err := s.repo.List()
	s.finish(OperationList, started, err)
	return socks, err
}

// Count суммирует остаток по фильтру. Диапазон хлопка проверяется до обращения к складу.
func (s *Service) Count(ctx context.Context, filter domain.QuantityFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	started := time.Now()
	if err := filter.Validate(); err != nil {
		s.finish(OperationCount, started, err)
		return 0, err
	}

	total, err := s.repo.AggregateQuantity(filter)
	s.finish(OperationCount, started, err)
	return total, err
}

// SyncStockGauge выставляет метрику остатка по фактическому содержимому склада.
// Вызывается при старте: склад в PostgreSQL переживает рестарт процесса.
func (s *Service) SyncStockGauge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	total, err := s.repo.AggregateQuantity(domain.QuantityFilter{})
	if err != nil {
		return fmt.Errorf("aggregate stock: %w", err)
	}
	s.metrics.SetStock(total)
	return nil
}

// Sell списывает requested.Quantity с партии с теми же параметрами.
// id передаётся складу как есть и на выбор партии не влияет.
func (s *Service) Sell(ctx context.Context, id int64, requested domain.Sock) (domain.Sock, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sock{}, err
	}

	started := time.Now()
	if errs := requested.Validate(); len(errs) > 0 {
		err := errors.Join(errs...)
		s.finish(OperationSell, started, err)
		return domain.Sock{}, err
	}

	updated, err := s.repo.Sell(id, requested)
	s.finish(OperationSell, started, err)

	fields := log.Fields{
		"requested_id": id,
		"color":        requested.Color,
		"size":         requested.Size,
		"cotton":       requested.Composition.CottonPercentage,
		"quantity":     requested.Quantity,
	}
	if err != nil {
		switch {
		case domain.IsInsufficientStock(err):
			s.metrics.RecordSellRejected("insufficient_stock")
			s.logger.WithFields(fields).WithError(err).Warn("sell rejected")
		case domain.IsNotFound(err):
			s.metrics.RecordSellRejected("not_found")
			s.logger.WithFields(fields).WithError(err).Warn("sell rejected")
		}
		return domain.Sock{}, err
	}

	s.metrics.RecordSold(requested.Quantity)
	fields["sock_id"] = updated.ID
	fields["remaining"] = updated.Quantity
	s.logger.WithFields(fields).Info("socks sold")
	s.publish(domain.NewSockEvent(domain.SockEventSold, updated, -requested.Quantity))
	return updated, nil
}

// Delete удаляет партию по ключу склада.
func (s *Service) Delete(ctx context.Context, id int64) (domain.Sock, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sock{}, err
	}

	started := time.Now()
	removed, err := s.repo.Delete(id)
	s.finish(OperationDelete, started, err)
	if err != nil {
		return domain.Sock{}, err
	}

	s.metrics.RecordRemoved(removed.Quantity)
	s.logger.WithFields(log.Fields{
		"sock_id":  removed.ID,
		"quantity": removed.Quantity,
	}).Info("sock batch removed")
	s.publish(domain.NewSockEvent(domain.SockEventRemoved, removed, -removed.Quantity))
	return removed, nil
}

func (s *Service) finish(operation string, started time.Time, err error) {
	s.metrics.ObserveOperation(operation, resultOf(err), time.Since(started))
	if err != nil && !isBusinessError(err) {
		s.logger.WithError(err).WithField("operation", operation).Error("inventory operation failed")
	}
}

// publish отправляет событие после применённого изменения.
// Ошибка публикации не откатывает изменение склада.
func (s *Service) publish(event domain.SockEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.metrics.RecordPublishFailed()
		s.logger.WithError(err).WithFields(log.Fields{
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"sock_id":    event.SockID,
		}).Warn("failed to publish inventory event")
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsInsufficientStock(err):
		return metrics.ResultRejected
	case domain.IsValidation(err):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}

func isBusinessError(err error) bool {
	return domain.IsNotFound(err) || domain.IsInsufficientStock(err) || domain.IsValidation(err)
}
