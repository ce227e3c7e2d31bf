package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/sockstore/internal/health"
	"github.com/vladislavdragonenkov/sockstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/sockstore/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/sockstore/internal/storage/redis"
)

const storageInitTimeout = 10 * time.Second

// runtimeDependencies собирает хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	repo            domain.SockRepository
	idempotencyRepo domain.IdempotencyRepository
	checkers        map[string]healthcheck.Checker
	closers         []func() error
}

// closeFn закрывает соединения в обратном порядке открытия.
func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}

	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		deps.repo = memory.NewSockRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if err := initPostgres(ctx, cfg, deps, logger); err != nil {
			_ = deps.closeFn()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		if err := initRedis(ctx, addr, deps, logger); err != nil {
			_ = deps.closeFn()
			return nil, err
		}
	}

	return deps, nil
}

func initPostgres(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return errors.New("postgres storage driver requires a DSN")
	}

	initCtx, cancel := context.WithTimeout(ctx, storageInitTimeout)
	defer cancel()

	store, err := postgres.Open(initCtx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(initCtx, 0); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
	}

	deps.repo = postgres.NewSockRepository(store)
	deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	deps.checkers["postgres"] = healthcheck.NewPingChecker("postgres", true, store.Ping)

	logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
	return nil
}

// initRedis переносит ключи идемпотентности в Redis.
// Сбой Redis затрагивает только повторы продаж, поэтому проверка некритичная.
func initRedis(ctx context.Context, addr string, deps *runtimeDependencies, logger *log.Entry) error {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, storageInitTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis %s: %w", addr, err)
	}
	deps.closers = append(deps.closers, client.Close)

	deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client)
	deps.checkers["redis"] = healthcheck.NewPingChecker("redis", false, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	logger.WithField("addr", addr).Info("using redis for idempotency keys")
	return nil
}
