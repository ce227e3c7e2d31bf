package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/app"
	"github.com/vladislavdragonenkov/sockstore/internal/version"
)

const (
	envHTTPAddr                    = "SOCKS_HTTP_ADDR"
	envGRPCAddr                    = "SOCKS_GRPC_ADDR"
	envMetricsAddr                 = "SOCKS_METRICS_ADDR"
	envStorageDriver               = "SOCKS_STORAGE_DRIVER"
	envPostgresDSN                 = "SOCKS_POSTGRES_DSN"
	envPostgresAutoMigrate         = "SOCKS_POSTGRES_AUTO_MIGRATE"
	envRedisAddr                   = "SOCKS_REDIS_ADDR"
	envKafkaBrokers                = "SOCKS_KAFKA_BROKERS"
	envKafkaTopic                  = "SOCKS_KAFKA_TOPIC"
	envIdempotencyTTL              = "SOCKS_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "SOCKS_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "SOCKS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envShutdownTimeout             = "SOCKS_SHUTDOWN_TIMEOUT"
	envLogLevel                    = "SOCKS_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректное значение не останавливает запуск: остаётся значение по умолчанию
// и возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	strValue := func(key string, target *string) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			*target = strings.TrimSpace(raw)
		}
	}
	durationValue := func(key string, target *time.Duration) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseDuration(raw, func(v time.Duration) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(key, raw, err)
			return
		}
		*target = value
	}

	strValue(envHTTPAddr, &cfg.HTTPAddr)
	strValue(envGRPCAddr, &cfg.GRPCAddr)
	strValue(envMetricsAddr, &cfg.MetricsAddr)
	strValue(envPostgresDSN, &cfg.PostgresDSN)
	strValue(envRedisAddr, &cfg.RedisAddr)
	strValue(envKafkaTopic, &cfg.KafkaTopic)

	if raw, ok := lookup(envStorageDriver); ok && strings.TrimSpace(raw) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw, ok := lookup(envPostgresAutoMigrate); ok && strings.TrimSpace(raw) != "" {
		value, err := parseBool(raw)
		if err != nil {
			warn(envPostgresAutoMigrate, raw, err)
		} else {
			cfg.PostgresAutoMigrate = value
		}
	}
	if raw, ok := lookup(envKafkaBrokers); ok {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	durationValue(envIdempotencyTTL, &cfg.IdempotencyTTL)
	durationValue(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval)
	durationValue(envShutdownTimeout, &cfg.ShutdownTimeout)

	if raw, ok := lookup(envIdempotencyCleanupBatchSize); ok && strings.TrimSpace(raw) != "" {
		value, err := parseInt(raw, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupBatchSize, raw, err)
		} else {
			cfg.IdempotencyCleanupBatchSize = value
		}
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func main() {
	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем SockService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("SockService остановлен")
}
