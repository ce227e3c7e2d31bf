package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/metrics"
	"github.com/vladislavdragonenkov/sockstore/internal/storage/memory"
)

// sellThroughGuard проводит продажу через Guard так же, как это делают транспорты.
func sellThroughGuard(t *testing.T, guard *Guard, key, body string, status int) {
	t.Helper()

	_, replay, err := guard.Begin(key, RequestHash("PUT /api/socks/1", []byte(body)))
	require.NoError(t, err)
	require.False(t, replay)
	guard.Complete(key, []byte("sold"), status, status != 200)
}

func TestKeySweeper_RemovesExpiredSellKeys(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository()
	soldAt := time.Now().UTC().Add(-3 * time.Hour)

	guard := NewGuard(repo, time.Hour, nil)
	guard.now = func() time.Time { return soldAt }
	sellThroughGuard(t, guard, "sell-gray-1", `{"quantity":1}`, 200)
	sellThroughGuard(t, guard, "sell-gray-2", `{"quantity":2}`, 200)
	sellThroughGuard(t, guard, "sell-red-1", `{"quantity":900}`, 400)

	guard.now = func() time.Time { return soldAt.Add(3 * time.Hour) }
	sellThroughGuard(t, guard, "sell-fresh", `{"quantity":1}`, 200)

	reg := prometheus.NewRegistry()
	sweeper := NewKeySweeper(repo, SweepConfig{BatchSize: 2}, metrics.NewIdempotencyMetricsWithRegisterer(reg), nil)
	sweeper.now = func() time.Time { return soldAt.Add(2 * time.Hour) }

	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	for _, key := range []string{"sell-gray-1", "sell-gray-2", "sell-red-1"} {
		_, err := repo.Get(key)
		assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound, key)
	}

	fresh, err := repo.Get("sell-fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, fresh.Status)

	// После очистки тот же ключ снова принимает продажу, а не повтор старого ответа.
	guard.now = func() time.Time { return soldAt.Add(2 * time.Hour) }
	_, replay, err := guard.Begin("sell-gray-1", RequestHash("PUT /api/socks/1", []byte(`{"quantity":5}`)))
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestKeySweeper_BatchesUntilShortPage(t *testing.T) {
	t.Parallel()

	repo := &countingSweepRepo{pages: []int{2, 2, 1}}
	sweeper := NewKeySweeper(repo, SweepConfig{BatchSize: 2}, nil, nil)

	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
	assert.Equal(t, 3, repo.callCount())
	assert.Equal(t, []int{2, 2, 2}, repo.limits)
}

func TestKeySweeper_KeepsCountOnRepositoryError(t *testing.T) {
	t.Parallel()

	repo := &countingSweepRepo{pages: []int{2}, failAt: 2, err: errors.New("connection refused")}
	reg := prometheus.NewRegistry()
	sweeper := NewKeySweeper(repo, SweepConfig{BatchSize: 2}, metrics.NewIdempotencyMetricsWithRegisterer(reg), nil)

	removed, err := sweeper.Sweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, removed)

	sweeper.sweepAndReport(context.Background())
	assert.Equal(t, 1.0, sweepRuns(t, reg, metrics.ResultError))
}

func TestKeySweeper_CanceledContextSkipsRepository(t *testing.T) {
	t.Parallel()

	repo := &countingSweepRepo{pages: []int{10}}
	sweeper := NewKeySweeper(repo, SweepConfig{BatchSize: 10}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	removed, err := sweeper.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, removed)
	assert.Zero(t, repo.callCount())
}

func TestKeySweeper_RunSweepsUntilCanceled(t *testing.T) {
	t.Parallel()

	repo := &countingSweepRepo{}
	reg := prometheus.NewRegistry()
	sweeper := NewKeySweeper(repo, SweepConfig{Interval: 5 * time.Millisecond, BatchSize: 10},
		metrics.NewIdempotencyMetricsWithRegisterer(reg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	assert.GreaterOrEqual(t, sweepRuns(t, reg, metrics.ResultSuccess), 2.0)
}

func TestSweepConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := SweepConfig{Interval: -time.Second}.withDefaults()
	assert.Equal(t, DefaultSweepInterval, cfg.Interval)
	assert.Equal(t, DefaultSweepBatchSize, cfg.BatchSize)
}

// countingSweepRepo отдаёт заранее заданные размеры страниц DeleteExpired.
type countingSweepRepo struct {
	domain.IdempotencyRepository

	mu     sync.Mutex
	pages  []int
	limits []int
	calls  int
	failAt int
	err    error
}

func (r *countingSweepRepo) DeleteExpired(_ time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	r.limits = append(r.limits, limit)
	if r.failAt > 0 && r.calls >= r.failAt {
		return 0, r.err
	}
	if len(r.pages) == 0 {
		return 0, nil
	}
	page := r.pages[0]
	r.pages = r.pages[1:]
	return page, nil
}

func (r *countingSweepRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func sweepRuns(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "socks_idempotency_cleanup_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
