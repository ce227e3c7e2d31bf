package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
	"github.com/vladislavdragonenkov/sockstore/internal/storage/memory"
)

func TestSellKeyRepository_SellLifecycle(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(" sell-gray-m ", "hash-4-units", ttl)
	require.NoError(t, err)
	assert.Equal(t, "sell-gray-m", created.Key)
	assert.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	// Параллельный дубликат видит незавершённую продажу.
	inFlight, err := repo.CreateProcessing("sell-gray-m", "hash-4-units", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	assert.Equal(t, domain.IdempotencyStatusProcessing, inFlight.Status)

	require.NoError(t, repo.MarkDone("sell-gray-m", []byte("Товар успешно отпущен со склада"), 200))

	done, err := repo.Get("sell-gray-m")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, done.Status)
	assert.Equal(t, 200, done.StatusCode)
	assert.Equal(t, "Товар успешно отпущен со склада", string(done.ResponseBody))
	assert.True(t, done.TTLAt.Equal(ttl))

	other, err := repo.CreateProcessing("sell-gray-m", "hash-100-units", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	assert.Equal(t, "hash-4-units", other.RequestHash, "conflict returns the stored record")
}

func TestSellKeyRepository_GetReturnsCopy(t *testing.T) {
	repo := memory.NewIdempotencyRepository()

	_, err := repo.CreateProcessing("sell-1", "hash", time.Time{})
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed("sell-1", []byte("not enough"), 400))

	first, err := repo.Get("sell-1")
	require.NoError(t, err)
	first.ResponseBody[0] = 'X'

	second, err := repo.Get("sell-1")
	require.NoError(t, err)
	assert.Equal(t, "not enough", string(second.ResponseBody))
	assert.Equal(t, domain.IdempotencyStatusFailed, second.Status)
}

func TestSellKeyRepository_DeleteReleasesKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing("sell-retry", "hash-a", ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Delete("sell-retry"))

	_, err = repo.Get("sell-retry")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	retried, err := repo.CreateProcessing("sell-retry", "hash-a", ttl)
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, retried.Status)

	assert.ErrorIs(t, repo.Delete("missing"), domain.ErrIdempotencyKeyNotFound)
	assert.ErrorIs(t, repo.Delete(" "), domain.ErrIdempotencyKeyRequired)
}

func TestSellKeyRepository_DeleteExpiredOldestFirst(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	seed := map[string]time.Duration{
		"sell-oldest": -3 * time.Minute,
		"sell-older":  -2 * time.Minute,
		"sell-old":    -time.Minute,
		"sell-live":   time.Hour,
	}
	for key, offset := range seed {
		_, err := repo.CreateProcessing(key, "hash-"+key, now.Add(offset))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(now, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.Get("sell-oldest")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get("sell-older")
	assert.NoError(t, err, "batch limit keeps younger expired keys for the next pass")

	removed, err = repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = repo.Get("sell-live")
	assert.NoError(t, err)
}

func TestSellKeyRepository_ReusedExpiredKeySurvivesCleanup(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	_, err := repo.CreateProcessing("sell-3", "hash-old", now.Add(-time.Second))
	require.NoError(t, err)

	reused, err := repo.CreateProcessing("sell-3", "hash-new", now.Add(time.Hour))
	require.NoError(t, err, "expired key is free for a new sell")
	assert.Equal(t, "hash-new", reused.RequestHash)

	removed, err := repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	assert.Zero(t, removed, "stale expiry of the first reservation must not remove the new one")

	got, err := repo.Get("sell-3")
	require.NoError(t, err)
	assert.Equal(t, "hash-new", got.RequestHash)
}

func TestSellKeyRepository_Validation(t *testing.T) {
	repo := memory.NewIdempotencyRepository()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "empty key",
			call: func() error { _, err := repo.CreateProcessing(" ", "hash", time.Time{}); return err },
			want: domain.ErrIdempotencyKeyRequired,
		},
		{
			name: "empty hash",
			call: func() error { _, err := repo.CreateProcessing("key", "", time.Time{}); return err },
			want: domain.ErrIdempotencyRequestHashRequired,
		},
		{
			name: "complete unknown key",
			call: func() error { return repo.MarkFailed("missing", nil, 400) },
			want: domain.ErrIdempotencyKeyNotFound,
		},
		{
			name: "get empty key",
			call: func() error { _, err := repo.Get(""); return err },
			want: domain.ErrIdempotencyKeyRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
}
