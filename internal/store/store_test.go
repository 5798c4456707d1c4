package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

func newTestSQLite(t *testing.T) PageStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestMemory(t *testing.T) PageStore {
	t.Helper()
	return NewMemory()
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pageStoreSuite(t *testing.T, newStore func(t *testing.T) PageStore) {
	ctx := context.Background()
	const ttl = 7 * 24 * time.Hour

	t.Run("MissOnEmpty", func(t *testing.T) {
		s := newStore(t)
		e, err := s.GetPage(ctx, "https://acme.com/pricing", t0)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("UpsertAndGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertPageCategory(ctx, "https://acme.com", model.CategoryPricing, "tiers", t0, t0.Add(ttl)))

		e, err := s.GetPage(ctx, "https://acme.com", t0.Add(time.Hour))
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "https://acme.com", e.URL)
		assert.Equal(t, "tiers", e.Data[model.CategoryPricing])
		assert.True(t, e.ExpiresAt.Equal(t0.Add(ttl)))
	})

	t.Run("CategoriesAccumulate", func(t *testing.T) {
		s := newStore(t)
		u := "https://acme.com"
		require.NoError(t, s.UpsertPageCategory(ctx, u, model.CategoryPricing, "p1", t0, t0.Add(ttl)))
		later := t0.Add(48 * time.Hour)
		require.NoError(t, s.UpsertPageCategory(ctx, u, model.CategoryDocs, "d1", later, later.Add(ttl)))

		e, err := s.GetPage(ctx, u, later)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "p1", e.Data[model.CategoryPricing])
		assert.Equal(t, "d1", e.Data[model.CategoryDocs])
		assert.True(t, e.ExpiresAt.Equal(later.Add(ttl)), "expiry resets for the whole entry")
	})

	t.Run("OverwriteSameCategory", func(t *testing.T) {
		s := newStore(t)
		u := "https://acme.com/about"
		require.NoError(t, s.UpsertPageCategory(ctx, u, model.CategoryAbout, "old", t0, t0.Add(ttl)))
		require.NoError(t, s.UpsertPageCategory(ctx, u, model.CategoryAbout, "new", t0, t0.Add(ttl)))

		e, err := s.GetPage(ctx, u, t0)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, "new", e.Data[model.CategoryAbout])
		assert.Len(t, e.Data, 1)
	})

	t.Run("ExpiredExcluded", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertPageCategory(ctx, "https://old.com", model.CategoryEnrichment, "x", t0, t0.Add(ttl)))

		e, err := s.GetPage(ctx, "https://old.com", t0.Add(ttl))
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("ExactURLKey", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertPageCategory(ctx, "https://acme.com/", model.CategoryDocs, "x", t0, t0.Add(ttl)))

		e, err := s.GetPage(ctx, "https://acme.com", t0)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertPageCategory(ctx, "https://a.com", model.CategoryDocs, "a", t0, t0.Add(time.Hour)))
		require.NoError(t, s.UpsertPageCategory(ctx, "https://b.com", model.CategoryDocs, "b", t0, t0.Add(ttl)))

		n, err := s.DeleteExpiredPages(ctx, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		e, err := s.GetPage(ctx, "https://b.com", t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("ConcurrentUpserts", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		cats := []model.CacheCategory{model.CategoryPricing, model.CategoryDocs, model.CategoryAbout, model.CategoryEnrichment}
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cat := cats[i%len(cats)]
				_ = s.UpsertPageCategory(ctx, "https://race.com", cat, fmt.Sprintf("v%d", i), t0, t0.Add(ttl))
			}(i)
		}
		wg.Wait()

		e, err := s.GetPage(ctx, "https://race.com", t0)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Len(t, e.Data, 4)
	})
}

func TestMemoryStore(t *testing.T) {
	pageStoreSuite(t, newTestMemory)
}

func TestSQLiteStore(t *testing.T) {
	pageStoreSuite(t, newTestSQLite)
}

func TestNewSQLite_BadPath(t *testing.T) {
	_, err := NewSQLite("/nonexistent/dir/subdir/test.db")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)
}
