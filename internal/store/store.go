// Package store persists scraped page content for the page cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/db"
	"github.com/sells-group/market-intel/internal/model"
)

// PageStore is a URL-keyed store of category-scoped page content. Callers
// pass the current time so expiry is evaluated against a single clock.
type PageStore interface {
	// GetPage returns the entry for url if it has not expired at now, or
	// nil with no error on a miss.
	GetPage(ctx context.Context, url string, now time.Time) (*model.CacheEntry, error)

	// UpsertPageCategory writes one category's content for url, keeping
	// other categories and resetting the entry's expiry.
	UpsertPageCategory(ctx context.Context, url string, category model.CacheCategory, content string, now, expiresAt time.Time) error

	// DeleteExpiredPages removes entries whose expiry is at or before now.
	DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the PageStore selected by cfg.Driver and runs its migration.
// The "none" driver returns a nil store, which disables caching.
func Open(ctx context.Context, cfg config.StoreConfig) (PageStore, error) {
	var (
		s   PageStore
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		s = NewMemory()
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		var pool db.Pool
		pool, err = db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{})
		if err == nil {
			s = NewPostgres(pool)
		}
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
