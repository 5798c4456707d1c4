package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/db"
	"github.com/sells-group/market-intel/internal/model"
)

// PostgresStore implements PageStore on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL UNIQUE,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetPage(ctx context.Context, url string, now time.Time) (*model.CacheEntry, error) {
	entry := model.CacheEntry{URL: url}
	var data []byte

	err := s.pool.QueryRow(ctx,
		`SELECT data, scraped_at, expires_at FROM page_cache
		 WHERE url = $1 AND expires_at > $2`,
		url, now,
	).Scan(&data, &entry.ScrapedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get page")
	}
	if err := json.Unmarshal(data, &entry.Data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal page data")
	}
	if entry.Data == nil {
		entry.Data = make(map[model.CacheCategory]string)
	}
	return &entry, nil
}

func (s *PostgresStore) UpsertPageCategory(ctx context.Context, url string, category model.CacheCategory, content string, now, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_cache (id, url, data, scraped_at, expires_at)
		 VALUES ($1, $2, jsonb_build_object($3::text, $4::text), $5, $6)
		 ON CONFLICT (url) DO UPDATE SET
		   data = page_cache.data || jsonb_build_object($3::text, $4::text),
		   scraped_at = EXCLUDED.scraped_at,
		   expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), url, string(category), content, now, expiresAt,
	)
	return eris.Wrap(err, "postgres: upsert page category")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM page_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return tag.RowsAffected(), nil
}
