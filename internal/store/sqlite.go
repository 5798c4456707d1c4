package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/market-intel/internal/model"
)

// SQLiteStore implements PageStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Times are stored as unix milliseconds so comparisons stay numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS page_cache (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL UNIQUE,
	data       TEXT NOT NULL DEFAULT '{}',
	scraped_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPage(ctx context.Context, url string, now time.Time) (*model.CacheEntry, error) {
	var (
		data                string
		scrapedAt, expireAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, scraped_at, expires_at FROM page_cache WHERE url = ? AND expires_at > ?`,
		url, now.UnixMilli(),
	).Scan(&data, &scrapedAt, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get page")
	}

	entry := &model.CacheEntry{
		URL:       url,
		ScrapedAt: time.UnixMilli(scrapedAt).UTC(),
		ExpiresAt: time.UnixMilli(expireAt).UTC(),
	}
	if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal page data")
	}
	if entry.Data == nil {
		entry.Data = make(map[model.CacheCategory]string)
	}
	return entry, nil
}

func (s *SQLiteStore) UpsertPageCategory(ctx context.Context, url string, category model.CacheCategory, content string, now, expiresAt time.Time) error {
	path := "$." + string(category)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (id, url, data, scraped_at, expires_at)
		 VALUES (?, ?, json_object(?, ?), ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   data = json_set(page_cache.data, ?, ?),
		   scraped_at = excluded.scraped_at,
		   expires_at = excluded.expires_at`,
		uuid.New().String(), url, string(category), content, now.UnixMilli(), expiresAt.UnixMilli(),
		path, content,
	)
	return eris.Wrap(err, "sqlite: upsert page category")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= ?`, now.UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}
