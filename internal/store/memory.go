package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/sells-group/market-intel/internal/model"
)

// MemoryStore is an in-process PageStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*model.CacheEntry
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*model.CacheEntry)}
}

func (s *MemoryStore) GetPage(_ context.Context, url string, now time.Time) (*model.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[url]
	if !ok || !e.ExpiresAt.After(now) {
		return nil, nil
	}
	cp := *e
	cp.Data = maps.Clone(e.Data)
	return &cp, nil
}

func (s *MemoryStore) UpsertPageCategory(_ context.Context, url string, category model.CacheCategory, content string, now, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[url]
	if !ok {
		e = &model.CacheEntry{URL: url, Data: make(map[model.CacheCategory]string)}
		s.entries[url] = e
	}
	e.Data[category] = content
	e.ScrapedAt = now
	e.ExpiresAt = expiresAt
	return nil
}

func (s *MemoryStore) DeleteExpiredPages(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for url, e := range s.entries {
		if !e.ExpiresAt.After(now) {
			delete(s.entries, url)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
