// Package cache fronts the scraping tool with a TTL page cache.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/store"
)

// DefaultTTL is how long a cached page stays fresh after its last write.
const DefaultTTL = 7 * 24 * time.Hour

// PageCache is a URL-keyed cache of scraped content. A PageCache with no
// store is disabled: every Get misses and every Put is a no-op. Store
// failures degrade to misses and are only logged.
type PageCache struct {
	store store.PageStore
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a PageCache.
type Option func(*PageCache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *PageCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *PageCache) { c.now = now }
}

// New returns a PageCache over s. A nil s yields a disabled cache.
func New(s store.PageStore, opts ...Option) *PageCache {
	c := &PageCache{store: s, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Disabled returns a cache that never stores anything.
func Disabled() *PageCache {
	return New(nil)
}

// Enabled reports whether a backing store is configured.
func (c *PageCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Get returns the unexpired entry for the exact url, or nil.
func (c *PageCache) Get(ctx context.Context, url string) *model.CacheEntry {
	if !c.Enabled() {
		return nil
	}
	e, err := c.store.GetPage(ctx, url, c.now())
	if err != nil {
		zap.L().Warn("cache: get failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	return e
}

// Lookup returns the cached content for one category of url.
func (c *PageCache) Lookup(ctx context.Context, url string, category model.CacheCategory) (string, bool) {
	e := c.Get(ctx, url)
	if e == nil {
		return "", false
	}
	content, ok := e.Data[category]
	if !ok || content == "" {
		return "", false
	}
	return content, true
}

// Put upserts only the given category for url and resets the entry's
// expiry to now+TTL.
func (c *PageCache) Put(ctx context.Context, url string, category model.CacheCategory, content string) {
	if !c.Enabled() {
		return
	}
	now := c.now()
	if err := c.store.UpsertPageCategory(ctx, url, category, content, now, now.Add(c.ttl)); err != nil {
		zap.L().Warn("cache: put failed",
			zap.String("url", url),
			zap.String("category", string(category)),
			zap.Error(err),
		)
	}
}

// Prune deletes expired entries and returns how many were removed.
func (c *PageCache) Prune(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.store.DeleteExpiredPages(ctx, c.now())
}
