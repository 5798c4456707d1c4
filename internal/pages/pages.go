// Package pages fetches page content through the scrape capability with
// the page cache in front of it.
package pages

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/cache"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

// DefaultMinChars is the shortest content accepted as a successful scrape.
const DefaultMinChars = 80

// ErrNoContent means the page scraped but yielded too little text.
var ErrNoContent = errors.New("no content scraped")

var contentKeys = []string{"markdown", "content", "text", "result", "data"}

// Page is fetched content for one URL.
type Page struct {
	URL     string
	Content string
	Cached  bool
}

// Fetcher scrapes URLs, consulting and filling the page cache.
type Fetcher struct {
	tools    tools.Invoker
	cache    *cache.PageCache
	retry    resilience.RetryConfig
	minChars int
}

// NewFetcher creates a Fetcher. A nil pc disables caching and a
// non-positive minChars uses DefaultMinChars.
func NewFetcher(inv tools.Invoker, pc *cache.PageCache, retry resilience.RetryConfig, minChars int) *Fetcher {
	if pc == nil {
		pc = cache.Disabled()
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Fetcher{tools: inv, cache: pc, retry: retry, minChars: minChars}
}

// Fetch returns cached content for (url, category) when present, else
// scrapes url and caches the result under category. Content shorter than
// the minimum yields ErrNoContent and is not cached.
func (f *Fetcher) Fetch(ctx context.Context, url string, category model.CacheCategory) (*Page, error) {
	if content, ok := f.cache.Lookup(ctx, url, category); ok {
		zap.L().Debug("pages: cache hit", zap.String("url", url), zap.String("category", string(category)))
		return &Page{URL: url, Content: content, Cached: true}, nil
	}

	raw, err := resilience.DoVal(ctx, f.retry.Logged("tools", "scrape"), func(ctx context.Context) (any, error) {
		return f.tools.Invoke(ctx, tools.CapabilityScrape, map[string]any{"url": url})
	})
	if err != nil {
		return nil, err
	}

	content := NormalizeOutput(raw)
	if len(content) < f.minChars {
		zap.L().Debug("pages: scrape too short", zap.String("url", url), zap.Int("chars", len(content)))
		return nil, ErrNoContent
	}

	f.cache.Put(ctx, url, category, content)
	zap.L().Debug("pages: scraped", zap.String("url", url), zap.Int("chars", len(content)))
	return &Page{URL: url, Content: content}, nil
}

// NormalizeOutput turns a raw scrape payload into text. Strings are
// trimmed, objects are checked for a content field and otherwise
// re-encoded as JSON.
func NormalizeOutput(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	parsed := gjson.ParseBytes(b)
	if parsed.IsObject() {
		for _, k := range contentKeys {
			if field := parsed.Get(k); field.Type == gjson.String {
				return strings.TrimSpace(field.String())
			}
		}
	}
	return string(b)
}
