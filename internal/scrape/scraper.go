// Package scrape turns a URL into page text through an ordered chain of
// backends: Jina Reader, Firecrawl, then a plain HTTP fetch.
package scrape

import (
	"context"
	"net/http"

	"github.com/sells-group/market-intel/internal/resilience"
)

// Result holds a scraped page with its source.
type Result struct {
	URL      string
	Title    string
	Markdown string
	Source   string // e.g. "jina", "firecrawl", "local_http"
}

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
}

// attributeTarget marks a provider status error as the target page's
// failure. 401 stays with the provider: it means the API key was rejected.
func attributeTarget(targetURL string, err error) error {
	code := resilience.StatusCode(err)
	if code == 0 || code == http.StatusUnauthorized {
		return err
	}
	return resilience.NewTargetError(targetURL, err)
}
