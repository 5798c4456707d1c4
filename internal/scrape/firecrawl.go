package scrape

import (
	"context"

	"github.com/sells-group/market-intel/pkg/firecrawl"
)

// FirecrawlAdapter wraps a Firecrawl client as a Scraper.
type FirecrawlAdapter struct {
	client firecrawl.Client
}

// NewFirecrawlAdapter creates a FirecrawlAdapter from a Firecrawl client.
func NewFirecrawlAdapter(client firecrawl.Client) *FirecrawlAdapter {
	return &FirecrawlAdapter{client: client}
}

func (f *FirecrawlAdapter) Name() string { return "firecrawl" }

func (f *FirecrawlAdapter) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             targetURL,
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, attributeTarget(targetURL, err)
	}
	return &Result{
		URL:      targetURL,
		Title:    resp.Data.Metadata.Title,
		Markdown: resp.Data.Markdown,
		Source:   "firecrawl",
	}, nil
}
