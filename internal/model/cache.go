package model

import "time"

// CacheCategory names one independently upserted field of a CacheEntry.
type CacheCategory string

const (
	CategoryPricing    CacheCategory = "pricing"
	CategoryDocs       CacheCategory = "docs"
	CategoryAbout      CacheCategory = "about"
	CategoryEnrichment CacheCategory = "enrichment"
)

// Valid reports whether c is one of the known categories.
func (c CacheCategory) Valid() bool {
	switch c {
	case CategoryPricing, CategoryDocs, CategoryAbout, CategoryEnrichment:
		return true
	}
	return false
}

// CacheEntry is the cached scrape content for one exact URL.
type CacheEntry struct {
	URL       string                   `json:"url"`
	Data      map[CacheCategory]string `json:"data"`
	ScrapedAt time.Time                `json:"scrapedAt"`
	ExpiresAt time.Time                `json:"expiresAt"`
}
