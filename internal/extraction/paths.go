package extraction

import (
	"strings"

	"github.com/sells-group/market-intel/internal/dedupe"
	"github.com/sells-group/market-intel/internal/model"
)

// Categories are scraped for every company, in this order.
var Categories = []model.CacheCategory{
	model.CategoryPricing,
	model.CategoryDocs,
	model.CategoryAbout,
}

var candidatePaths = map[model.CacheCategory][]string{
	model.CategoryPricing: {"/pricing", "/plans", "/pricing-plans", "/pricing/", "/plans/"},
	model.CategoryDocs: {
		"/docs", "/documentation", "/developers", "/features",
		"/product", "/products", "/docs/", "/documentation/",
	},
	model.CategoryAbout: {"/about", "/about-us", "/company", "/who-we-are", "/about/", "/company/"},
}

// CandidateURLs returns the URLs to try, in order, for each category of
// the site at base.
func CandidateURLs(base string) map[model.CacheCategory][]string {
	origin, ok := dedupe.Origin(base)
	if !ok {
		origin = strings.TrimSuffix(base, "/")
	}
	out := make(map[model.CacheCategory][]string, len(candidatePaths))
	for cat, paths := range candidatePaths {
		urls := make([]string, len(paths))
		for i, p := range paths {
			urls[i] = origin + p
		}
		out[cat] = urls
	}
	return out
}
