package model

// Lead is an unverified candidate company discovered from search results.
type Lead struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet,omitempty"`
	SourceQuery string `json:"sourceQuery,omitempty"`
	Occurrences int    `json:"occurrences,omitempty"`
}

// ScrapedPage is the result of enriching one lead.
type ScrapedPage struct {
	URL       string `json:"url"`
	Companies []Lead `json:"companies"`
	Error     string `json:"error,omitempty"`
	Cached    bool   `json:"cached,omitempty"`
}

// SearchRunResult is the raw output of one (query, page) search unit.
type SearchRunResult struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Raw   any    `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

// EnrichmentStats summarizes one enrichment stage.
type EnrichmentStats struct {
	InputLeads         int `json:"inputLeads"`
	PagesScraped       int `json:"pagesScraped"`
	CompaniesExtracted int `json:"companiesExtracted"`
	AfterDedupe        int `json:"afterDedupe"`
	SkippedURLs        int `json:"skippedUrls"`
}
