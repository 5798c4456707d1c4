package model

// Stage is a top-level pipeline stage.
type Stage string

const (
	StageDiscovery     Stage = "discovery"
	StageEnrichment    Stage = "enrichment"
	StageExtraction    Stage = "extraction"
	StageSynthesis     Stage = "synthesis"
	StageVisualization Stage = "visualization"
)

// Substage values used in progress events.
const (
	SubstageQueries       = "queries"
	SubstageSearching     = "searching"
	SubstageExtracting    = "extracting"
	SubstageDeduplicating = "deduplicating"
	SubstageScraping      = "scraping"
	SubstageReflecting    = "reflecting"
	SubstageAggregating   = "aggregating"
	SubstageScoring       = "scoring"
	SubstageNormalizing   = "normalizing"
	SubstageNarratives    = "narratives"
	SubstageCharts        = "charts"
)

// ProgressEvent is a transient status update for UI streaming.
type ProgressEvent struct {
	Stage    Stage  `json:"stage"`
	Substage string `json:"substage,omitempty"`
	Message  string `json:"message"`
	Progress *int   `json:"progress,omitempty"`
	Total    *int   `json:"total,omitempty"`
	Company  string `json:"company,omitempty"`
}

// WithCount returns a copy of e carrying progress and total counters.
func (e ProgressEvent) WithCount(progress, total int) ProgressEvent {
	e.Progress = &progress
	e.Total = &total
	return e
}
