package model

import "time"

// RunStatus is the orchestrator state of one analysis run.
type RunStatus string

const (
	RunStatusDiscovery     RunStatus = "discovery"
	RunStatusEnrichment    RunStatus = "enrichment"
	RunStatusExtraction    RunStatus = "extraction"
	RunStatusSynthesis     RunStatus = "synthesis"
	RunStatusVisualization RunStatus = "visualization"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusFailed        RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// AnalysisResult is the terminal output of one pipeline run.
type AnalysisResult struct {
	RunID           string                 `json:"runId"`
	MarketSector    string                 `json:"marketSector"`
	Status          RunStatus              `json:"status"`
	Queries         []string               `json:"queries"`
	Leads           []Lead                 `json:"leads"`
	Companies       []CompanyInput         `json:"companies"`
	EnrichmentStats EnrichmentStats        `json:"enrichmentStats"`
	ExtractedData   []ExtractedCompanyData `json:"extractedData"`
	Scores          []ScoredCompany        `json:"scores"`
	Charts          *ChartData             `json:"charts,omitempty"`
	Usage           *UsageSummary          `json:"usage,omitempty"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"startedAt"`
	FinishedAt      time.Time              `json:"finishedAt"`
}

// PhaseUsage is LLM consumption for one stage.
type PhaseUsage struct {
	Phase        string  `json:"phase"`
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// UsageSummary is LLM consumption for a whole run.
type UsageSummary struct {
	Calls        int          `json:"calls"`
	InputTokens  int64        `json:"inputTokens"`
	OutputTokens int64        `json:"outputTokens"`
	CostUSD      float64      `json:"costUsd"`
	Phases       []PhaseUsage `json:"phases"`
}
