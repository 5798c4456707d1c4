// Package discovery turns a market sector into a ranked list of company
// leads: LLM-generated search queries, fanned-out web searches, loose
// result parsing and hostname dedupe.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/dedupe"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

// ErrEmptySector is returned when the market sector is blank.
var ErrEmptySector = errors.New("market sector is required")

// Config holds the discovery knobs.
type Config struct {
	MinQueries    int
	MaxQueries    int
	PagesPerQuery int
	CursorStart   int
	Engine        string
	Concurrency   int
	MaxLeads      int
}

// DefaultConfig returns the standard discovery settings.
func DefaultConfig() Config {
	return Config{
		MinQueries:    10,
		MaxQueries:    12,
		PagesPerQuery: 3,
		CursorStart:   1,
		Engine:        "google",
		Concurrency:   6,
		MaxLeads:      dedupe.DefaultMaxLeads,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinQueries <= 0 {
		c.MinQueries = d.MinQueries
	}
	if c.MaxQueries < c.MinQueries {
		c.MaxQueries = max(d.MaxQueries, c.MinQueries)
	}
	if c.PagesPerQuery <= 0 {
		c.PagesPerQuery = d.PagesPerQuery
	}
	if c.CursorStart <= 0 {
		c.CursorStart = d.CursorStart
	}
	if c.Engine == "" {
		c.Engine = d.Engine
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxLeads <= 0 {
		c.MaxLeads = d.MaxLeads
	}
	return c
}

// Deps are the collaborators a Stage calls out to.
type Deps struct {
	LLM      llm.Completer
	Tools    tools.Invoker
	Emitter  *progress.Emitter
	LLMRetry resilience.RetryConfig
	// ToolRetry wraps each search call.
	ToolRetry resilience.RetryConfig
}

// Stage runs discovery for one pipeline run.
type Stage struct {
	deps Deps
	cfg  Config
}

// New creates a Stage.
func New(deps Deps, cfg Config) *Stage {
	return &Stage{deps: deps, cfg: cfg.withDefaults()}
}

// Result is the output of one discovery run.
type Result struct {
	Queries  []string
	Searches []model.SearchRunResult
	RawLeads int
	Leads    []model.Lead
}

// Run generates queries for sector, searches them and returns deduped leads.
func (s *Stage) Run(ctx context.Context, sector string) (*Result, error) {
	log := zap.L().With(zap.String("stage", string(model.StageDiscovery)))

	s.emit(model.SubstageQueries, "Generating search queries")
	queries, err := s.GenerateQueries(ctx, sector)
	if err != nil {
		return nil, err
	}
	s.emit(model.SubstageQueries, fmt.Sprintf("Generated %d search queries", len(queries)))

	searches, err := s.RunSearches(ctx, queries)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.emit(model.SubstageExtracting, "Extracting company leads from search results")
	raw := ExtractLeads(searches)

	s.emit(model.SubstageDeduplicating, fmt.Sprintf("Deduplicating %d leads", len(raw)))
	leads := dedupe.Leads(raw, s.cfg.MaxLeads)

	log.Info("discovery: complete",
		zap.Int("queries", len(queries)),
		zap.Int("searches", len(searches)),
		zap.Int("raw_leads", len(raw)),
		zap.Int("leads", len(leads)),
	)
	s.emit(model.SubstageDeduplicating, fmt.Sprintf("Found %d unique leads", len(leads)))

	return &Result{
		Queries:  queries,
		Searches: searches,
		RawLeads: len(raw),
		Leads:    leads,
	}, nil
}

func (s *Stage) emit(substage, msg string) {
	s.deps.Emitter.Emit(model.ProgressEvent{
		Stage:    model.StageDiscovery,
		Substage: substage,
		Message:  msg,
	})
}
