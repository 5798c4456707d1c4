// Package pipeline runs one market analysis end to end: discovery,
// enrichment, extraction, synthesis and chart preparation.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/cache"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/scorer"
	"github.com/sells-group/market-intel/internal/tools"
	"github.com/sells-group/market-intel/internal/viz"
)

// Orchestrator runs analyses. It is safe for concurrent use; every Run
// gets its own RunContext and emitter.
type Orchestrator struct {
	cfg    *config.Config
	tools  tools.Invoker
	cache  *cache.PageCache
	llm    llm.Completer
	scorer *scorer.Scorer
	now    func() time.Time
}

// New creates an Orchestrator. A nil pc disables page caching.
func New(cfg *config.Config, inv tools.Invoker, pc *cache.PageCache, completer llm.Completer) *Orchestrator {
	if pc == nil {
		pc = cache.Disabled()
	}
	return &Orchestrator{
		cfg:    cfg,
		tools:  inv,
		cache:  pc,
		llm:    completer,
		scorer: scorer.New(cfg.Scorer),
		now:    time.Now,
	}
}

// Run analyzes sector. sub, if not nil, receives progress events for this
// run only. On failure the returned result has status failed and carries the
// error message alongside whatever stages completed.
func (o *Orchestrator) Run(ctx context.Context, sector string, sub progress.Subscriber) (*model.AnalysisResult, error) {
	em := progress.New()
	if sub != nil {
		em.Subscribe(sub)
	}
	defer em.Close()

	sector = strings.TrimSpace(sector)
	result := &model.AnalysisResult{
		RunID:         uuid.NewString(),
		MarketSector:  sector,
		Queries:       []string{},
		Leads:         []model.Lead{},
		Companies:     []model.CompanyInput{},
		ExtractedData: []model.ExtractedCompanyData{},
		Scores:        []model.ScoredCompany{},
		StartedAt:     o.now(),
	}
	log := zap.L().With(zap.String("run_id", result.RunID), zap.String("sector", sector))
	log.Info("pipeline: starting analysis")

	r := &run{result: result, rc: newRunContext(o.cfg, o.tools, o.cache, o.llm, em), log: log}

	err := r.execute(ctx, o.scorer)
	result.FinishedAt = o.now()
	usage := r.rc.Usage.Summary()
	result.Usage = &usage
	if err != nil {
		r.fail(err)
		return result, err
	}

	r.advance(model.RunStatusCompleted, model.StageVisualization, "Analysis complete")
	log.Info("pipeline: analysis complete",
		zap.Int("companies", len(result.Scores)),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Float64("cost_usd", usage.CostUSD),
	)
	return result, nil
}

type run struct {
	result *model.AnalysisResult
	rc     *RunContext
	log    *zap.Logger
	stage  model.Stage
}

func (r *run) execute(ctx context.Context, sc *scorer.Scorer) error {
	if r.result.MarketSector == "" {
		r.stage = model.StageDiscovery
		return discovery.ErrEmptySector
	}

	if err := r.step(ctx, model.RunStatusDiscovery, model.StageDiscovery, r.discover); err != nil {
		return err
	}
	if err := r.step(ctx, model.RunStatusEnrichment, model.StageEnrichment, r.enrich); err != nil {
		return err
	}
	if err := r.step(ctx, model.RunStatusExtraction, model.StageExtraction, r.extract); err != nil {
		return err
	}
	if err := r.step(ctx, model.RunStatusSynthesis, model.StageSynthesis, func(ctx context.Context) error {
		return r.synthesize(ctx, sc)
	}); err != nil {
		return err
	}
	return nil
}

// step runs one stage after checking for cancellation, logging its duration.
func (r *run) step(ctx context.Context, status model.RunStatus, stage model.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.advance(status, stage, fmt.Sprintf("Starting %s", stage))

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		r.log.Error("pipeline: stage failed",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", elapsed(start)),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", stage)
	}
	r.log.Info("pipeline: stage complete",
		zap.String("stage", string(stage)),
		zap.Int64("duration_ms", elapsed(start)),
	)
	return nil
}

func (r *run) advance(status model.RunStatus, stage model.Stage, msg string) {
	r.result.Status = status
	r.stage = stage
	r.log.Debug("pipeline: status", zap.String("status", string(status)))
	r.rc.Emitter.Emit(model.ProgressEvent{Stage: stage, Message: msg})
}

func (r *run) fail(err error) {
	r.result.Status = model.RunStatusFailed
	r.result.Error = err.Error()
	r.log.Error("pipeline: analysis failed", zap.String("stage", string(r.stage)), zap.Error(err))
	r.rc.Emitter.Emit(model.ProgressEvent{Stage: r.stage, Message: "Analysis failed: " + err.Error()})
}

func (r *run) discover(ctx context.Context) error {
	res, err := r.rc.discovery().Run(ctx, r.result.MarketSector)
	if err != nil {
		return err
	}
	r.result.Queries = res.Queries
	r.result.Leads = res.Leads
	return nil
}

func (r *run) enrich(ctx context.Context) error {
	res, err := r.rc.enrichment().Run(ctx, r.result.MarketSector, r.result.Leads)
	if err != nil {
		return err
	}
	r.result.EnrichmentStats = res.Stats
	r.result.Companies = CompanyInputs(res.Companies)
	return nil
}

func (r *run) extract(ctx context.Context) error {
	data, err := r.rc.extraction().Run(ctx, r.result.Companies)
	if err != nil {
		return err
	}
	r.result.ExtractedData = data
	return nil
}

// synthesize scores the extracted profiles, writes narratives and
// prepares chart data.
func (r *run) synthesize(ctx context.Context, sc *scorer.Scorer) error {
	normalize := r.rc.Config.Pipeline.Normalize
	r.rc.Emitter.Emit(model.ProgressEvent{
		Stage:    model.StageSynthesis,
		Substage: model.SubstageScoring,
		Message:  fmt.Sprintf("Scoring %d companies", len(r.result.ExtractedData)),
	})
	if normalize {
		r.rc.Emitter.Emit(model.ProgressEvent{
			Stage:    model.StageSynthesis,
			Substage: model.SubstageNormalizing,
			Message:  "Normalizing scores across the cohort",
		})
	}
	scored := sc.Score(r.result.ExtractedData, normalize)
	r.result.Scores = scored.Companies

	if r.rc.Config.Pipeline.Narratives && len(scored.Companies) > 0 {
		withText, err := r.rc.narratives().Run(ctx, scored.Companies)
		if err != nil {
			return err
		}
		r.result.Scores = withText
	}

	r.advance(model.RunStatusVisualization, model.StageVisualization, "Preparing charts")
	r.rc.Emitter.Emit(model.ProgressEvent{
		Stage:    model.StageVisualization,
		Substage: model.SubstageCharts,
		Message:  "Building quadrant, wave and radar data",
	})
	r.result.Charts = viz.Build(r.result.Scores, scored.Threshold)
	return nil
}

// CompanyInputs converts deduplicated enrichment companies into
// extraction inputs.
func CompanyInputs(companies []model.Lead) []model.CompanyInput {
	out := make([]model.CompanyInput, 0, len(companies))
	for _, c := range companies {
		if c.URL == "" {
			continue
		}
		name := c.Name
		if name == "" {
			name = c.URL
		}
		out = append(out, model.CompanyInput{Name: name, URL: c.URL})
	}
	return out
}
