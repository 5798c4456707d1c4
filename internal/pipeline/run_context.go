package pipeline

import (
	"time"

	"github.com/sells-group/market-intel/internal/cache"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/cost"
	"github.com/sells-group/market-intel/internal/dedupe"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/enrichment"
	"github.com/sells-group/market-intel/internal/extraction"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/narrative"
	"github.com/sells-group/market-intel/internal/pages"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

// RunContext carries everything one run needs. Stages receive it
// explicitly; nothing here is shared between runs except the tool client
// and the page cache, which are safe for concurrent use.
type RunContext struct {
	Config  *config.Config
	Emitter *progress.Emitter
	Tools   tools.Invoker
	Cache   *cache.PageCache
	Pages   *pages.Fetcher

	QueryLLM   llm.Completer
	ReflectLLM llm.Completer
	ExtractLLM llm.Completer
	// SynthesisLLM writes analyst narratives.
	SynthesisLLM llm.Completer

	Root  dedupe.RootFunc
	Usage *cost.Tracker
}

func newRunContext(cfg *config.Config, inv tools.Invoker, pc *cache.PageCache, completer llm.Completer, em *progress.Emitter) *RunContext {
	usage := cost.NewTracker(nil)
	root := dedupe.Strategy(cfg.Dedupe.RootDomain)
	return &RunContext{
		Config:       cfg,
		Emitter:      em,
		Tools:        inv,
		Cache:        pc,
		Pages:        pages.NewFetcher(inv, pc, policy(cfg.Retry.Tools), cfg.Pipeline.MinContentChars),
		QueryLLM:     phased(completer, "discovery", usage),
		ReflectLLM:   phased(completer, "enrichment", usage),
		ExtractLLM:   phased(completer, "extraction", usage),
		SynthesisLLM: phased(completer, "synthesis", usage),
		Root:         root,
		Usage:        usage,
	}
}

func (rc *RunContext) discovery() *discovery.Stage {
	p := rc.Config.Pipeline
	return discovery.New(discovery.Deps{
		LLM:       rc.QueryLLM,
		Tools:     rc.Tools,
		Emitter:   rc.Emitter,
		LLMRetry:  policy(rc.Config.Retry.Extract),
		ToolRetry: policy(rc.Config.Retry.Tools),
	}, discovery.Config{
		MinQueries:    p.MinQueries,
		MaxQueries:    p.MaxQueries,
		PagesPerQuery: p.PagesPerQuery,
		Engine:        rc.Config.Tools.SearchEngine,
		Concurrency:   p.SearchConcurrency,
		MaxLeads:      p.MaxLeads,
	})
}

func (rc *RunContext) enrichment() *enrichment.Stage {
	return enrichment.New(enrichment.Deps{
		LLM:          rc.ReflectLLM,
		Pages:        rc.Pages,
		Emitter:      rc.Emitter,
		ReflectRetry: policy(rc.Config.Retry.Reflect),
		Root:         rc.Root,
	}, enrichment.Config{
		Concurrency: rc.Config.Pipeline.EnrichConcurrency,
	})
}

func (rc *RunContext) extraction() *extraction.Stage {
	return extraction.New(extraction.Deps{
		LLM:          rc.ExtractLLM,
		Pages:        rc.Pages,
		Emitter:      rc.Emitter,
		ExtractRetry: policy(rc.Config.Retry.Extract),
	}, extraction.Config{
		Concurrency:           rc.Config.Pipeline.ExtractConcurrency,
		PerCompanyConcurrency: rc.Config.Pipeline.PerCompanyConcurrency,
	})
}

func (rc *RunContext) narratives() *narrative.Writer {
	return narrative.New(narrative.Deps{
		LLM:     rc.SynthesisLLM,
		Emitter: rc.Emitter,
		Retry:   policy(rc.Config.Retry.Reflect),
	}, narrative.Config{
		Concurrency: rc.Config.Pipeline.NarrativeConcurrency,
	})
}

// policy converts a config retry policy. A zero policy keeps the defaults.
func policy(p config.RetryPolicy) resilience.RetryConfig {
	if p == (config.RetryPolicy{}) {
		return resilience.DefaultRetryConfig()
	}
	return resilience.FromMillis(p.MaxAttempts, p.BaseDelayMs, p.MaxDelayMs, p.Jitter)
}

// phased tags Anthropic completers with the stage name and the run's
// usage tracker.
func phased(c llm.Completer, phase string, usage *cost.Tracker) llm.Completer {
	if a, ok := c.(*llm.AnthropicCompleter); ok {
		p := a.WithPhase(phase)
		p.Usage = usage
		return p
	}
	return c
}

func elapsed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
