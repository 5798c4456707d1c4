package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/cache"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/pipeline"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/scorer"
	"github.com/sells-group/market-intel/internal/scrape"
	"github.com/sells-group/market-intel/internal/store"
	"github.com/sells-group/market-intel/internal/tools"
	anthropicpkg "github.com/sells-group/market-intel/pkg/anthropic"
	"github.com/sells-group/market-intel/pkg/firecrawl"
	"github.com/sells-group/market-intel/pkg/jina"
	"github.com/sells-group/market-intel/pkg/mcp"
)

// appEnv holds the long-lived clients shared by every run.
type appEnv struct {
	Store        store.PageStore // nil when caching is off
	Cache        *cache.PageCache
	Tools        *tools.Client
	Orchestrator *pipeline.Orchestrator
}

// Close releases the tool session and the store.
func (e *appEnv) Close() {
	if e.Tools != nil {
		_ = e.Tools.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates credentials and builds the orchestrator. Callers
// should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(c.Scorer); err != nil {
		return nil, err
	}

	pc, st, err := openCache(ctx, c)
	if err != nil {
		return nil, err
	}

	dial, err := newDialer(c)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	breakers := newBreakers(c.Breaker)
	tc := tools.NewClient(dial,
		tools.WithToolName(tools.CapabilitySearch, c.Tools.SearchTool),
		tools.WithToolName(tools.CapabilityScrape, c.Tools.ScrapeTool),
		tools.WithRateLimit(tools.CapabilitySearch, c.Tools.SearchRPS),
		tools.WithRateLimit(tools.CapabilityScrape, c.Tools.ScrapeRPS),
		tools.WithCircuitBreakers(breakers),
	)

	zap.L().Info("environment ready",
		zap.String("tools", c.Tools.Provider),
		zap.String("store", c.Store.Driver),
		zap.Bool("cache", pc.Enabled()),
		zap.String("model", c.Anthropic.Model),
	)

	return &appEnv{
		Store:        st,
		Cache:        pc,
		Tools:        tc,
		Orchestrator: pipeline.New(c, tc, pc, newCompleter(c, breakers.Get("llm"))),
	}, nil
}

// openCache opens the configured store. A disabled cache or the "none"
// driver yields a disabled PageCache and a nil store.
func openCache(ctx context.Context, c *config.Config) (*cache.PageCache, store.PageStore, error) {
	if !c.Cache.Enabled {
		return cache.Disabled(), nil, nil
	}
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open cache store")
	}
	if st == nil {
		return cache.Disabled(), nil, nil
	}
	var opts []cache.Option
	if c.Cache.TTLHours > 0 {
		opts = append(opts, cache.WithTTL(time.Duration(c.Cache.TTLHours)*time.Hour))
	}
	return cache.New(st, opts...), st, nil
}

// newDialer picks the search/scrape backend.
func newDialer(c *config.Config) (tools.Dialer, error) {
	hc := &http.Client{Timeout: time.Duration(c.Tools.TimeoutSecs) * time.Second}

	switch c.Tools.Provider {
	case "mcp":
		return tools.MCPDialer(c.Tools.MCPURL, c.Tools.MCPToken, mcp.WithHTTPClient(hc)), nil
	case "jina":
		jinaOpts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL), jina.WithHTTPClient(hc)}
		if c.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		jinaClient := jina.NewClient(c.Jina.Key, jinaOpts...)

		// Jina primary, then Firecrawl, then a plain HTTP fetch.
		scrapers := []scrape.Scraper{scrape.NewJinaAdapter(jinaClient)}
		if c.Firecrawl.Key != "" {
			fc := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL), firecrawl.WithHTTPClient(hc))
			scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
		}
		if c.Tools.LocalFallback {
			scrapers = append(scrapers, scrape.NewLocalScraper(nil))
		}
		return tools.DirectDialer(jinaClient, scrape.NewChain(scrapers...)), nil
	default:
		return nil, eris.Errorf("unknown tools provider %q", c.Tools.Provider)
	}
}

func newCompleter(c *config.Config, breaker *resilience.CircuitBreaker) *llm.AnthropicCompleter {
	temp := c.Anthropic.Temperature
	return &llm.AnthropicCompleter{
		Client:      anthropicpkg.NewClient(c.Anthropic.Key),
		Model:       c.Anthropic.Model,
		MaxTokens:   c.Anthropic.MaxTokens,
		Temperature: &temp,
		Breaker:     breaker,
	}
}

// newBreakers returns the shared breaker registry, or nil when disabled.
func newBreakers(bc config.BreakerConfig) *resilience.Breakers {
	if !bc.Enabled {
		return nil
	}
	return resilience.NewBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: bc.FailureThreshold,
		ResetTimeout:     time.Duration(bc.ResetTimeoutSecs) * time.Second,
	})
}
