// Package extraction scrapes the pricing, docs and about pages of each
// company and reflects them into a structured profile.
package extraction

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/fanout"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/pages"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
)

// Config holds the extraction knobs.
type Config struct {
	// Concurrency bounds companies in flight.
	Concurrency int
	// PerCompanyConcurrency bounds categories scraped at once per company.
	PerCompanyConcurrency int
	MaxSectionChars       int
}

// Deps are the collaborators a Stage calls out to.
type Deps struct {
	LLM          llm.Completer
	Pages        *pages.Fetcher
	Emitter      *progress.Emitter
	ExtractRetry resilience.RetryConfig
}

// Stage runs extraction for one pipeline run.
type Stage struct {
	deps Deps
	cfg  Config
}

// New creates a Stage.
func New(deps Deps, cfg Config) *Stage {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if cfg.PerCompanyConcurrency <= 0 {
		cfg.PerCompanyConcurrency = len(Categories)
	}
	if cfg.MaxSectionChars <= 0 {
		cfg.MaxSectionChars = DefaultMaxSectionChars
	}
	return &Stage{deps: deps, cfg: cfg}
}

// Run extracts a profile for every company. Output order follows input
// order. A company that cannot be scraped or reflected still gets a
// fallback profile; only fatal errors abort the stage.
func (s *Stage) Run(ctx context.Context, companies []model.CompanyInput) ([]model.ExtractedCompanyData, error) {
	log := zap.L().With(zap.String("stage", string(model.StageExtraction)))

	work := make([]job, len(companies))
	for i, c := range companies {
		work[i] = job{index: i, company: c}
	}

	var fatal error
	res := fanout.Run(ctx, work, func(ctx context.Context, j job) ([]profile, error) {
		d, err := s.extractCompany(ctx, j.company)
		if err != nil {
			return nil, err
		}
		return []profile{{index: j.index, data: d}}, nil
	}, fanout.Options[job, profile]{
		Name:  "extraction",
		Limit: s.cfg.Concurrency,
		OnError: func(j job, err error) []profile {
			if fatal == nil && resilience.IsFatal(err) {
				fatal = err
			}
			return []profile{{index: j.index, data: Fallback(j.company, nil)}}
		},
		OnSettled: func(done, total int) {
			s.emit(model.SubstageExtracting, fmt.Sprintf("Extracted %d/%d companies", done, total), "", &done, &total)
		},
	})
	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ExtractedCompanyData, len(companies))
	fallbacks := 0
	for _, p := range res.Items {
		out[p.index] = p.data
		if p.data.Notes != nil && *p.data.Notes == FallbackNote {
			fallbacks++
		}
	}
	log.Info("extraction: complete",
		zap.Int("companies", len(out)),
		zap.Int("fallbacks", fallbacks),
	)
	return out, nil
}

type job struct {
	index   int
	company model.CompanyInput
}

type profile struct {
	index int
	data  model.ExtractedCompanyData
}

// extractCompany scrapes each category concurrently, then reflects.
func (s *Stage) extractCompany(ctx context.Context, c model.CompanyInput) (model.ExtractedCompanyData, error) {
	candidates := CandidateURLs(c.URL)

	var mu sync.Mutex
	found := scraped{}
	var fatal error
	fanout.Run(ctx, Categories, func(ctx context.Context, cat model.CacheCategory) ([]struct{}, error) {
		page, err := s.ScrapePath(ctx, cat, candidates[cat], c.Name)
		if err != nil {
			return nil, err
		}
		if page != nil {
			mu.Lock()
			found[cat] = page
			mu.Unlock()
		}
		return nil, nil
	}, fanout.Options[model.CacheCategory, struct{}]{
		Name:  "extraction_paths",
		Limit: s.cfg.PerCompanyConcurrency,
		OnError: func(_ model.CacheCategory, err error) []struct{} {
			if fatal == nil {
				fatal = err
			}
			return nil
		},
	})
	if fatal != nil {
		return model.ExtractedCompanyData{}, fatal
	}
	if err := ctx.Err(); err != nil {
		return model.ExtractedCompanyData{}, err
	}

	s.emit(model.SubstageReflecting, "Extracting profile for "+c.Name, c.Name, nil, nil)
	return s.reflect(ctx, c, found)
}

// ScrapePath tries candidates in order and returns the first page with
// enough content, or nil when none has any. Fatal errors are returned;
// other failures move on to the next candidate.
func (s *Stage) ScrapePath(ctx context.Context, category model.CacheCategory, candidates []string, company string) (*pages.Page, error) {
	for _, u := range candidates {
		page, err := s.deps.Pages.Fetch(ctx, u, category)
		if err != nil {
			if resilience.IsFatal(err) {
				return nil, err
			}
			continue
		}
		if page.Cached {
			s.emit(model.SubstageExtracting, fmt.Sprintf("Cache hit: %s (%s)", company, category), company, nil, nil)
		}
		return page, nil
	}
	return nil, nil
}

func (s *Stage) emit(substage, msg, company string, done, total *int) {
	ev := model.ProgressEvent{
		Stage:    model.StageExtraction,
		Substage: substage,
		Message:  msg,
		Company:  company,
	}
	if done != nil && total != nil {
		ev = ev.WithCount(*done, *total)
	}
	s.deps.Emitter.Emit(ev)
}
