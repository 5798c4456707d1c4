// Package enrichment scrapes each discovered lead, asks the LLM which
// companies the page describes, and folds the answers into a deduplicated
// company list.
package enrichment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/dedupe"
	"github.com/sells-group/market-intel/internal/fanout"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/pages"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
)

// Config holds the enrichment knobs.
type Config struct {
	Concurrency     int
	MaxContentChars int
}

// Deps are the collaborators a Stage calls out to.
type Deps struct {
	LLM          llm.Completer
	Pages        *pages.Fetcher
	Emitter      *progress.Emitter
	ReflectRetry resilience.RetryConfig
	// Root picks the company dedupe key. Nil uses dedupe.KnownTLDRoot.
	Root dedupe.RootFunc
}

// Stage runs enrichment for one pipeline run.
type Stage struct {
	deps Deps
	cfg  Config
}

// New creates a Stage.
func New(deps Deps, cfg Config) *Stage {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	return &Stage{deps: deps, cfg: cfg}
}

// Result is the output of one enrichment run.
type Result struct {
	Companies []model.Lead
	Pages     []model.ScrapedPage
	Stats     model.EnrichmentStats
}

// Run enriches leads for sector. Per-lead failures become pages with an
// error; only fatal errors abort the stage.
func (s *Stage) Run(ctx context.Context, sector string, leads []model.Lead) (*Result, error) {
	log := zap.L().With(zap.String("stage", string(model.StageEnrichment)))

	var fatal error
	res := fanout.Run(ctx, leads, func(ctx context.Context, lead model.Lead) ([]model.ScrapedPage, error) {
		page, err := s.enrichLead(ctx, sector, lead)
		if err != nil {
			return nil, err
		}
		return []model.ScrapedPage{page}, nil
	}, fanout.Options[model.Lead, model.ScrapedPage]{
		Name:  "enrichment",
		Limit: s.cfg.Concurrency,
		Skip: func(l model.Lead) bool {
			if ShouldSkip(l.URL) {
				log.Debug("enrichment: skipping url", zap.String("url", l.URL))
				return true
			}
			return false
		},
		OnError: func(l model.Lead, err error) []model.ScrapedPage {
			if fatal == nil && resilience.IsFatal(err) {
				fatal = err
			}
			return []model.ScrapedPage{{URL: l.URL, Companies: []model.Lead{}, Error: err.Error()}}
		},
		OnSettled: func(done, total int) {
			s.emit(model.SubstageScraping, fmt.Sprintf("Enriched %d/%d leads", done, total), "", &done, &total)
		},
	})
	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.emit(model.SubstageAggregating, "Aggregating companies", "", nil, nil)
	var all []model.Lead
	for _, p := range res.Items {
		all = append(all, p.Companies...)
	}
	companies := dedupe.Companies(all, s.deps.Root)

	stats := model.EnrichmentStats{
		InputLeads:         len(leads),
		PagesScraped:       len(res.Items),
		CompaniesExtracted: len(all),
		AfterDedupe:        len(companies),
		SkippedURLs:        res.Skipped,
	}
	log.Info("enrichment: complete",
		zap.Int("input_leads", stats.InputLeads),
		zap.Int("pages", stats.PagesScraped),
		zap.Int("extracted", stats.CompaniesExtracted),
		zap.Int("after_dedupe", stats.AfterDedupe),
		zap.Int("skipped", stats.SkippedURLs),
	)
	s.emit(model.SubstageAggregating, fmt.Sprintf("Found %d unique companies", len(companies)), "", nil, nil)

	return &Result{Companies: companies, Pages: res.Items, Stats: stats}, nil
}

// enrichLead scrapes one lead and reflects on the content. A lead with no
// usable content is a page with an error, not a failure.
func (s *Stage) enrichLead(ctx context.Context, sector string, lead model.Lead) (model.ScrapedPage, error) {
	page := model.ScrapedPage{URL: lead.URL, Companies: []model.Lead{}}

	fetched, err := s.deps.Pages.Fetch(ctx, lead.URL, model.CategoryEnrichment)
	if err != nil {
		if resilience.IsFatal(err) {
			return page, err
		}
		if !errors.Is(err, pages.ErrNoContent) {
			zap.L().Debug("enrichment: scrape failed", zap.String("url", lead.URL), zap.Error(err))
		}
		page.Error = pages.ErrNoContent.Error()
		return page, nil
	}
	page.Cached = fetched.Cached

	s.emit(model.SubstageReflecting, "Analyzing "+lead.Name, lead.Name, nil, nil)
	r, err := s.reflect(ctx, sector, lead.URL, fetched.Content)
	if err != nil {
		return page, err
	}

	if r.IsCompanyPage && r.CompanyName != "" {
		page.Companies = append(page.Companies, model.Lead{
			Name: r.CompanyName,
			URL:  dedupe.Homepage(lead.URL),
		})
	}
	for _, m := range r.Companies {
		if m.URL == "" {
			continue
		}
		page.Companies = append(page.Companies, model.Lead{
			Name: m.Name,
			URL:  dedupe.Homepage(m.URL),
		})
	}
	return page, nil
}

func (s *Stage) emit(substage, msg, company string, done, total *int) {
	ev := model.ProgressEvent{
		Stage:    model.StageEnrichment,
		Substage: substage,
		Message:  msg,
		Company:  company,
	}
	if done != nil && total != nil {
		ev = ev.WithCount(*done, *total)
	}
	s.deps.Emitter.Emit(ev)
}
