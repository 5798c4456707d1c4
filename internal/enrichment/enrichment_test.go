package enrichment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/cache"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/pages"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/store"
	"github.com/sells-group/market-intel/internal/tools"
)

func newStage(l *mockLLM, sc *mockScraper, pc *cache.PageCache, em *progress.Emitter) *Stage {
	return New(Deps{
		LLM:          l,
		Pages:        pages.NewFetcher(sc, pc, fastRetry(), 0),
		Emitter:      em,
		ReflectRetry: fastRetry(),
	}, Config{Concurrency: 4})
}

func TestShouldSkip(t *testing.T) {
	assert.True(t, ShouldSkip("https://www.youtube.com/watch?v=1"))
	assert.True(t, ShouldSkip("https://m.facebook.com/acme"))
	assert.True(t, ShouldSkip("https://x.com/acme"))
	assert.True(t, ShouldSkip(""))
	assert.False(t, ShouldSkip("https://acme.com"))
}

func TestParseReflection(t *testing.T) {
	r, ok := ParseReflection("```json\n" + `{
		"isCompanyPage": true,
		"companyName": "Acme",
		"extractedCompanies": [
			{"name": "Beta", "url": "https://beta.io/pricing"},
			{"name": "Gamma", "url": null},
			{"name": 42},
			null
		]
	}` + "\n```")
	require.True(t, ok)
	assert.True(t, r.IsCompanyPage)
	assert.Equal(t, "Acme", r.CompanyName)
	assert.Equal(t, []Mention{{Name: "Beta", URL: "https://beta.io/pricing"}, {Name: "Gamma"}}, r.Companies)

	r, ok = ParseReflection(`{"companyName": null}`)
	require.True(t, ok)
	assert.False(t, r.IsCompanyPage)
	assert.Empty(t, r.CompanyName)
	assert.Empty(t, r.Companies)

	_, ok = ParseReflection("not json")
	assert.False(t, ok)
}

func TestRun_EnrichesAndDedupes(t *testing.T) {
	sc := &mockScraper{pages: map[string]any{
		"https://acme.com/":          body("Acme home"),
		"https://list.example/top10": map[string]any{"markdown": body("Top vendors")},
		"https://thin.example":       "short",
	}, errs: map[string]error{
		"https://down.example": resilience.NewStatusError(503, errors.New("unavailable")),
	}}
	l := &mockLLM{replies: map[string]string{
		"https://acme.com/": `{"isCompanyPage": true, "companyName": "Acme", "extractedCompanies": []}`,
		"https://list.example/top10": `{"isCompanyPage": false, "extractedCompanies": [
			{"name": "Acme Cloud", "url": "https://cloud.acme.com/start"},
			{"name": "Beta", "url": "https://www.beta.io/about"},
			{"name": "NoURL", "url": null}
		]}`,
	}}
	em := progress.New()
	var events []model.ProgressEvent
	em.Subscribe(func(e model.ProgressEvent) { events = append(events, e) })

	s := newStage(l, sc, nil, em)
	res, err := s.Run(context.Background(), "widgets", []model.Lead{
		{Name: "Acme", URL: "https://acme.com/"},
		{Name: "Top 10", URL: "https://list.example/top10"},
		{Name: "Thin", URL: "https://thin.example"},
		{Name: "Down", URL: "https://down.example"},
		{Name: "Video", URL: "https://youtube.com/watch"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrichmentStats{
		InputLeads:         5,
		PagesScraped:       4,
		CompaniesExtracted: 3,
		AfterDedupe:        2,
		SkippedURLs:        1,
	}, res.Stats)

	byName := map[string]string{}
	for _, c := range res.Companies {
		byName[c.Name] = c.URL
	}
	assert.Equal(t, map[string]string{"Acme": "https://acme.com", "Beta": "https://www.beta.io"}, byName)

	var errored int
	for _, p := range res.Pages {
		if p.Error != "" {
			errored++
			assert.Empty(t, p.Companies)
		}
	}
	assert.Equal(t, 2, errored)

	var scraping int
	for _, e := range events {
		if e.Substage == model.SubstageScraping {
			scraping++
		}
	}
	assert.Equal(t, 4, scraping)
	assert.Equal(t, model.SubstageAggregating, events[len(events)-1].Substage)

	for _, p := range l.prompts {
		assert.True(t, strings.HasPrefix(p, "Market sector: widgets\n"))
	}
}

func TestRun_UsesCache(t *testing.T) {
	pc := cache.New(store.NewMemory())
	pc.Put(context.Background(), "https://acme.com", model.CategoryEnrichment, body("cached"))

	sc := &mockScraper{pages: map[string]any{}}
	l := &mockLLM{replies: map[string]string{
		"https://acme.com": `{"isCompanyPage": true, "companyName": "Acme"}`,
	}}
	res, err := newStage(l, sc, pc, nil).Run(context.Background(), "x", []model.Lead{{Name: "Acme", URL: "https://acme.com"}})
	require.NoError(t, err)
	assert.Empty(t, sc.calls)
	require.Len(t, res.Pages, 1)
	assert.True(t, res.Pages[0].Cached)
	require.Len(t, res.Companies, 1)
}

func TestRun_TruncatesContent(t *testing.T) {
	sc := &mockScraper{pages: map[string]any{"https://big.example": strings.Repeat("a", 6000)}}
	l := &mockLLM{}
	_, err := newStage(l, sc, nil, nil).Run(context.Background(), "x", []model.Lead{{URL: "https://big.example"}})
	require.NoError(t, err)
	require.Len(t, l.prompts, 1)
	assert.True(t, strings.HasSuffix(l.prompts[0], strings.Repeat("a", 5000)+"\n\n[TRUNCATED]"))
}

func TestRun_ReflectionFailureDegrades(t *testing.T) {
	sc := &mockScraper{pages: map[string]any{"https://acme.com": body("home")}}
	l := &mockLLM{err: errors.New("model overloaded")}
	res, err := newStage(l, sc, nil, nil).Run(context.Background(), "x", []model.Lead{{URL: "https://acme.com"}})
	require.NoError(t, err)
	assert.Empty(t, res.Companies)
	assert.Len(t, l.prompts, 2)
}

func TestRun_FatalAborts(t *testing.T) {
	sc := &mockScraper{errs: map[string]error{
		"https://acme.com": resilience.NewConfigError(tools.ErrToolNotFound),
	}}
	_, err := newStage(&mockLLM{}, sc, nil, nil).Run(context.Background(), "x", []model.Lead{
		{URL: "https://acme.com"},
	})
	assert.ErrorIs(t, err, tools.ErrToolNotFound)

	sc = &mockScraper{pages: map[string]any{"https://acme.com": body("home")}}
	l := &mockLLM{err: resilience.NewStatusError(401, errors.New("invalid key"))}
	_, err = newStage(l, sc, nil, nil).Run(context.Background(), "x", []model.Lead{{URL: "https://acme.com"}})
	require.Error(t, err)
	assert.Equal(t, 401, resilience.StatusCode(err))
}

func TestRun_SiteForbiddenDegradesLead(t *testing.T) {
	sc := &mockScraper{
		pages: map[string]any{"https://acme.com": body("home")},
		errs: map[string]error{
			"https://news.example/story": resilience.NewTargetError("https://news.example/story",
				resilience.NewStatusError(403, errors.New("local_http: fetch"))),
		},
	}
	l := &mockLLM{replies: map[string]string{
		"https://acme.com": `{"isCompanyPage": true, "companyName": "Acme"}`,
	}}
	res, err := newStage(l, sc, nil, nil).Run(context.Background(), "x", []model.Lead{
		{URL: "https://acme.com"},
		{URL: "https://news.example/story"},
	})
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	require.Len(t, res.Companies, 1)

	var blocked model.ScrapedPage
	for _, p := range res.Pages {
		if p.URL == "https://news.example/story" {
			blocked = p
		}
	}
	assert.NotEmpty(t, blocked.Error)
	assert.Empty(t, blocked.Companies)
}
