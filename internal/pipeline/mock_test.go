package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/tools"
)

// --- Tools Mock ---

type mockTools struct {
	mock.Mock
}

func (m *mockTools) Invoke(ctx context.Context, c tools.Capability, args map[string]any) (any, error) {
	ret := m.Called(ctx, c, args)
	return ret.Get(0), ret.Error(1)
}

func scrapeOf(url string) any {
	return mock.MatchedBy(func(args map[string]any) bool { return args["url"] == url })
}

// --- LLM fake ---

// scriptedLLM routes by system prompt: query generation, page reflection,
// profile extraction or narratives.
type scriptedLLM struct {
	mu         sync.Mutex
	err        error
	queries    string
	reflect    map[string]string
	profiles   map[string]string
	narratives map[string]string
	calls      int
}

func (s *scriptedLLM) Complete(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	switch {
	case strings.HasPrefix(system, "You generate Google search queries"):
		return s.queries, nil
	case strings.HasPrefix(system, "You analyze web pages"):
		for url, reply := range s.reflect {
			if strings.Contains(user, "URL: "+url+"\n") {
				return reply, nil
			}
		}
	case strings.HasPrefix(system, "You extract structured company data"):
		for name, reply := range s.profiles {
			if strings.HasPrefix(user, "Company: "+name+"\n") {
				return reply, nil
			}
		}
	case strings.HasPrefix(system, "Write a concise 2-3 sentence analyst narrative"):
		for name, reply := range s.narratives {
			if strings.Contains(user, `"company":"`+name+`"`) {
				return reply, nil
			}
		}
		return "", nil
	}
	return "nothing useful", nil
}

func testConfig() *config.Config {
	fast := config.RetryPolicy{MaxAttempts: 1, BaseDelayMs: 1, MaxDelayMs: 1}
	return &config.Config{
		Tools: config.ToolsConfig{SearchEngine: "google"},
		Pipeline: config.PipelineConfig{
			MinQueries:            1,
			MaxQueries:            1,
			PagesPerQuery:         1,
			MaxLeads:              30,
			SearchConcurrency:     2,
			EnrichConcurrency:     2,
			ExtractConcurrency:    2,
			PerCompanyConcurrency: 3,
			Normalize:             true,
		},
		Retry:  config.RetryConfig{Tools: fast, Reflect: fast, Extract: fast},
		Dedupe: config.DedupeConfig{RootDomain: "known_tlds"},
		Scorer: config.DefaultScorerConfig(),
	}
}

func page(title string) string {
	return "# " + title + "\n" + strings.Repeat("Lorem ipsum dolor sit amet. ", 5)
}

func matureProfile() string {
	features := make([]string, 10)
	for i := range features {
		features[i] = fmt.Sprintf("%q", fmt.Sprintf("Feature %d", i+1))
	}
	return fmt.Sprintf(`{
		"company": "Acme",
		"url": "https://acme.com",
		"businessModel": "SaaS",
		"pricingTiers": ["Free", "Team", "Enterprise"],
		"keyFeatures": [%s],
		"technicalCapabilities": {"scalability": "multi-region", "security": "SOC 2", "integrations": ["Slack", "Okta"]},
		"headquarters": "Berlin",
		"foundingYear": %d,
		"enterpriseCustomers": ["Globex", "Initech"]
	}`, strings.Join(features, ","), time.Now().Year()-10)
}

func freshProfile() string {
	return fmt.Sprintf(`{"company": "Fresh", "businessModel": "Unknown", "keyFeatures": [], "foundingYear": %d}`, time.Now().Year())
}

func eventMessages(events []model.ProgressEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e.Substage == "" {
			out = append(out, e.Message)
		}
	}
	return out
}
