package extraction

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

// mockLLM answers by the company named in the user prompt.
type mockLLM struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	prompts []string
}

func (m *mockLLM) Complete(_ context.Context, _, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, user)
	if m.err != nil {
		return "", m.err
	}
	for k, v := range m.replies {
		if strings.HasPrefix(user, "Company: "+k+"\n") {
			return v, nil
		}
	}
	return "I could not find anything.", nil
}

func (m *mockLLM) promptFor(company string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if strings.HasPrefix(p, "Company: "+company+"\n") {
			return p
		}
	}
	return ""
}

// mockScraper returns canned page bodies by URL. Unknown URLs scrape empty.
type mockScraper struct {
	mu    sync.Mutex
	pages map[string]any
	errs  map[string]error
	calls []string
}

func (m *mockScraper) Invoke(_ context.Context, _ tools.Capability, args map[string]any) (any, error) {
	url := args["url"].(string)
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	return m.pages[url], nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func body(s string) string { return s + "\n" + strings.Repeat("content ", 20) }
