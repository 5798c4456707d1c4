package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

// mockLLM returns a canned reply or error.
type mockLLM struct {
	reply string
	err   error
	calls int
}

func (m *mockLLM) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.reply, m.err
}

// mockTools answers search calls through a function.
type mockTools struct {
	mu    sync.Mutex
	calls []map[string]any
	fn    func(args map[string]any) (any, error)
}

func (m *mockTools) Invoke(_ context.Context, capability tools.Capability, args map[string]any) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()
	if capability != tools.CapabilitySearch {
		return nil, resilience.NewConfigError(tools.ErrToolNotFound)
	}
	return m.fn(args)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}
