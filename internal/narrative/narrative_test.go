package narrative

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
)

// mockLLM answers by the company named in the profile JSON.
type mockLLM struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	prompts []string
}

func (m *mockLLM) Complete(_ context.Context, _, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, user)
	for k, err := range m.errs {
		if strings.Contains(user, `"company":"`+k+`"`) {
			return "", err
		}
	}
	for k, v := range m.replies {
		if strings.Contains(user, `"company":"`+k+`"`) {
			return v, nil
		}
	}
	return "", nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func scored(name string, features ...string) model.ScoredCompany {
	return model.ScoredCompany{
		Company:   name,
		URL:       "https://" + strings.ToLower(name) + ".com",
		Vision:    72,
		Execution: 41,
		Quadrant:  model.QuadrantVisionaries,
		Raw: model.ExtractedCompanyData{
			Company:       name,
			BusinessModel: model.BusinessModelSaaS,
			KeyFeatures:   features,
		},
	}
}

func newWriter(l *mockLLM, em *progress.Emitter) *Writer {
	return New(Deps{LLM: l, Emitter: em, Retry: fastRetry()}, Config{Concurrency: 2})
}

func TestFallback(t *testing.T) {
	assert.Equal(t,
		"Acme offers a SaaS platform with vector search. It scores 72 on vision and 41 on execution, placing it among Visionaries.",
		Fallback(scored("Acme", "vector search", "RBAC")))

	bare := model.ScoredCompany{Company: "Beta", Vision: 30, Execution: 60, Quadrant: model.QuadrantChallengers}
	assert.Equal(t,
		"Beta offers a Unknown platform with a focused product set. It scores 30 on vision and 60 on execution, placing it among Challengers.",
		Fallback(bare))
}

func TestRun_WritesNarrativesInOrder(t *testing.T) {
	l := &mockLLM{
		replies: map[string]string{"Acme": "  Acme leads on vector search.\n"},
		errs:    map[string]error{"Gamma": resilience.NewStatusError(503, errors.New("overloaded"))},
	}
	em := progress.New()
	var mu sync.Mutex
	var events []model.ProgressEvent
	em.Subscribe(func(e model.ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	in := []model.ScoredCompany{scored("Acme", "vector search"), scored("Beta"), scored("Gamma", "dashboards")}
	out, err := newWriter(l, em).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "Acme leads on vector search.", out[0].Narrative)
	assert.Equal(t, Fallback(in[1]), out[1].Narrative)
	assert.Equal(t, Fallback(in[2]), out[2].Narrative)
	assert.Empty(t, in[0].Narrative)

	assert.Contains(t, l.prompts[0], "Company profile:\n{")
	assert.Len(t, l.prompts, 4)

	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, model.StageSynthesis, e.Stage)
		assert.Equal(t, model.SubstageNarratives, e.Substage)
		assert.Equal(t, 3, *e.Total)
	}
}

func TestRun_FatalAborts(t *testing.T) {
	l := &mockLLM{errs: map[string]error{"Acme": resilience.NewStatusError(401, errors.New("invalid key"))}}
	_, err := newWriter(l, nil).Run(context.Background(), []model.ScoredCompany{scored("Acme")})
	require.Error(t, err)
	assert.Equal(t, 401, resilience.StatusCode(err))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newWriter(&mockLLM{}, nil).Run(ctx, []model.ScoredCompany{scored("Acme")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Empty(t *testing.T) {
	out, err := newWriter(&mockLLM{}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
