// Package llm adapts the Anthropic client to a plain text-completion
// capability and extracts JSON embedded in model output.
package llm

import (
	"context"

	"github.com/sells-group/market-intel/internal/cost"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/pkg/anthropic"
)

// Completer turns a system and user prompt into text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// AnthropicCompleter implements Completer over an anthropic.Client.
type AnthropicCompleter struct {
	Client      anthropic.Client
	Model       string
	MaxTokens   int64
	Temperature *float64
	// Phase labels cost log lines.
	Phase string
	// Usage, when set, accumulates token counts for the run.
	Usage *cost.Tracker
	// Breaker, when set, fails calls fast while the API keeps failing.
	// Copies made by WithPhase share it.
	Breaker *resilience.CircuitBreaker
}

// WithPhase returns a copy of a that logs usage under phase.
func (a AnthropicCompleter) WithPhase(phase string) *AnthropicCompleter {
	a.Phase = phase
	return &a
}

func (a *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := a.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	resp, err := resilience.ExecuteVal(ctx, a.Breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.Client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.Model,
			MaxTokens:   maxTokens,
			System:      system,
			Messages:    []anthropic.Message{{Role: "user", Content: user}},
			Temperature: a.Temperature,
		})
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(a.Model, a.Phase)
	a.Usage.Record(a.Model, a.Phase, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp.Text(), nil
}
