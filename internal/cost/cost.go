// Package cost accounts LLM token usage and estimated spend for one run.
package cost

import (
	"sort"
	"sync"

	"github.com/sells-group/market-intel/internal/model"
)

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to pricing.
type Rates map[string]ModelRate

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
	}
}

// Cost computes USD for one call. Unknown models cost 0.
func (r Rates) Cost(modelID string, input, output int64) float64 {
	rate, ok := r[modelID]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Tracker accumulates usage per phase. It is safe for concurrent use.
type Tracker struct {
	rates Rates

	mu     sync.Mutex
	phases map[string]*model.PhaseUsage
}

// NewTracker creates a Tracker. Nil rates use DefaultRates.
func NewTracker(rates Rates) *Tracker {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Tracker{rates: rates, phases: make(map[string]*model.PhaseUsage)}
}

// Record adds one completed call. A nil Tracker ignores it.
func (t *Tracker) Record(modelID, phase string, input, output int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.phases[phase]
	if !ok {
		p = &model.PhaseUsage{Phase: phase}
		t.phases[phase] = p
	}
	p.Calls++
	p.InputTokens += input
	p.OutputTokens += output
	p.CostUSD += t.rates.Cost(modelID, input, output)
}

// Summary returns totals and per-phase usage sorted by phase name.
func (t *Tracker) Summary() model.UsageSummary {
	s := model.UsageSummary{Phases: []model.PhaseUsage{}}
	if t == nil {
		return s
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.phases {
		s.Phases = append(s.Phases, *p)
		s.Calls += p.Calls
		s.InputTokens += p.InputTokens
		s.OutputTokens += p.OutputTokens
		s.CostUSD += p.CostUSD
	}
	sort.Slice(s.Phases, func(i, j int) bool { return s.Phases[i].Phase < s.Phases[j].Phase })
	return s
}
