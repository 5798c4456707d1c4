// Package narrative writes a short analyst paragraph for each scored
// company.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/fanout"
	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
	"github.com/sells-group/market-intel/internal/resilience"
)

const systemPrompt = "Write a concise 2-3 sentence analyst narrative about the company's market position. Be factual and avoid hype."

// Config holds the narrative knobs.
type Config struct {
	Concurrency int
}

// Deps are the collaborators a Writer calls out to.
type Deps struct {
	LLM     llm.Completer
	Emitter *progress.Emitter
	Retry   resilience.RetryConfig
}

// Writer generates narratives for one pipeline run.
type Writer struct {
	deps Deps
	cfg  Config
}

// New creates a Writer.
func New(deps Deps, cfg Config) *Writer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &Writer{deps: deps, cfg: cfg}
}

type job struct {
	index int
	score model.ScoredCompany
}

type written struct {
	index int
	text  string
}

// Run fills Narrative on a copy of scores, keeping their order. A company
// whose LLM call fails or comes back empty gets Fallback; only fatal
// errors abort.
func (w *Writer) Run(ctx context.Context, scores []model.ScoredCompany) ([]model.ScoredCompany, error) {
	work := make([]job, len(scores))
	for i, sc := range scores {
		work[i] = job{index: i, score: sc}
	}

	var fatal error
	fallbacks := 0
	res := fanout.Run(ctx, work, func(ctx context.Context, j job) ([]written, error) {
		text, err := w.write(ctx, j.score)
		if err != nil {
			return nil, err
		}
		return []written{{index: j.index, text: text}}, nil
	}, fanout.Options[job, written]{
		Name:  "narratives",
		Limit: w.cfg.Concurrency,
		OnError: func(j job, err error) []written {
			if resilience.IsFatal(err) {
				if fatal == nil {
					fatal = err
				}
				return nil
			}
			zap.L().Debug("narrative: using fallback", zap.String("company", j.score.Company), zap.Error(err))
			fallbacks++
			return []written{{index: j.index, text: Fallback(j.score)}}
		},
		OnSettled: func(done, total int) {
			w.deps.Emitter.Emit(model.ProgressEvent{
				Stage:    model.StageSynthesis,
				Substage: model.SubstageNarratives,
				Message:  fmt.Sprintf("Wrote %d/%d narratives", done, total),
			}.WithCount(done, total))
		},
	})
	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ScoredCompany, len(scores))
	copy(out, scores)
	for _, n := range res.Items {
		out[n.index].Narrative = n.text
	}
	zap.L().Info("narrative: complete",
		zap.Int("companies", len(out)),
		zap.Int("fallbacks", fallbacks),
	)
	return out, nil
}

// ErrEmpty is returned when the LLM answers with blank text.
var ErrEmpty = errors.New("narrative: empty answer")

// write asks the LLM for one narrative.
func (w *Writer) write(ctx context.Context, sc model.ScoredCompany) (string, error) {
	text, err := resilience.DoVal(ctx, w.deps.Retry.Logged("llm", "synthesis_narrative"), func(ctx context.Context) (string, error) {
		return w.deps.LLM.Complete(ctx, systemPrompt, userPrompt(sc))
	})
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

type profile struct {
	Company               string                      `json:"company"`
	URL                   string                      `json:"url"`
	BusinessModel         model.BusinessModel         `json:"businessModel"`
	KeyFeatures           []string                    `json:"keyFeatures"`
	TechnicalCapabilities model.TechnicalCapabilities `json:"technicalCapabilities"`
	PricingTiers          []string                    `json:"pricingTiers"`
	Vision                int                         `json:"vision"`
	Execution             int                         `json:"execution"`
	Quadrant              model.Quadrant              `json:"quadrant"`
}

func userPrompt(sc model.ScoredCompany) string {
	raw := sc.Raw
	b, _ := json.Marshal(profile{
		Company:               sc.Company,
		URL:                   sc.URL,
		BusinessModel:         raw.BusinessModel,
		KeyFeatures:           raw.KeyFeatures,
		TechnicalCapabilities: raw.TechnicalCapabilities,
		PricingTiers:          raw.PricingTiers,
		Vision:                sc.Vision,
		Execution:             sc.Execution,
		Quadrant:              sc.Quadrant,
	})
	return "Company profile:\n" + string(b)
}

// Fallback is the narrative used when the LLM gives nothing usable.
func Fallback(sc model.ScoredCompany) string {
	bm := string(sc.Raw.BusinessModel)
	if bm == "" {
		bm = string(model.BusinessModelUnknown)
	}
	feature := "a focused product set"
	if len(sc.Raw.KeyFeatures) > 0 && sc.Raw.KeyFeatures[0] != "" {
		feature = sc.Raw.KeyFeatures[0]
	}
	return fmt.Sprintf("%s offers a %s platform with %s. It scores %d on vision and %d on execution, placing it among %s.",
		sc.Company, bm, feature, sc.Vision, sc.Execution, sc.Quadrant)
}
