package scorer

import (
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// Scorer computes composite scores for a batch of companies. It performs
// no I/O.
type Scorer struct {
	cfg config.ScorerConfig
	// Now supplies the current year for viability. Defaults to time.Now.
	Now func() time.Time
}

// New creates a Scorer. A zero-valued cfg falls back to the defaults.
func New(cfg config.ScorerConfig) *Scorer {
	if VisionWeightSum(cfg) == 0 && ExecutionWeightSum(cfg) == 0 {
		cfg = config.DefaultScorerConfig()
	}
	return &Scorer{cfg: cfg, Now: time.Now}
}

// Result is the scored batch plus the shared quadrant threshold.
type Result struct {
	Companies []model.ScoredCompany
	Threshold float64
}

// Breakdown computes the seven component scores for one company.
func (s *Scorer) Breakdown(d model.ExtractedCompanyData) model.ScoreBreakdown {
	b, _, _ := s.components(d)
	return roundBreakdown(b)
}

func (s *Scorer) components(d model.ExtractedCompanyData) (rawBreakdown, float64, float64) {
	b := rawBreakdown{
		featureDepth:         FeatureDepth(d.KeyFeatures),
		innovation:           Innovation(d.TechnicalCapabilities),
		positioning:          Positioning(d.BusinessModel),
		pricingMaturity:      PricingMaturity(d.PricingTiers),
		enterprisePresence:   EnterprisePresence(d.EnterpriseCustomers),
		documentationQuality: DocumentationQuality(d.TechnicalCapabilities, d.KeyFeatures, d.Sources.Docs != nil),
		viability:            Viability(d.FoundingYear, s.now().Year()),
	}
	vw, ew := s.cfg.VisionWeights, s.cfg.ExecutionWeights
	vision := b.featureDepth*vw.FeatureDepth + b.innovation*vw.Innovation + b.positioning*vw.Positioning
	execution := b.pricingMaturity*ew.PricingMaturity +
		b.enterprisePresence*ew.EnterprisePresence +
		b.documentationQuality*ew.DocumentationQuality +
		b.viability*ew.Viability
	return b, vision, execution
}

// rawBreakdown holds unrounded component scores.
type rawBreakdown struct {
	featureDepth         float64
	innovation           float64
	positioning          float64
	pricingMaturity      float64
	enterprisePresence   float64
	documentationQuality float64
	viability            float64
}

// Score scores every company. With normalize set, each axis is rescaled to
// span 0-100 when its spread across the batch reaches the configured
// threshold. Quadrants split at the median of the pooled vision and
// execution values.
func (s *Scorer) Score(data []model.ExtractedCompanyData, normalize bool) Result {
	breakdowns := make([]model.ScoreBreakdown, len(data))
	vision := make([]float64, len(data))
	execution := make([]float64, len(data))
	for i, d := range data {
		b, v, e := s.components(d)
		breakdowns[i] = roundBreakdown(b)
		vision[i], execution[i] = v, e
	}

	if normalize {
		vision = s.rescale(vision)
		execution = s.rescale(execution)
	}
	threshold := median(append(slices.Clone(vision), execution...))

	out := make([]model.ScoredCompany, len(data))
	for i, d := range data {
		v := roundScore(vision[i])
		e := roundScore(execution[i])
		out[i] = model.ScoredCompany{
			Company:   d.Company,
			URL:       d.URL,
			Vision:    v,
			Execution: e,
			Quadrant:  Quadrant(v, e, threshold),
			Breakdown: breakdowns[i],
			Raw:       d,
		}
	}

	zap.L().Debug("scorer: batch scored",
		zap.Int("companies", len(out)),
		zap.Float64("threshold", threshold),
		zap.Bool("normalize", normalize),
	)
	return Result{Companies: out, Threshold: threshold}
}

// Quadrant labels a company from its scores and the batch threshold.
func Quadrant(vision, execution int, threshold float64) model.Quadrant {
	v, e := float64(vision), float64(execution)
	switch {
	case v >= threshold && e >= threshold:
		return model.QuadrantLeaders
	case v < threshold && e >= threshold:
		return model.QuadrantChallengers
	case v >= threshold && e < threshold:
		return model.QuadrantVisionaries
	default:
		return model.QuadrantNichePlayers
	}
}

// rescale maps values linearly onto 0-100 unless the spread is below the
// configured threshold.
func (s *Scorer) rescale(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	lo, hi := slices.Min(values), slices.Max(values)
	if hi-lo < float64(s.cfg.SpreadThreshold) || hi == lo {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - lo) / (hi - lo) * 100
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 50
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func roundScore(v float64) int {
	return int(clamp(math.Round(v)))
}

func roundBreakdown(b rawBreakdown) model.ScoreBreakdown {
	return model.ScoreBreakdown{
		FeatureDepth:         roundScore(b.featureDepth),
		Innovation:           roundScore(b.innovation),
		Positioning:          roundScore(b.positioning),
		PricingMaturity:      roundScore(b.pricingMaturity),
		EnterprisePresence:   roundScore(b.enterprisePresence),
		DocumentationQuality: roundScore(b.documentationQuality),
		Viability:            roundScore(b.viability),
	}
}

func (s *Scorer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
