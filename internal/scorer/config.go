// Package scorer turns extracted company profiles into vision and execution
// scores and assigns each company a quadrant relative to its cohort.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/config"
)

// VisionWeightSum returns the sum of the vision component weights.
func VisionWeightSum(c config.ScorerConfig) float64 {
	w := c.VisionWeights
	return w.FeatureDepth + w.Innovation + w.Positioning
}

// ExecutionWeightSum returns the sum of the execution component weights.
func ExecutionWeightSum(c config.ScorerConfig) float64 {
	w := c.ExecutionWeights
	return w.PricingMaturity + w.EnterprisePresence + w.DocumentationQuality + w.Viability
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	weights := map[string]float64{
		"vision_weights.feature_depth":            c.VisionWeights.FeatureDepth,
		"vision_weights.innovation":               c.VisionWeights.Innovation,
		"vision_weights.positioning":              c.VisionWeights.Positioning,
		"execution_weights.pricing_maturity":      c.ExecutionWeights.PricingMaturity,
		"execution_weights.enterprise_presence":   c.ExecutionWeights.EnterprisePresence,
		"execution_weights.documentation_quality": c.ExecutionWeights.DocumentationQuality,
		"execution_weights.viability":             c.ExecutionWeights.Viability,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	// Each axis is a weighted mean, so weights must sum to 1.
	if sum := VisionWeightSum(c); math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("vision weights should sum to 1, got %.2f", sum))
	}
	if sum := ExecutionWeightSum(c); math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("execution weights should sum to 1, got %.2f", sum))
	}

	if c.SpreadThreshold < 0 || c.SpreadThreshold > 100 {
		errs = append(errs, "spread_threshold must be between 0 and 100")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
