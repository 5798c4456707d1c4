package scorer

import (
	"strings"

	"github.com/sells-group/market-intel/internal/model"
)

var (
	scaleKeywords      = []string{"million", "billion", "high qps", "low latency"}
	complianceKeywords = []string{"soc", "iso", "hipaa", "gdpr", "pci"}

	// enterpriseNames are substring-matched against customer names.
	enterpriseNames = []string{
		"microsoft", "google", "amazon", "aws", "meta", "apple", "ibm",
		"oracle", "salesforce", "sap", "netflix", "uber", "snowflake",
		"databricks",
	}

	positioningScores = map[model.BusinessModel]float64{
		model.BusinessModelManagedService: 80,
		model.BusinessModelSaaS:           75,
		model.BusinessModelFreemium:       70,
		model.BusinessModelOpenSource:     65,
		model.BusinessModelLicense:        55,
	}
)

// tier maps a count onto a score: the first bound the count does not
// exceed picks its score, otherwise above wins.
type tier struct {
	max   int
	score float64
}

func stepScore(n int, tiers []tier, above float64) float64 {
	for _, t := range tiers {
		if n <= t.max {
			return t.score
		}
	}
	return above
}

var (
	featureTiers    = []tier{{0, 15}, {2, 30}, {4, 50}, {7, 70}, {10, 85}}
	pricingTiers    = []tier{{0, 25}, {1, 40}, {2, 55}, {3, 70}}
	customerTiers   = []tier{{0, 20}, {2, 40}, {5, 55}, {10, 70}, {20, 80}}
	viabilityTiers  = []tier{{1, 35}, {3, 50}, {5, 65}, {8, 80}, {12, 90}}
	unknownFounding = 50.0
)

// FeatureDepth buckets the feature count, with a bonus for any detailed
// feature description.
func FeatureDepth(features []string) float64 {
	score := stepScore(len(features), featureTiers, 95)
	for _, f := range features {
		if len(f) >= 80 {
			score += 5
			break
		}
	}
	return clamp(score)
}

// Innovation rewards scalability claims, compliance and integrations.
func Innovation(tc model.TechnicalCapabilities) float64 {
	scalability := lower(tc.Scalability)
	security := lower(tc.Security)

	score := 40.0
	if len(scalability) > 40 {
		score += 10
	}
	if containsAny(scalability, scaleKeywords) {
		score += 15
	}
	if containsAny(security, complianceKeywords) {
		score += 10
	}
	score += min(float64(2*len(tc.Integrations)), 20)
	return clamp(score)
}

// Positioning scores the business model.
func Positioning(bm model.BusinessModel) float64 {
	if s, ok := positioningScores[bm]; ok {
		return s
	}
	return 45
}

// PricingMaturity buckets the tier count with enterprise and free bonuses.
func PricingMaturity(tiers []string) float64 {
	score := stepScore(len(tiers), pricingTiers, 80)
	var enterprise, free bool
	for _, t := range tiers {
		t = strings.ToLower(t)
		enterprise = enterprise || strings.Contains(t, "enterprise")
		free = free || strings.Contains(t, "free")
	}
	if enterprise {
		score += 10
	}
	if free {
		score += 5
	}
	return clamp(score)
}

// EnterprisePresence buckets the customer count with a bonus for any
// well-known enterprise name.
func EnterprisePresence(customers []string) float64 {
	score := stepScore(len(customers), customerTiers, 90)
	for _, c := range customers {
		if containsAny(strings.ToLower(c), enterpriseNames) {
			score += 10
			break
		}
	}
	return clamp(score)
}

// DocumentationQuality rewards a docs source plus integration and feature
// breadth.
func DocumentationQuality(tc model.TechnicalCapabilities, features []string, hasDocs bool) float64 {
	score := 20.0
	if hasDocs {
		score = 40
	}
	score += min(float64(2*len(tc.Integrations)), 20)
	score += min(float64(2*len(features)), 20)
	return clamp(score)
}

// Viability buckets company age. A nil or zero founding year is 50.
func Viability(foundingYear *int, currentYear int) float64 {
	if foundingYear == nil || *foundingYear == 0 {
		return unknownFounding
	}
	age := max(0, currentYear-*foundingYear)
	return stepScore(age, viabilityTiers, 95)
}

func lower(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(*s)
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v != v {
		return 0
	}
	return min(max(v, 0), 100)
}
