package model

// Quadrant is one of four labels assigned from vision and execution.
type Quadrant string

const (
	QuadrantLeaders      Quadrant = "Leaders"
	QuadrantChallengers  Quadrant = "Challengers"
	QuadrantVisionaries  Quadrant = "Visionaries"
	QuadrantNichePlayers Quadrant = "NichePlayers"
)

// ScoreBreakdown holds the seven component scores, each 0-100.
type ScoreBreakdown struct {
	FeatureDepth         int `json:"featureDepth"`
	Innovation           int `json:"innovation"`
	Positioning          int `json:"positioning"`
	PricingMaturity      int `json:"pricingMaturity"`
	EnterprisePresence   int `json:"enterprisePresence"`
	DocumentationQuality int `json:"documentationQuality"`
	Viability            int `json:"viability"`
}

// ScoredCompany is one company after synthesis.
type ScoredCompany struct {
	Company   string               `json:"company"`
	URL       string               `json:"url"`
	Vision    int                  `json:"vision"`
	Execution int                  `json:"execution"`
	Quadrant  Quadrant             `json:"quadrant"`
	Breakdown ScoreBreakdown       `json:"breakdown"`
	Raw       ExtractedCompanyData `json:"raw"`
	Narrative string               `json:"narrative,omitempty"`
}
