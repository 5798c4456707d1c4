package model

// RadarTier is the ring a company is placed on in the radar chart.
type RadarTier string

const (
	TierLeader     RadarTier = "Leader"
	TierChallenger RadarTier = "Challenger"
	TierEntrant    RadarTier = "Entrant"
)

// Movement is the direction arrow drawn for a radar point.
type Movement string

const (
	MovementOutperformer Movement = "outperformer"
	MovementFast         Movement = "fast"
	MovementForward      Movement = "forward"
)

// QuadrantPoint is one company on the 2x2 quadrant chart.
type QuadrantPoint struct {
	Company   string   `json:"company"`
	URL       string   `json:"url"`
	Vision    int      `json:"vision"`
	Execution int      `json:"execution"`
	Quadrant  Quadrant `json:"quadrant"`
}

// WavePoint is one company on the wave chart.
type WavePoint struct {
	Company         string `json:"company"`
	URL             string `json:"url"`
	Strategy        int    `json:"strategy"`
	CurrentOffering int    `json:"currentOffering"`
	MarketPresence  int    `json:"marketPresence"`
}

// RadarPoint is one company on the radar chart.
type RadarPoint struct {
	Company       string    `json:"company"`
	URL           string    `json:"url"`
	Tier          RadarTier `json:"tier"`
	Angle         float64   `json:"angle"`
	Radius        float64   `json:"radius"`
	Movement      *Movement `json:"movement"`
	MovementAngle float64   `json:"movementAngle"`
}

// ChartData bundles every chart dataset for one run.
type ChartData struct {
	Threshold int             `json:"threshold"`
	Quadrant  []QuadrantPoint `json:"quadrant"`
	Wave      []WavePoint     `json:"wave"`
	Radar     []RadarPoint    `json:"radar"`
}
