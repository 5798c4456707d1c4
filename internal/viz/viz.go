// Package viz prepares chart datasets from scored companies.
package viz

import (
	"math"
	"slices"

	"github.com/sells-group/market-intel/internal/model"
)

// Build computes every chart dataset for a scored batch.
func Build(scores []model.ScoredCompany, threshold float64) *model.ChartData {
	return &model.ChartData{
		Threshold: int(math.Round(threshold)),
		Quadrant:  Quadrant(scores),
		Wave:      Wave(scores),
		Radar:     Radar(scores),
	}
}

// Quadrant maps scores directly onto quadrant chart points.
func Quadrant(scores []model.ScoredCompany) []model.QuadrantPoint {
	out := make([]model.QuadrantPoint, len(scores))
	for i, s := range scores {
		out[i] = model.QuadrantPoint{
			Company:   s.Company,
			URL:       s.URL,
			Vision:    s.Vision,
			Execution: s.Execution,
			Quadrant:  s.Quadrant,
		}
	}
	return out
}

// Wave maps vision to strategy and execution to current offering. Market
// presence leans slightly toward execution.
func Wave(scores []model.ScoredCompany) []model.WavePoint {
	out := make([]model.WavePoint, len(scores))
	for i, s := range scores {
		out[i] = model.WavePoint{
			Company:         s.Company,
			URL:             s.URL,
			Strategy:        s.Vision,
			CurrentOffering: s.Execution,
			MarketPresence:  marketPresence(s.Vision, s.Execution),
		}
	}
	return out
}

// Radar places companies on rings by tier, strongest first.
func Radar(scores []model.ScoredCompany) []model.RadarPoint {
	sorted := slices.Clone(scores)
	slices.SortStableFunc(sorted, func(a, b model.ScoredCompany) int {
		return (b.Vision + b.Execution) - (a.Vision + a.Execution)
	})

	out := make([]model.RadarPoint, len(sorted))
	for i, s := range sorted {
		t := tier(s.Quadrant, s.Vision, s.Execution)
		angle := radarAngle(s.Vision, s.Execution)
		mv := movement(s.Vision, s.Execution)
		out[i] = model.RadarPoint{
			Company:       s.Company,
			URL:           s.URL,
			Tier:          t,
			Angle:         angle,
			Radius:        radius(s.Vision, s.Execution, t),
			Movement:      mv,
			MovementAngle: movementAngle(angle, mv),
		}
	}
	return out
}

func marketPresence(vision, execution int) int {
	return int(math.Round(float64(execution)*0.55 + float64(vision)*0.45))
}

func combined(vision, execution int) float64 {
	return float64(vision+execution) / 2
}

func tier(q model.Quadrant, vision, execution int) model.RadarTier {
	c := combined(vision, execution)
	cut := 50.0
	switch q {
	case model.QuadrantLeaders:
		if c >= 80 {
			return model.TierLeader
		}
		return model.TierChallenger
	case model.QuadrantChallengers, model.QuadrantVisionaries:
		cut = 60
	}
	if c >= cut {
		return model.TierChallenger
	}
	return model.TierEntrant
}

// radarAngle picks a 60 degree sector from the vision/execution halves
// and offsets within it by the scores so nearby companies separate.
func radarAngle(vision, execution int) float64 {
	highV, highE := vision >= 50, execution >= 50
	var base float64
	switch {
	case highV && highE:
		base = 30
	case !highV && highE:
		base = 300
	case highV && !highE:
		base = 120
	default:
		base = 210
	}
	angle := base + float64(vision%20)/20*30 - float64(execution%20)/20*15
	if angle < 0 {
		angle += 360
	}
	if angle >= 360 {
		angle -= 360
	}
	return math.Round(angle)
}

var tierRadius = map[model.RadarTier][2]float64{
	model.TierLeader:     {60, 80},
	model.TierChallenger: {35, 60},
	model.TierEntrant:    {15, 35},
}

func radius(vision, execution int, t model.RadarTier) float64 {
	r := tierRadius[t]
	return math.Round(r[0] + (r[1]-r[0])*combined(vision, execution)/100)
}

func movement(vision, execution int) *model.Movement {
	c := combined(vision, execution)
	var m model.Movement
	switch {
	case c >= 75 && abs(vision-execution) <= 15:
		m = model.MovementOutperformer
	case vision > execution+10 && vision >= 60:
		m = model.MovementFast
	case execution >= 50 && vision >= 40, c >= 50:
		m = model.MovementForward
	default:
		return nil
	}
	return &m
}

func movementAngle(angle float64, m *model.Movement) float64 {
	if m == nil {
		return angle
	}
	switch *m {
	case model.MovementOutperformer:
		return math.Mod(angle+180, 360)
	case model.MovementFast:
		return 180
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
