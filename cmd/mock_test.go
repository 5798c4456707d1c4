package main

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
)

// --- Analyzer Mock ---

type mockAnalyzer struct {
	mock.Mock
	events []model.ProgressEvent
}

func (m *mockAnalyzer) Run(ctx context.Context, sector string, sub progress.Subscriber) (*model.AnalysisResult, error) {
	if sub != nil {
		for _, e := range m.events {
			sub(e)
		}
	}
	args := m.Called(ctx, sector)
	res, _ := args.Get(0).(*model.AnalysisResult)
	return res, args.Error(1)
}

func sampleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		RunID:        "run-1",
		MarketSector: "observability",
		Status:       model.RunStatusCompleted,
		Scores: []model.ScoredCompany{
			{
				Company:   "Acme",
				URL:       "https://acme.com",
				Vision:    90,
				Execution: 80,
				Quadrant:  model.QuadrantLeaders,
				Raw:       model.ExtractedCompanyData{BusinessModel: model.BusinessModelSaaS, KeyFeatures: []string{"APM"}},
			},
			{
				Company:   "Beta",
				URL:       "https://beta.io",
				Vision:    20,
				Execution: 30,
				Quadrant:  model.QuadrantNichePlayers,
				Raw:       model.ExtractedCompanyData{BusinessModel: model.BusinessModelOpenSource},
			},
		},
		Charts: &model.ChartData{Threshold: 55},
		Usage:  &model.UsageSummary{Calls: 7, InputTokens: 12000, OutputTokens: 3400, CostUSD: 0.087},
	}
}
