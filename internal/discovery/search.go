package discovery

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/fanout"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/tools"
)

type searchUnit struct {
	query string
	page  int
}

// RunSearches issues one search per query and result page. Failed units
// carry their error message instead of a raw payload. A fatal error from
// any unit is returned once every unit has settled.
func (s *Stage) RunSearches(ctx context.Context, queries []string) ([]model.SearchRunResult, error) {
	units := make([]searchUnit, 0, len(queries)*s.cfg.PagesPerQuery)
	for _, q := range queries {
		for i := range s.cfg.PagesPerQuery {
			units = append(units, searchUnit{query: q, page: s.cfg.CursorStart + i})
		}
	}

	var fatal error
	res := fanout.Run(ctx, units, s.search, fanout.Options[searchUnit, model.SearchRunResult]{
		Name:  "discovery.search",
		Limit: s.cfg.Concurrency,
		OnError: func(u searchUnit, err error) []model.SearchRunResult {
			if fatal == nil && resilience.IsFatal(err) {
				fatal = err
			}
			zap.L().Debug("discovery: search failed",
				zap.String("query", u.query),
				zap.Int("page", u.page),
				zap.Error(err),
			)
			return []model.SearchRunResult{{Query: u.query, Page: u.page, Error: err.Error()}}
		},
		OnSettled: func(done, total int) {
			s.deps.Emitter.Emit(model.ProgressEvent{
				Stage:    model.StageDiscovery,
				Substage: model.SubstageSearching,
				Message:  fmt.Sprintf("Completed %d/%d searches", done, total),
			}.WithCount(done, total))
		},
	})

	zap.L().Info("discovery: searches settled",
		zap.Int("units", len(units)),
		zap.Int("failed", res.Failed),
	)
	if fatal != nil {
		return res.Items, fatal
	}
	return res.Items, nil
}

func (s *Stage) search(ctx context.Context, u searchUnit) ([]model.SearchRunResult, error) {
	args := map[string]any{
		"query":  u.query,
		"cursor": strconv.Itoa(u.page),
		"engine": s.cfg.Engine,
	}
	raw, err := resilience.DoVal(ctx, s.deps.ToolRetry.Logged("tools", "search"), func(ctx context.Context) (any, error) {
		return s.deps.Tools.Invoke(ctx, tools.CapabilitySearch, args)
	})
	if err != nil {
		return nil, err
	}
	return []model.SearchRunResult{{Query: u.query, Page: u.page, Raw: raw}}, nil
}
