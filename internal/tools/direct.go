package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/internal/scrape"
	"github.com/sells-group/market-intel/pkg/jina"
)

// DirectDialer exposes Jina Search and the scrape chain under the same
// tool names a remote MCP server would advertise. The session is
// stateless, so it never reports session loss.
func DirectDialer(search jina.Client, chain *scrape.Chain) Dialer {
	return func(context.Context) (Session, error) {
		if search == nil {
			return nil, resilience.NewConfigError(errors.New("tools: search client is not configured"))
		}
		if chain == nil || chain.Len() == 0 {
			return nil, resilience.NewConfigError(errors.New("tools: no scrapers configured"))
		}
		return &directSession{search: search, chain: chain}, nil
	}
}

type directSession struct {
	search jina.Client
	chain  *scrape.Chain
}

func (s *directSession) ListTools(context.Context) ([]Tool, error) {
	return []Tool{
		&funcTool{name: "search_engine", fn: s.searchEngine},
		&funcTool{name: "scrape_as_markdown", fn: s.scrapeAsMarkdown},
	}, nil
}

func (s *directSession) Close() error { return nil }

// searchEngine answers {query, cursor} with {"results": [...]}.
func (s *directSession) searchEngine(ctx context.Context, args map[string]any) (any, error) {
	query := argString(args, "query")
	if query == "" {
		return nil, eris.New("search_engine: query is required")
	}
	page := 1
	if n, err := strconv.Atoi(argString(args, "cursor")); err == nil && n > 0 {
		page = n
	}

	resp, err := s.search.Search(ctx, query, jina.WithPage(page))
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(resp.Data))
	for _, r := range resp.Data {
		results = append(results, map[string]any{
			"title":       r.Title,
			"url":         r.URL,
			"description": r.Description,
		})
	}
	return map[string]any{"results": results}, nil
}

func (s *directSession) scrapeAsMarkdown(ctx context.Context, args map[string]any) (any, error) {
	target := argString(args, "url")
	if target == "" {
		return nil, eris.New("scrape_as_markdown: url is required")
	}
	res, err := s.chain.Scrape(ctx, target)
	if err != nil {
		return nil, err
	}
	return res.Markdown, nil
}

type funcTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func (t *funcTool) Name() string { return t.name }

func (t *funcTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
