package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/resilience"
)

var (
	bulletPrefix = regexp.MustCompile(`^(?:[-*•]\s*|\d+[.)]\s*)+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// GenerateQueries asks the LLM for search queries about sector. The reply
// is parsed as a JSON array when one is present and as lines otherwise.
// Too few usable queries are topped up from fixed templates. Only fatal
// errors are returned; an unusable LLM reply falls back to the templates.
func (s *Stage) GenerateQueries(ctx context.Context, sector string) ([]string, error) {
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return nil, ErrEmptySector
	}
	minQ, maxQ := s.cfg.MinQueries, s.cfg.MaxQueries

	text, err := resilience.DoVal(ctx, s.deps.LLMRetry.Logged("llm", "generate_queries"), func(ctx context.Context) (string, error) {
		return s.deps.LLM.Complete(ctx, querySystemPrompt(minQ, maxQ), queryUserPrompt(sector))
	})
	if err != nil {
		if resilience.IsFatal(err) {
			return nil, err
		}
		zap.L().Warn("discovery: query generation failed, using templates", zap.Error(err))
		text = ""
	}

	var candidates []string
	if err := llm.DecodeArray(text, &candidates); err != nil {
		candidates = strings.Split(text, "\n")
	}
	queries := cleanQueries(candidates, maxQ)
	if len(queries) >= minQ {
		return queries, nil
	}

	zap.L().Debug("discovery: topping up queries from templates",
		zap.Int("generated", len(queries)),
	)
	queries = cleanQueries(append(queries, fallbackQueries(sector)...), maxQ)
	if len(queries) > minQ {
		queries = queries[:minQ]
	}
	return queries, nil
}

func querySystemPrompt(minQ, maxQ int) string {
	return strings.Join([]string{
		"You generate Google search queries to discover top companies in a market sector.",
		"Follow Google search best practices:",
		"- Use concise keyword phrases (not full sentences).",
		"- Include exact-match quotes for the sector where helpful.",
		"- Use OR for synonyms (e.g., vendors OR providers).",
		"- Mix intent types: lists, comparisons, enterprise, open-source, startups, pricing.",
		"- Prefer queries that surface company names and vendor lists.",
		"- Avoid punctuation-heavy or overly long queries.",
		fmt.Sprintf("Return %d-%d unique queries as a JSON array of strings.", minQ, maxQ),
	}, "\n")
}

func queryUserPrompt(sector string) string {
	return strings.Join([]string{
		"Market sector: " + sector,
		"Goal: find ~30 relevant companies/vendors/platforms.",
		"Write the queries now.",
	}, "\n")
}

func fallbackQueries(sector string) []string {
	quoted := `"` + sector + `"`
	return []string{
		quoted + " vendors",
		quoted + " companies",
		quoted + " platforms",
		quoted + " software",
		quoted + " providers",
		"best " + sector + " tools",
		"top " + sector + " vendors",
		sector + " market leaders",
		sector + " startups",
		sector + " open source",
		sector + " enterprise",
		sector + " pricing",
	}
}

// normalizeQuery strips list markers, a trailing comma, one pair of
// enclosing quotes, and collapses whitespace.
func normalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	q = bulletPrefix.ReplaceAllString(q, "")
	q = strings.TrimSuffix(q, ",")
	if len(q) >= 2 && (q[0] == '"' || q[0] == '\'') && q[len(q)-1] == q[0] {
		q = q[1 : len(q)-1]
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(q, " "))
}

// cleanQueries normalizes, drops blanks and case-insensitive duplicates,
// and clamps to limit.
func cleanQueries(raw []string, limit int) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, min(len(raw), limit))
	for _, r := range raw {
		q := normalizeQuery(r)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
