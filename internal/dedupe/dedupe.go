// Package dedupe canonicalizes leads and companies to a domain key and
// merges duplicates.
package dedupe

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/model"
)

// DefaultMaxLeads caps Leads when limit is not positive.
const DefaultMaxLeads = 30

func leadKey(l model.Lead) string {
	if host, ok := Hostname(l.URL); ok {
		return host
	}
	return strings.ToLower(l.Name)
}

// Leads merges leads sharing a hostname. The first lead's fields win,
// empty name and snippet are backfilled from later duplicates, and each
// output carries its occurrence count. Output is ordered by descending
// occurrences (ties keep first-seen order) and truncated to limit.
func Leads(leads []model.Lead, limit int) []model.Lead {
	if limit <= 0 {
		limit = DefaultMaxLeads
	}

	index := make(map[string]int, len(leads))
	var out []model.Lead
	for _, l := range leads {
		key := leadKey(l)
		if i, ok := index[key]; ok {
			existing := &out[i]
			existing.Occurrences++
			if existing.Snippet == "" && l.Snippet != "" {
				existing.Snippet = l.Snippet
			}
			if existing.Name == "" && l.Name != "" {
				existing.Name = l.Name
			}
			continue
		}
		l.Occurrences = 1
		index[key] = len(out)
		out = append(out, l)
	}

	slices.SortStableFunc(out, func(a, b model.Lead) int {
		return b.Occurrences - a.Occurrences
	})
	if len(out) > limit {
		out = out[:limit]
	}

	zap.L().Debug("dedupe: leads",
		zap.Int("input", len(leads)),
		zap.Int("output", len(out)),
		zap.Int("limit", limit),
	)
	return out
}

// Companies merges companies sharing a root domain. The first URL seen
// for a domain wins unless a later one sits on the root domain itself
// while the kept one is a subdomain. Companies with unparsable URLs are
// dropped. Output keeps first-seen domain order.
func Companies(companies []model.Lead, root RootFunc) []model.Lead {
	if root == nil {
		root = KnownTLDRoot
	}

	type kept struct {
		lead      model.Lead
		subdomain bool
	}
	index := make(map[string]int, len(companies))
	var out []kept
	for _, c := range companies {
		host, ok := Hostname(c.URL)
		if !ok {
			continue
		}
		domain := root(host)
		sub := host != domain

		i, ok := index[domain]
		if !ok {
			index[domain] = len(out)
			out = append(out, kept{lead: c, subdomain: sub})
			continue
		}
		if out[i].subdomain && !sub {
			out[i] = kept{lead: c, subdomain: false}
		}
	}

	result := make([]model.Lead, len(out))
	for i, k := range out {
		result[i] = k.lead
	}
	return result
}
