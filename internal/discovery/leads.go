package discovery

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/market-intel/internal/model"
)

var (
	// Search backends disagree on where the result list lives.
	listKeys    = []string{"results", "organic", "items", "data", "search_results", "result"}
	textKeys    = []string{"result", "content", "text", "markdown"}
	nameKeys    = []string{"title", "name", "company", "result_title"}
	urlKeys     = []string{"url", "link", "href", "website"}
	snippetKeys = []string{"snippet", "description", "content", "excerpt"}

	bareURL = regexp.MustCompile(`https?://[^\s)"'<>\]]+`)
)

// ExtractLeads pulls candidate leads out of raw search payloads. Structured
// items are read from any known list key; free text is scanned for bare
// URLs. Failed searches are ignored.
func ExtractLeads(results []model.SearchRunResult) []model.Lead {
	var leads []model.Lead
	var items, fallback int
	for _, r := range results {
		if r.Raw == nil {
			continue
		}
		doc, text := normalizeRaw(r.Raw)

		for _, item := range resultItems(doc) {
			items++
			if lead, ok := leadFromItem(item, r.Query); ok {
				leads = append(leads, lead)
			}
		}

		for _, m := range bareURL.FindAllString(text, -1) {
			u, ok := normalizeURL(strings.TrimRight(m, ".,;:"))
			if !ok {
				continue
			}
			fallback++
			leads = append(leads, model.Lead{Name: nameFromURL(u), URL: u, SourceQuery: r.Query})
		}
	}

	zap.L().Debug("discovery: leads extracted",
		zap.Int("raw_results", len(results)),
		zap.Int("items", items),
		zap.Int("fallback_urls", fallback),
		zap.Int("leads", len(leads)),
	)
	return leads
}

// normalizeRaw returns a JSON document to search for items and the free
// text to scan for URLs.
func normalizeRaw(raw any) (doc, text string) {
	if s, ok := raw.(string); ok {
		trimmed := strings.TrimSpace(s)
		if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(trimmed) {
			doc = trimmed
		}
		return doc, s
	}

	b, err := json.Marshal(raw)
	if err != nil || !gjson.ValidBytes(b) {
		return "", ""
	}
	doc = string(b)
	parsed := gjson.Parse(doc)
	if parsed.IsObject() {
		text = firstString(parsed, textKeys)
	}
	return doc, text
}

func resultItems(doc string) []gjson.Result {
	if doc == "" {
		return nil
	}
	parsed := gjson.Parse(doc)
	if parsed.IsArray() {
		return parsed.Array()
	}
	if !parsed.IsObject() {
		return nil
	}
	for _, k := range listKeys {
		if v := parsed.Get(k); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func leadFromItem(item gjson.Result, query string) (model.Lead, bool) {
	if !item.IsObject() {
		return model.Lead{}, false
	}
	u, ok := normalizeURL(firstString(item, urlKeys))
	if !ok {
		return model.Lead{}, false
	}

	name := nameFromURL(u)
	if title := firstString(item, nameKeys); title != "" {
		name = cleanTitle(title)
	}
	if name == "" {
		return model.Lead{}, false
	}
	return model.Lead{
		Name:        name,
		URL:         u,
		Snippet:     firstString(item, snippetKeys),
		SourceQuery: query,
	}, true
}

// firstString returns the first non-blank string value among keys.
func firstString(obj gjson.Result, keys []string) string {
	for _, k := range keys {
		v := obj.Get(k)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

// cleanTitle keeps the part of a page title before " - " or " | ".
func cleanTitle(title string) string {
	title, _, _ = strings.Cut(title, " - ")
	title, _, _ = strings.Cut(title, " | ")
	return strings.TrimSpace(title)
}

func normalizeURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

// nameFromURL derives a display name from the first host label:
// https://www.acme-labs.io -> "Acme Labs".
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	base, _, _ := strings.Cut(host, ".")
	if base == "" {
		base = host
	}
	base = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(base))
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(base)
}
