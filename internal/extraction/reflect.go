package extraction

import (
	"context"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/pages"
	"github.com/sells-group/market-intel/internal/resilience"
)

// DefaultMaxSectionChars bounds each page section sent for reflection.
const DefaultMaxSectionChars = 7000

// FallbackNote marks profiles built without a usable LLM answer.
const FallbackNote = "LLM extraction failed or insufficient content."

const extractSystemPrompt = `You extract structured company data from scraped website content.
Return ONLY valid JSON. No markdown. No commentary.
If a field is missing, use null, empty array, or 'Unknown'.
Be concise and factual. Do not hallucinate.
Schema:
{
  "company": string,
  "url": string,
  "businessModel": "SaaS" | "Open Source" | "License" | "Freemium" | "Managed Service" | "Unknown",
  "pricingTiers": string[],
  "keyFeatures": string[],
  "technicalCapabilities": {
    "scalability": string | null,
    "security": string | null,
    "integrations": string[]
  },
  "headquarters": string | null,
  "foundingYear": number | null,
  "enterpriseCustomers": string[],
  "sources": { "pricing": string | null, "docs": string | null, "about": string | null }
}`

// scraped holds the page found for each category, if any.
type scraped map[model.CacheCategory]*pages.Page

func (s scraped) url(cat model.CacheCategory) *string {
	if p := s[cat]; p != nil {
		return model.StringPtr(p.URL)
	}
	return nil
}

func (s scraped) section(cat model.CacheCategory, limit int) string {
	if p := s[cat]; p != nil && p.Content != "" {
		return llm.Truncate(p.Content, limit, "\n\n[TRUNCATED]")
	}
	return "[missing]"
}

func (s *Stage) userPrompt(c model.CompanyInput, found scraped) string {
	limit := s.cfg.MaxSectionChars
	return strings.Join([]string{
		"Company: " + c.Name,
		"Website: " + c.URL,
		"",
		"Pricing page content:",
		found.section(model.CategoryPricing, limit),
		"",
		"Docs/features page content:",
		found.section(model.CategoryDocs, limit),
		"",
		"About/company page content:",
		found.section(model.CategoryAbout, limit),
	}, "\n")
}

// reflect builds the profile for one company from its scraped pages.
// Anything short of a fatal error degrades to Fallback.
func (s *Stage) reflect(ctx context.Context, c model.CompanyInput, found scraped) (model.ExtractedCompanyData, error) {
	text, err := resilience.DoVal(ctx, s.deps.ExtractRetry.Logged("llm", "extraction_reflect"), func(ctx context.Context) (string, error) {
		return s.deps.LLM.Complete(ctx, extractSystemPrompt, s.userPrompt(c, found))
	})
	if err != nil {
		if resilience.IsFatal(err) {
			return model.ExtractedCompanyData{}, err
		}
		zap.L().Warn("extraction: reflection failed", zap.String("company", c.Name), zap.Error(err))
		return Fallback(c, found), nil
	}

	profile, ok := ParseProfile(text, c, found)
	if !ok {
		zap.L().Debug("extraction: reflection unparsable", zap.String("company", c.Name))
		return Fallback(c, found), nil
	}
	return profile, nil
}

// Fallback is the profile used when the LLM gives nothing usable.
func Fallback(c model.CompanyInput, found scraped) model.ExtractedCompanyData {
	d := model.ExtractedCompanyData{
		Company: c.Name,
		URL:     c.URL,
		Sources: model.Sources{
			Pricing: found.url(model.CategoryPricing),
			Docs:    found.url(model.CategoryDocs),
			About:   found.url(model.CategoryAbout),
		},
		Notes: model.StringPtr(FallbackNote),
	}
	d.Normalize()
	return d
}

// ParseProfile reads an extracted profile from LLM output. Wrong types
// are treated as missing. Source URLs prefer the pages actually scraped.
func ParseProfile(text string, c model.CompanyInput, found scraped) (model.ExtractedCompanyData, bool) {
	raw, ok := llm.ExtractJSONObject(text)
	if !ok || !gjson.Valid(raw) {
		return model.ExtractedCompanyData{}, false
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return model.ExtractedCompanyData{}, false
	}

	d := model.ExtractedCompanyData{
		Company:             firstNonEmpty(str(doc, "company"), c.Name),
		URL:                 firstNonEmpty(str(doc, "url"), c.URL),
		BusinessModel:       model.ParseBusinessModel(str(doc, "businessModel")),
		PricingTiers:        strs(doc, "pricingTiers"),
		KeyFeatures:         strs(doc, "keyFeatures"),
		Headquarters:        model.StringPtr(str(doc, "headquarters")),
		FoundingYear:        year(doc.Get("foundingYear")),
		EnterpriseCustomers: strs(doc, "enterpriseCustomers"),
		TechnicalCapabilities: model.TechnicalCapabilities{
			Scalability:  model.StringPtr(str(doc, "technicalCapabilities.scalability")),
			Security:     model.StringPtr(str(doc, "technicalCapabilities.security")),
			Integrations: strs(doc, "technicalCapabilities.integrations"),
		},
		Sources: model.Sources{
			Pricing: orPtr(found.url(model.CategoryPricing), str(doc, "sources.pricing")),
			Docs:    orPtr(found.url(model.CategoryDocs), str(doc, "sources.docs")),
			About:   orPtr(found.url(model.CategoryAbout), str(doc, "sources.about")),
		},
		Notes: model.StringPtr(str(doc, "notes")),
	}
	d.Normalize()
	return d, true
}

func str(doc gjson.Result, path string) string {
	v := doc.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func strs(doc gjson.Result, path string) []string {
	out := []string{}
	list := doc.Get(path)
	if !list.IsArray() {
		return out
	}
	for _, v := range list.Array() {
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// year accepts a number or a numeric string.
func year(v gjson.Result) *int {
	var y int
	switch v.Type {
	case gjson.Number:
		y = int(v.Int())
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.String()))
		if err != nil {
			return nil
		}
		y = n
	default:
		return nil
	}
	if y <= 0 {
		return nil
	}
	return &y
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orPtr(p *string, fallback string) *string {
	if p != nil {
		return p
	}
	return model.StringPtr(fallback)
}
