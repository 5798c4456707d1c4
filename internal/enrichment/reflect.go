package enrichment

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/llm"
	"github.com/sells-group/market-intel/internal/resilience"
)

// DefaultMaxContentChars bounds the page text sent for reflection.
const DefaultMaxContentChars = 5000

const truncationMarker = "\n\n[TRUNCATED]"

// Mention is a company named on a page, with its URL when one was given.
type Mention struct {
	Name string
	URL  string
}

// Reflection classifies one scraped page.
type Reflection struct {
	IsCompanyPage bool
	CompanyName   string
	Companies     []Mention
}

const reflectSystemPrompt = `You analyze web pages to identify companies in a specific market sector.

Your task:
1. Determine if this page is a company's official website (not a news article, blog post, or listicle)
2. Extract any companies mentioned or listed on this page that are relevant to the market sector

Return JSON only:
{
  "isCompanyPage": boolean,
  "companyName": "string or null - the company name if isCompanyPage is true",
  "extractedCompanies": [
    { "name": "Company Name", "url": "https://company.com" }
  ]
}

Rules:
- For listicles/aggregator pages (e.g., "Top 10 AI Labs"): extract all company names and URLs mentioned, set isCompanyPage=false
- For company websites: set isCompanyPage=true, companyName to the company name, extractedCompanies can be empty
- For news articles/blogs about companies: extract companies mentioned, isCompanyPage=false
- Only include companies relevant to the specified market sector
- If a company URL is not available, include name only with url as null
- Return empty extractedCompanies array if no relevant companies found
- Do not hallucinate companies - only extract what's explicitly mentioned`

// reflect asks the LLM what companies a page describes. Any failure other
// than a fatal one yields an empty, non-company reflection.
func (s *Stage) reflect(ctx context.Context, sector, url, content string) (Reflection, error) {
	user := fmt.Sprintf("Market sector: %s\nURL: %s\n\nPage content:\n%s",
		sector, url, llm.Truncate(content, s.cfg.MaxContentChars, truncationMarker))

	text, err := resilience.DoVal(ctx, s.deps.ReflectRetry.Logged("llm", "enrichment_reflect"), func(ctx context.Context) (string, error) {
		return s.deps.LLM.Complete(ctx, reflectSystemPrompt, user)
	})
	if err != nil {
		if resilience.IsFatal(err) {
			return Reflection{}, err
		}
		zap.L().Warn("enrichment: reflection failed", zap.String("url", url), zap.Error(err))
		return Reflection{}, nil
	}

	r, ok := ParseReflection(text)
	if !ok {
		zap.L().Debug("enrichment: reflection unparsable", zap.String("url", url))
	}
	return r, nil
}

// ParseReflection reads a reflection object from LLM output, tolerating
// nulls and wrong types. It reports false when no JSON object is found.
func ParseReflection(text string) (Reflection, bool) {
	raw, ok := llm.ExtractJSONObject(text)
	if !ok || !gjson.Valid(raw) {
		return Reflection{}, false
	}
	doc := gjson.Parse(raw)

	r := Reflection{IsCompanyPage: doc.Get("isCompanyPage").Bool()}
	if name := doc.Get("companyName"); name.Type == gjson.String {
		r.CompanyName = strings.TrimSpace(name.String())
	}
	for _, c := range doc.Get("extractedCompanies").Array() {
		name := c.Get("name")
		if name.Type != gjson.String || strings.TrimSpace(name.String()) == "" {
			continue
		}
		m := Mention{Name: strings.TrimSpace(name.String())}
		if u := c.Get("url"); u.Type == gjson.String {
			m.URL = strings.TrimSpace(u.String())
		}
		r.Companies = append(r.Companies, m)
	}
	return r, true
}
