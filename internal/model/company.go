package model

import "strings"

// BusinessModel classifies how a company monetizes its product.
type BusinessModel string

const (
	BusinessModelSaaS           BusinessModel = "SaaS"
	BusinessModelOpenSource     BusinessModel = "OpenSource"
	BusinessModelLicense        BusinessModel = "License"
	BusinessModelFreemium       BusinessModel = "Freemium"
	BusinessModelManagedService BusinessModel = "ManagedService"
	BusinessModelUnknown        BusinessModel = "Unknown"
)

// ParseBusinessModel maps free-form model labels ("Open Source",
// "managed-service", "saas") onto the enum. Anything unrecognized is Unknown.
func ParseBusinessModel(s string) BusinessModel {
	key := strings.ToLower(s)
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	switch key {
	case "saas":
		return BusinessModelSaaS
	case "opensource", "oss":
		return BusinessModelOpenSource
	case "license", "licence", "licensed":
		return BusinessModelLicense
	case "freemium":
		return BusinessModelFreemium
	case "managedservice", "managed":
		return BusinessModelManagedService
	default:
		return BusinessModelUnknown
	}
}

// CompanyInput is the stable identity passed into extraction. URL is
// always a homepage (scheme://host).
type CompanyInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TechnicalCapabilities describes technical depth signals from docs pages.
type TechnicalCapabilities struct {
	Scalability  *string  `json:"scalability"`
	Security     *string  `json:"security"`
	Integrations []string `json:"integrations"`
}

// Sources records which page URL each category was extracted from.
type Sources struct {
	Pricing *string `json:"pricing"`
	Docs    *string `json:"docs"`
	About   *string `json:"about"`
}

// ExtractedCompanyData is the structured profile of one company. Missing
// data is represented by empty slices, Unknown or nil pointers, never by
// absent fields.
type ExtractedCompanyData struct {
	Company               string                `json:"company"`
	URL                   string                `json:"url"`
	BusinessModel         BusinessModel         `json:"businessModel"`
	PricingTiers          []string              `json:"pricingTiers"`
	KeyFeatures           []string              `json:"keyFeatures"`
	TechnicalCapabilities TechnicalCapabilities `json:"technicalCapabilities"`
	Headquarters          *string               `json:"headquarters"`
	FoundingYear          *int                  `json:"foundingYear"`
	EnterpriseCustomers   []string              `json:"enterpriseCustomers"`
	Sources               Sources               `json:"sources"`
	Notes                 *string               `json:"notes"`
}

// Normalize fills nil slices and an empty business model so that every
// field is populated.
func (d *ExtractedCompanyData) Normalize() {
	if d.BusinessModel == "" {
		d.BusinessModel = BusinessModelUnknown
	}
	d.PricingTiers = nonNil(d.PricingTiers)
	d.KeyFeatures = nonNil(d.KeyFeatures)
	d.EnterpriseCustomers = nonNil(d.EnterpriseCustomers)
	d.TechnicalCapabilities.Integrations = nonNil(d.TechnicalCapabilities.Integrations)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
