package dedupe

import (
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// RootFunc reduces a hostname to its registrable root domain.
type RootFunc func(host string) string

// Root domain strategies accepted by Strategy.
const (
	StrategyKnownTLDs    = "known_tlds"
	StrategyPublicSuffix = "public_suffix"
)

// twoPartTLDs is deliberately small. Hosts under other multi-label
// suffixes collapse to their last two labels.
var twoPartTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"co.nz":  true,
	"co.jp":  true,
	"com.br": true,
}

// KnownTLDRoot keeps the last three labels under a known two-part TLD and
// the last two labels otherwise.
func KnownTLDRoot(host string) string {
	parts := strings.Split(strings.TrimPrefix(strings.ToLower(host), "www."), ".")
	n := len(parts)
	if n >= 3 && twoPartTLDs[parts[n-2]+"."+parts[n-1]] {
		return strings.Join(parts[n-3:], ".")
	}
	if n >= 2 {
		return strings.Join(parts[n-2:], ".")
	}
	return strings.Join(parts, ".")
}

// PublicSuffixRoot resolves the registrable domain from the public suffix
// list, falling back to KnownTLDRoot for hosts the list cannot parse.
func PublicSuffixRoot(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return KnownTLDRoot(host)
	}
	return domain
}

// Strategy returns the RootFunc for a configured strategy name. Unknown
// names use KnownTLDRoot.
func Strategy(name string) RootFunc {
	if name == StrategyPublicSuffix {
		return PublicSuffixRoot
	}
	return KnownTLDRoot
}
