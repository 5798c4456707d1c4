package enrichment

import (
	"strings"

	"github.com/sells-group/market-intel/internal/dedupe"
)

// SkipDomains carry no useful company content.
var SkipDomains = []string{
	"youtube.com",
	"youtu.be",
	"reddit.com",
	"quora.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
	"linkedin.com",
}

// ShouldSkip reports whether url is on a blocklisted domain or cannot be
// parsed. Matching is by substring on the hostname.
func ShouldSkip(url string) bool {
	host, ok := dedupe.Hostname(url)
	if !ok {
		return true
	}
	for _, d := range SkipDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}
