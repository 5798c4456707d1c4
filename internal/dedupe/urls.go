package dedupe

import (
	"net/url"
	"strings"
)

// Hostname returns the lowercased host of raw with any leading "www."
// removed. Bare domains without a scheme are accepted.
func Hostname(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), true
}

// Homepage reduces raw to scheme://host, keeping any subdomain. Unparsable
// input is returned unchanged.
func Homepage(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

// Origin is Homepage without the unparsable fallback.
func Origin(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return nil, false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
