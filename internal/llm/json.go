package llm

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractJSONObject returns the text between the first '{' and the last '}'.
func ExtractJSONObject(text string) (string, bool) {
	return between(stripFences(text), '{', '}')
}

// ExtractJSONArray returns the text between the first '[' and the last ']'.
func ExtractJSONArray(text string) (string, bool) {
	return between(stripFences(text), '[', ']')
}

// DecodeObject locates a JSON object in text and unmarshals it into v.
func DecodeObject(text string, v any) error {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return eris.New("llm: no json object in response")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrap(err, "llm: decode json object")
	}
	return nil
}

// DecodeArray locates a JSON array in text and unmarshals it into v.
func DecodeArray(text string, v any) error {
	raw, ok := ExtractJSONArray(text)
	if !ok {
		return eris.New("llm: no json array in response")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrap(err, "llm: decode json array")
	}
	return nil
}

func between(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// stripFences removes markdown code fences the model sometimes adds.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// Truncate cuts s to at most n bytes on a rune boundary and appends marker
// when anything was cut.
func Truncate(s string, n int, marker string) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
