package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON decodes a model reply into out. Fenced code blocks and
// surrounding prose are stripped, and malformed JSON gets one repair
// pass before the attempt is abandoned. Unknown fields are ignored.
func ExtractJSON(raw string, out any) error {
	candidate := stripFences(raw)

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

// stripFences removes a ```json fence when present, otherwise trims to
// the outermost brace or bracket pair.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var closer byte = '}'
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end > start {
		return s[start : end+1]
	}
	return s[start:]
}
