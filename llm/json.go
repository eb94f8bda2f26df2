package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown code fences and surrounding prose from a
// completion, returning the first top-level JSON value ({...} or [...]).
// Returns "" when no JSON value is present.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Strip a ```json ... ``` fence if the whole answer is fenced.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, openb, closeb := -1, byte(0), byte(0)
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		start, openb, closeb = arrStart, '[', ']'
	case objStart >= 0:
		start, openb, closeb = objStart, '{', '}'
	default:
		return ""
	}

	// Scan for the matching close bracket, respecting strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openb:
			depth++
		case closeb:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DecodeObject extracts and unmarshals a JSON object from a completion.
func DecodeObject(raw string, v any) error {
	j := ExtractJSON(raw)
	if j == "" {
		return fmt.Errorf("llm: no JSON value in completion")
	}
	if err := json.Unmarshal([]byte(j), v); err != nil {
		return fmt.Errorf("llm: decode completion JSON: %w", err)
	}
	return nil
}
