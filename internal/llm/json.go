package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidJSON = errors.New("invalid JSON response from llm")

// DecodeJSON strips markdown fences, then falls back to the first balanced
// {...} object in raw.
func DecodeJSON(raw string, out any) error {
	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	obj, ok := FirstObject(cleaned)
	if !ok {
		return ErrInvalidJSON
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	for _, p := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FirstObject returns the first balanced {...} substring, skipping braces
// inside string literals.
func FirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			ch := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
