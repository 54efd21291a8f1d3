package llm

import (
	"errors"
	"strings"
)

// ErrNoJSONObject means the response contained no recoverable JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractFirstJSONObject recovers the first top-level {...} substring from a
// noisy model response (markdown fences, prose around the payload) by brace
// matching. String literals and escapes are respected so braces inside values
// don't break the count.
func ExtractFirstJSONObject(s string) ([]byte, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, ErrNoJSONObject
	}

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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoJSONObject
}
