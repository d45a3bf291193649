// Package extract evaluates stored extraction expressions against decoded
// API responses.
//
// Extraction expressions are configuration, not code: rows in the source
// table decide how to pick fields out of heterogeneous response shapes.
// The evaluator therefore accepts only a bounded path grammar over the one
// bound name "result":
//
//	result["data"]["id"]
//	result['documentos'][0]
//	result.data.items[-1]["NOMBRE"]
//
// Nothing else — no calls, no arithmetic, no ambient names. Any lexing,
// parsing or navigation failure yields nil rather than an error so a bad
// row can never take down its orchestration.
package extract

import (
	"strconv"
	"strings"
	"unicode"
)

const baseName = "result"

// Eval applies expr to result and returns the extracted value, or nil when
// the expression is malformed or does not match the response shape.
func Eval(expr string, result any) any {
	path, ok := parse(expr)
	if !ok {
		return nil
	}
	return navigate(result, path)
}

// step is one selector in a parsed path: either a map key or a list index.
type step struct {
	key   string
	index int
	isKey bool
}

// parse validates the expression against the allow-listed grammar and
// flattens it into selector steps.
func parse(expr string) ([]step, bool) {
	s := strings.TrimSpace(expr)
	if !strings.HasPrefix(s, baseName) {
		return nil, false
	}
	s = s[len(baseName):]
	if s != "" && isIdentChar(rune(s[0])) {
		// e.g. "resultado" — not the bound name
		return nil, false
	}

	var path []step
	for s != "" {
		switch s[0] {
		case '.':
			rest := s[1:]
			n := identLen(rest)
			if n == 0 {
				return nil, false
			}
			path = append(path, step{key: rest[:n], isKey: true})
			s = rest[n:]
		case '[':
			closing := strings.IndexByte(s, ']')
			if closing < 0 {
				return nil, false
			}
			inner := strings.TrimSpace(s[1:closing])
			st, ok := parseLiteral(inner)
			if !ok {
				return nil, false
			}
			path = append(path, st)
			s = s[closing+1:]
		default:
			return nil, false
		}
	}
	return path, true
}

// parseLiteral accepts a quoted string (single or double quotes, no escapes)
// or an optionally negative integer.
func parseLiteral(inner string) (step, bool) {
	if len(inner) >= 2 {
		q := inner[0]
		if (q == '\'' || q == '"') && inner[len(inner)-1] == q {
			body := inner[1 : len(inner)-1]
			if strings.ContainsRune(body, rune(q)) || strings.ContainsRune(body, '\\') {
				return step{}, false
			}
			return step{key: body, isKey: true}, true
		}
	}
	idx, err := strconv.Atoi(inner)
	if err != nil {
		return step{}, false
	}
	return step{index: idx}, true
}

func navigate(v any, path []step) any {
	for _, st := range path {
		if v == nil {
			return nil
		}
		if st.isKey {
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			elem, ok := m[st.key]
			if !ok {
				return nil
			}
			v = elem
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil
		}
		idx := st.index
		if idx < 0 {
			// expressions were written against Python-style indexing
			idx += len(list)
		}
		if idx < 0 || idx >= len(list) {
			return nil
		}
		v = list[idx]
	}
	return v
}

func isIdentChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func identLen(s string) int {
	for i, r := range s {
		if !isIdentChar(r) {
			return i
		}
		if i == 0 && unicode.IsDigit(r) {
			return 0
		}
	}
	return len(s)
}
