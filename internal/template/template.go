// Package template implements the placeholder-substitution and mapping-parsing
// helpers used to turn stored source configuration into concrete requests.
//
// Configuration strings carry {name} slots (e.g. "{consecutivo}") resolved
// from a flat placeholder map at orchestration time. Substitution is
// best-effort: a string whose slots cannot all be resolved is passed through
// unchanged rather than failing the request build.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Substitute walks an arbitrarily nested structure of maps, slices, strings
// and scalars, replacing {name} slots in every string with values from
// placeholders. Structure and key order are preserved; non-string scalars
// pass through untouched.
func Substitute(v any, placeholders map[string]any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = Substitute(elem, placeholders)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = Substitute(elem, placeholders)
		}
		return out
	case string:
		return substituteString(t, placeholders)
	default:
		return v
	}
}

// substituteString resolves every slot or none: if any referenced name is
// absent from placeholders, the original string is returned as-is.
func substituteString(s string, placeholders map[string]any) string {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	for _, m := range matches {
		name := s[m[2]:m[3]]
		if _, ok := placeholders[name]; !ok {
			return s
		}
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		b.WriteString(formatValue(placeholders[s[m[2]:m[3]]]))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// formatValue renders a placeholder value for interpolation. JSON-decoded
// numbers arrive as float64; integral ones must not grow a ".0" suffix when
// spliced into URLs or payloads.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ParseMapping coerces a stored header/payload/params cell into a real map.
// Maps pass through; textual representations are parsed; malformed, empty or
// foreign input yields an empty map. This is a defensive boundary against
// hand-edited configuration rows, so it never returns an error.
func ParseMapping(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return map[string]any{}
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err == nil && m != nil {
			return m
		}
		// Legacy rows store single-quoted mappings. Only attempt the swap
		// when no double quote is present, so embedded quotes can't corrupt.
		if !strings.Contains(s, `"`) && strings.Contains(s, "'") {
			if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &m); err == nil && m != nil {
				return m
			}
		}
		return map[string]any{}
	default:
		return map[string]any{}
	}
}
