package dataset

import "strings"

// ParseList turns a raw list-field cell into its ordered tokens. This
// is the one shared implementation: the catalog, the filter engine and
// the exporters all read list fields through it, so every call site
// agrees on what a cell means.
//
// Rules:
//   - empty / whitespace-only cell: no tokens
//   - a bracketed literal such as "['cane', 'glasses']": the quoted
//     (or bare numeric) elements, in order
//   - anything else, including a malformed literal: the whole text as
//     a single token
//
// Parsing is idempotent: feeding a returned token back in yields that
// token again. The one exception is a quoted element whose own text
// spells a well-formed literal, such as the element "['x']"; that
// token re-parses as the literal it spells.
func ParseList(cell string) []string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return []string{s}
	}

	items, ok := parseListLiteral(s[1 : len(s)-1])
	if !ok {
		return []string{s}
	}
	return items
}

// FormatList renders tokens back into the bracketed single-quoted form
// used by the source tables, for table export.
func FormatList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(it, "'", `\'`))
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}

// parseListLiteral scans the comma-separated interior of a bracketed
// literal. Elements may be single-quoted, double-quoted, or bare
// numbers; a bare word makes the literal malformed. Returns ok=false
// on any malformed input so the caller can fall back to
// whole-text-as-one-token.
func parseListLiteral(s string) ([]string, bool) {
	items := []string{}
	i := 0
	skipSpace := func() {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
	}

	for {
		skipSpace()
		if i >= len(s) {
			break
		}

		var item string
		switch c := s[i]; c {
		case '\'', '"':
			quote := c
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == quote {
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, false
			}
			item = b.String()
		default:
			start := i
			for i < len(s) && s[i] != ',' {
				i++
			}
			item = strings.TrimSpace(s[start:i])
			if !isNumber(item) {
				return nil, false
			}
		}

		items = append(items, item)

		skipSpace()
		if i >= len(s) {
			break
		}
		if s[i] != ',' {
			return nil, false
		}
		i++
	}
	return items, true
}

// isNumber reports whether a bare element spells a numeric literal
// (optional sign, digits, at most one decimal point).
func isNumber(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	digits, dot := false, false
	for ; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits = true
		case s[i] == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits
}
