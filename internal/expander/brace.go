package expander

import (
	"strconv"
	"strings"
)

// ExpandBraces implements brace expansion (spec §4.4): {a,b,c} alternation
// and {x..y[..step]} sequences, expanded before any other expansion and
// skipped entirely inside single or double quotes. It operates on the raw
// source text of a word (quote characters still present) since brace
// expansion is a lexical, pre-quote-removal step in POSIX-family shells.
func ExpandBraces(s string) []string {
	start := -1
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i++ // skip the escaped character entirely
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			// inside quotes: braces are literal, keep scanning
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				inner := s[start+1 : i]
				prefix := s[:start]
				suffix := s[i+1:]
				if alts, ok := splitBraceAlternatives(inner); ok {
					var out []string
					for _, alt := range alts {
						for _, suf := range ExpandBraces(suffix) {
							out = append(out, prefix+alt+suf)
						}
					}
					return out
				}
				start = -1
			}
		}
	}
	return []string{s}
}

// splitBraceAlternatives interprets the text between a brace pair as
// either a numeric/alpha range or a comma-separated alternative list,
// returning ok=false if it is neither (the braces are then left literal,
// matching bash's behavior for e.g. "{foo}").
func splitBraceAlternatives(inner string) ([]string, bool) {
	if alts, ok := splitRange(inner); ok {
		return alts, true
	}
	parts := splitTopLevel(inner, ',')
	if len(parts) < 2 {
		return nil, false
	}
	return parts, true
}

// splitTopLevel splits s on sep, ignoring seps nested inside a deeper {}
// pair so nested alternations are preserved for the recursive call.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// splitRange recognizes {x..y} or {x..y..step}: both endpoints numeric
// (optionally signed, zero-padded) or both single letters of the same case.
func splitRange(inner string) ([]string, bool) {
	parts := strings.Split(inner, "..")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, false
	}
	if n1, err1 := strconv.Atoi(parts[0]); err1 == nil {
		if n2, err2 := strconv.Atoi(parts[1]); err2 == nil {
			step := 1
			if len(parts) == 3 {
				s, err := strconv.Atoi(parts[2])
				if err != nil || s == 0 {
					return nil, false
				}
				step = s
			}
			width := 0
			if hasLeadingZero(parts[0]) || hasLeadingZero(parts[1]) {
				width = maxInt(len(trimSign(parts[0])), len(trimSign(parts[1])))
			}
			return intRange(n1, n2, step, width), true
		}
	}
	if len(parts[0]) == 1 && len(parts[1]) == 1 && isAlphaRune(rune(parts[0][0])) && isAlphaRune(rune(parts[1][0])) {
		step := 1
		if len(parts) == 3 {
			s, err := strconv.Atoi(parts[2])
			if err != nil || s == 0 {
				return nil, false
			}
			step = s
		}
		return charRange(rune(parts[0][0]), rune(parts[1][0]), step), true
	}
	return nil, false
}

func hasLeadingZero(s string) bool {
	s = trimSign(s)
	return len(s) > 1 && s[0] == '0'
}

func trimSign(s string) string {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		return s[1:]
	}
	return s
}

func isAlphaRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func intRange(lo, hi, step, width int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if lo <= hi {
		for v := lo; v <= hi; v += step {
			out = append(out, formatWidth(v, width))
		}
	} else {
		for v := lo; v >= hi; v -= step {
			out = append(out, formatWidth(v, width))
		}
	}
	return out
}

func formatWidth(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	for len(digits) < width {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func charRange(lo, hi rune, step int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if lo <= hi {
		for v := lo; v <= hi; v += rune(step) {
			out = append(out, string(v))
		}
	} else {
		for v := lo; v >= hi; v -= rune(step) {
			out = append(out, string(v))
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
