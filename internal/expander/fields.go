package expander

import (
	"errors"
	"regexp"
	"strings"
)

// splitIFS implements spec §4.4 field splitting: IFS whitespace characters
// (space, tab, newline, when present in ifs) collapse runs and are trimmed
// at the edges; any other IFS character is itself a one-character field
// delimiter, adjacent IFS whitespace around it is absorbed into the same
// delimiter. An empty ifs disables splitting entirely (the whole string is
// one field, or no fields if the string is empty).
func splitIFS(s, ifs string) []string {
	if ifs == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	isWS := func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }
	isIFS := func(r rune) bool { return strings.ContainsRune(ifs, r) }

	runes := []rune(s)
	n := len(runes)
	i := 0
	for i < n && isIFS(runes[i]) && isWS(runes[i]) {
		i++
	}

	var fields []string
	var cur strings.Builder
	haveField := false
	for i < n {
		r := runes[i]
		if isIFS(r) {
			fields = append(fields, cur.String())
			cur.Reset()
			haveField = false
			i++
			for i < n && isIFS(runes[i]) && isWS(runes[i]) {
				i++
			}
			if isWS(r) && i < n && isIFS(runes[i]) && !isWS(runes[i]) {
				i++
				for i < n && isIFS(runes[i]) && isWS(runes[i]) {
					i++
				}
			}
			continue
		}
		cur.WriteRune(r)
		haveField = true
		i++
	}
	if haveField || cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// scanParens finds the ')' matching s[start]=='(' , skipping over the
// contents of single-quoted runs (where a literal paren doesn't count) and
// backslash-escaped characters. Double quotes don't suppress paren
// counting: command substitution is recognized inside them.
func scanParens(s string, start int) (int, error) {
	depth := 0
	inSingle := false
	i := start
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i += 2
			continue
		case c == '\'':
			inSingle = !inSingle
		case inSingle:
			// literal content, not a paren
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
		i++
	}
	return 0, errors.New("unterminated parenthesis")
}

// fullyParenWrapped reports whether body (the text between a $( and its
// matching close) is itself exactly one more layer of parens, i.e. the
// original form was "$((...))" — arithmetic expansion rather than command
// substitution. Returns the doubly-unwrapped inner expression.
func fullyParenWrapped(body string) (string, bool) {
	if len(body) < 2 || body[0] != '(' || body[len(body)-1] != ')' {
		return "", false
	}
	closeIdx, err := scanParens(body, 0)
	if err != nil || closeIdx != len(body)-1 {
		return "", false
	}
	return body[1 : len(body)-1], true
}

// regexpReplace implements ${var/pattern/repl}: repl is inserted literally
// (no backreference syntax), replacing the first match or, when all is
// true, every non-overlapping match.
func regexpReplace(s, pattern, repl string, all bool) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return s
	}
	if all {
		return re.ReplaceAllLiteralString(s, repl)
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
