package expander

import (
	"strings"
	"unicode/utf8"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/lexer"
	"github.com/aledsdavies/posh/internal/parser"
	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/shellglob"
	"github.com/aledsdavies/posh/internal/token"
)

// Expander holds the state needed to expand Word nodes into argv fields:
// the variable environment, the command runner for substitutions, and the
// working directory pathname expansion resolves against.
type Expander struct {
	env    Env
	runner CommandRunner
	cwd    string

	noUnset bool

	arithCache map[string]arithCacheEntry
}

// SetNoUnset enables spec §6.1's nounset mode (-u): referencing an unset
// ordinary variable or positional parameter becomes an expansion error
// instead of expanding to "". Defaults to false (off) for a freshly built
// Expander.
func (e *Expander) SetNoUnset(v bool) { e.noUnset = v }

type arithCacheEntry struct {
	gen int64
	val int64
}

// New builds an Expander over env (variable storage) and runner (command
// substitution executor), resolving relative glob patterns against cwd.
func New(env Env, runner CommandRunner, cwd string) *Expander {
	return &Expander{env: env, runner: runner, cwd: cwd, arithCache: make(map[string]arithCacheEntry)}
}

// fieldPart is one piece of a word's expansion: either a literal/quoted
// run (never split or globbed) or an expansion result (split and globbed
// only when it came from an unquoted context), or a pre-split whole field
// from an unquoted "$@"-style expansion.
type fieldPart struct {
	text       string
	splittable bool // eligible for IFS splitting and pathname expansion
	wholeField bool // hard field boundary (unquoted $@); text is never merged with neighbors
}

// ExpandWord expands one parsed Word into zero or more final argv fields,
// applying brace expansion, tilde expansion, parameter/command/arithmetic
// expansion, field splitting, and pathname expansion in that order (spec
// §4.4).
func (e *Expander) ExpandWord(w ast.Word) ([]string, error) {
	alts := ExpandBraces(w.Tok.Lexeme)
	var out []string
	for _, alt := range alts {
		fields, err := e.expandOneWord(alt, w.Tok.Pos)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// ExpandWordNoSplit expands a Word for a context that takes exactly one
// logical value and never field-splits or globs it: assignment
// right-hand-sides, case subjects, and redirection targets.
func (e *Expander) ExpandWordNoSplit(w ast.Word) (string, error) {
	tok := w.Tok
	if tilde, rest, ok := tryTilde(segmentsOf(tok)); ok {
		home, hasHome := e.resolveTilde(tilde)
		if hasHome {
			tok = substituteLexeme(tok, home, rest)
		}
	}
	var b strings.Builder
	for _, seg := range segmentsOf(tok) {
		if seg.Quoting == token.SingleQuoted {
			b.WriteString(seg.Text)
			continue
		}
		parts, err := e.scanExpand(seg.Text, true, tok.Pos)
		if err != nil {
			return "", err
		}
		for i, p := range parts {
			if p.wholeField && i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(p.text)
		}
	}
	return b.String(), nil
}

func (e *Expander) expandOneWord(rawLexeme string, pos token.Position) ([]string, error) {
	toks, err := lexer.ToSlice(rawLexeme, lexer.Strict)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 || toks[0].Kind != token.WORD {
		return []string{rawLexeme}, nil
	}
	tok := toks[0]

	if tilde, rest, ok := tryTilde(segmentsOf(tok)); ok {
		if home, hasHome := e.resolveTilde(tilde); hasHome {
			tok = substituteLexeme(tok, home, rest)
		}
	}

	var parts []fieldPart
	for _, seg := range segmentsOf(tok) {
		if seg.Quoting == token.SingleQuoted {
			parts = append(parts, fieldPart{text: seg.Text, splittable: false})
			continue
		}
		quoted := seg.Quoting == token.DoubleQuoted
		segParts, err := e.scanExpand(seg.Text, quoted, tok.Pos)
		if err != nil {
			return nil, err
		}
		parts = append(parts, segParts...)
	}

	return e.splitAndGlob(parts), nil
}

// segmentsOf returns tok's quoted runs, synthesizing a single-segment view
// for the common (non-Mixed) case where the lexer didn't populate Segments.
func segmentsOf(tok token.Token) []token.Segment {
	if tok.Quoting == token.Mixed {
		return tok.Segments
	}
	return []token.Segment{{Text: tok.Value, Quoting: tok.Quoting}}
}

// tryTilde recognizes a leading unquoted "~" or "~name" up to the first
// '/' or end of word, per spec §4.4 tilde expansion.
func tryTilde(segs []token.Segment) (tildeSpec string, restOfFirstSeg string, ok bool) {
	if len(segs) == 0 || segs[0].Quoting != token.Unquoted {
		return "", "", false
	}
	text := segs[0].Text
	if !strings.HasPrefix(text, "~") {
		return "", "", false
	}
	end := strings.IndexByte(text, '/')
	if end == -1 {
		return text[1:], "", true
	}
	return text[1:end], text[end:], true
}

func (e *Expander) resolveTilde(user string) (string, bool) {
	return e.env.HomeDir(user)
}

// substituteLexeme rebuilds tok's Value (and, for Mixed words, its first
// segment) after tilde substitution, leaving the rest of the word intact.
func substituteLexeme(tok token.Token, home, rest string) token.Token {
	if tok.Quoting == token.Mixed && len(tok.Segments) > 0 {
		segs := append([]token.Segment(nil), tok.Segments...)
		segs[0] = token.Segment{Text: home + rest, Quoting: token.Unquoted}
		tok.Segments = segs
		return tok
	}
	tok.Value = home + rest
	return tok
}

// scanExpand walks text (one quoting-homogeneous run) looking for
// expansion triggers ('$', '`') and the escape marker the lexer leaves
// before an escaped literal '$'/'`'. quoted marks whether this run is
// inside double quotes (suppresses splitting/globbing on its results).
func (e *Expander) scanExpand(text string, quoted bool, pos token.Position) ([]fieldPart, error) {
	var parts []fieldPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, fieldPart{text: lit.String(), splittable: !quoted})
			lit.Reset()
		}
	}

	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == token.EscLiteral:
			i++
			if i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				lit.WriteRune(r)
				i += size
			}
		case c == '$':
			flush()
			res, consumed, err := e.expandDollar(text[i:], quoted, pos)
			if err != nil {
				return nil, err
			}
			i += consumed
			if res.fields != nil {
				for _, f := range res.fields {
					parts = append(parts, fieldPart{text: f, wholeField: true})
				}
			} else {
				parts = append(parts, fieldPart{text: res.text, splittable: !quoted})
			}
		case c == '`':
			flush()
			out, consumed, err := e.expandBacktickSub(text[i:], pos)
			if err != nil {
				return nil, err
			}
			i += consumed
			parts = append(parts, fieldPart{text: out, splittable: !quoted})
		default:
			r, size := utf8.DecodeRuneInString(text[i:])
			lit.WriteRune(r)
			i += size
		}
	}
	flush()
	return parts, nil
}

// expandDollar expands the single construct beginning at s[0]=='$',
// returning its result and how many bytes of s it consumed.
func (e *Expander) expandDollar(s string, quoted bool, pos token.Position) (paramResult, int, error) {
	if len(s) < 2 {
		return paramResult{text: "$"}, 1, nil
	}
	switch {
	case s[1] == '(':
		closeIdx, err := scanParens(s, 1)
		if err != nil {
			return paramResult{}, 0, shellerr.NewExpansion(pos, "unterminated $( substitution")
		}
		body := s[2:closeIdx]
		consumed := closeIdx + 1
		if inner, ok := fullyParenWrapped(body); ok {
			v, err := e.evalArithCached(inner, pos)
			if err != nil {
				return paramResult{}, 0, err
			}
			return paramResult{text: strconvItoa64(v)}, consumed, nil
		}
		out, err := e.runCommandSub(body, pos)
		if err != nil {
			return paramResult{}, 0, err
		}
		return paramResult{text: out}, consumed, nil
	case s[1] == '{':
		depth := 0
		j := 1
		for j < len(s) {
			if s[j] == '{' {
				depth++
			} else if s[j] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
			j++
		}
		if depth != 0 {
			return paramResult{}, 0, shellerr.NewExpansion(pos, "unterminated ${ substitution")
		}
		body := s[2:j]
		r, err := e.expandBraceParam(body, pos, quoted)
		return r, j + 1, err
	default:
		r, size := utf8.DecodeRuneInString(s[1:])
		switch {
		case r == '@' || r == '*' || r == '#' || r == '?' || r == '$' || r == '!' || r == '-' || (r >= '0' && r <= '9'):
			name := string(r)
			res, err := e.expandBareParam(name, quoted, pos)
			return res, 1 + size, err
		case isIdentStart(r):
			j := 1
			for j < len(s) {
				rr, sz := utf8.DecodeRuneInString(s[j:])
				if !isIdentPart(rr) {
					break
				}
				j += sz
			}
			res, err := e.expandBareParam(s[1:j], quoted, pos)
			return res, j, err
		default:
			return paramResult{text: "$"}, 1, nil
		}
	}
}

// expandBacktickSub expands a `...` command substitution starting at
// s[0]=='`', honoring the legacy backslash-escaping rule (\$, \`, \\ are
// special inside backticks; everything else is literal).
func (e *Expander) expandBacktickSub(s string, pos token.Position) (string, int, error) {
	var body strings.Builder
	i := 1
	for i < len(s) {
		if s[i] == '`' {
			out, err := e.runCommandSub(body.String(), pos)
			return out, i + 1, err
		}
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '$' || s[i+1] == '`' || s[i+1] == '\\') {
			body.WriteByte(s[i+1])
			i += 2
			continue
		}
		body.WriteByte(s[i])
		i++
	}
	return "", 0, shellerr.NewExpansion(pos, "unterminated ` substitution")
}

// runCommandSub lexes and parses body as a program and captures its
// output, trimming trailing newlines per POSIX command substitution rules.
func (e *Expander) runCommandSub(body string, pos token.Position) (string, error) {
	if e.runner == nil {
		return "", shellerr.NewExpansion(pos, "command substitution is not available in this context")
	}
	list, err := parser.Parse(body)
	if err != nil {
		return "", err
	}
	out, _, err := e.runner.Capture(list)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func (e *Expander) evalArithCached(expr string, pos token.Position) (int64, error) {
	gen := e.env.Generation()
	if c, ok := e.arithCache[expr]; ok && c.gen == gen {
		return c.val, nil
	}
	v, err := EvalArith(e.env, expr, pos)
	if err != nil {
		return 0, err
	}
	e.arithCache[expr] = arithCacheEntry{gen: e.env.Generation(), val: v}
	return v, nil
}

// expandWordText re-runs expansion over an arbitrary raw text snippet
// extracted from inside a ${...} body (a default-value argument or a
// replacement string) — these are not full Word tokens, so they're scanned
// directly as unquoted text rather than re-lexed.
func (e *Expander) expandWordText(raw string, pos token.Position) (paramResult, error) {
	parts, err := e.scanExpand(raw, false, pos)
	if err != nil {
		return paramResult{}, err
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.text)
	}
	return paramResult{text: b.String()}, nil
}

// expandPatternText expands a glob pattern argument (the body of a #, ##,
// %, %%, or / modifier): parameter/command/arithmetic expansion still
// applies, but the result is used as a glob pattern, not plain text.
func (e *Expander) expandPatternText(raw string, pos token.Position) (string, error) {
	r, err := e.expandWordText(raw, pos)
	if err != nil {
		return "", err
	}
	return r.text, nil
}

// ExpandCasePattern expands w for use as a case pattern (spec §4.5's case
// dispatch): parameter/command/arithmetic expansion still applies, but
// unlike ExpandWordNoSplit the result stays glob-ready — unquoted text
// keeps its metacharacters active, quoted or escaped text is protected so
// it can only match itself literally.
func (e *Expander) ExpandCasePattern(w ast.Word) (string, error) {
	tok := w.Tok
	if tilde, rest, ok := tryTilde(segmentsOf(tok)); ok {
		if home, hasHome := e.resolveTilde(tilde); hasHome {
			tok = substituteLexeme(tok, home, rest)
		}
	}
	var b strings.Builder
	for _, seg := range segmentsOf(tok) {
		if seg.Quoting == token.SingleQuoted {
			b.WriteString(escapeGlobMeta(seg.Text))
			continue
		}
		quoted := seg.Quoting == token.DoubleQuoted
		parts, err := e.scanExpand(seg.Text, quoted, tok.Pos)
		if err != nil {
			return "", err
		}
		for _, p := range parts {
			if p.splittable {
				b.WriteString(p.text)
			} else {
				b.WriteString(escapeGlobMeta(p.text))
			}
		}
	}
	return b.String(), nil
}

// splitAndGlob turns a word's expansion parts into final argv fields:
// field splitting on IFS for splittable runs, then pathname expansion on
// each resulting field, with quoted/literal characters protected from
// glob-metacharacter interpretation via a backslash escape passed through
// to shellglob.
func (e *Expander) splitAndGlob(parts []fieldPart) []string {
	var rawFields []string
	var cur strings.Builder
	flushCur := func() {
		rawFields = append(rawFields, cur.String())
		cur.Reset()
	}
	started := false

	for _, p := range parts {
		if p.wholeField {
			if started || cur.Len() > 0 {
				flushCur()
				started = false
			}
			rawFields = append(rawFields, escapeGlobMeta(p.text))
			continue
		}
		if !p.splittable {
			cur.WriteString(escapeGlobMeta(p.text))
			started = true
			continue
		}
		fields := splitIFS(p.text, e.env.IFS())
		if len(fields) == 0 {
			continue
		}
		cur.WriteString(fields[0])
		started = true
		for _, f := range fields[1:] {
			flushCur()
			started = false
			cur.WriteString(f)
			started = true
		}
	}
	if started || cur.Len() > 0 || len(rawFields) == 0 && len(parts) == 0 {
		flushCur()
	}

	var out []string
	for _, f := range rawFields {
		if shellglob.HasMeta(f) {
			matches, err := shellglob.Expand(e.cwd, f)
			if err == nil && len(matches) > 0 {
				out = append(out, matches...)
				continue
			}
		}
		out = append(out, unescapeGlobMeta(f))
	}
	return out
}

// escapeGlobMeta backslash-protects glob metacharacters in literal text so
// shellglob.Translate treats them as ordinary characters.
func escapeGlobMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// unescapeGlobMeta removes the protective backslashes escapeGlobMeta adds,
// for fields that end up not being globbed (no unprotected metacharacters,
// or no filesystem match).
func unescapeGlobMeta(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func strconvItoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	var buf [20]byte
	pos := len(buf)
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
