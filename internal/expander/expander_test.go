package expander

import (
	"testing"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/lexer"
	"github.com/aledsdavies/posh/internal/token"
)

// fakeEnv is a minimal in-memory Env for expander tests, grounded on the
// executor's ScopeStack but trimmed to exactly what Env requires.
type fakeEnv struct {
	vars       map[string]string
	positional []string
	ifs        string
	home       string
	generation int64
}

func newFakeEnv(vars map[string]string, positional ...string) *fakeEnv {
	return &fakeEnv{vars: vars, positional: positional, ifs: " \t\n", home: "/home/u"}
}

func (f *fakeEnv) Get(name string) (string, bool) { v, ok := f.vars[name]; return v, ok }
func (f *fakeEnv) Set(name, value string)         { f.vars[name] = value; f.generation++ }
func (f *fakeEnv) Unset(name string)              { delete(f.vars, name); f.generation++ }
func (f *fakeEnv) IsSet(name string) bool         { _, ok := f.vars[name]; return ok }
func (f *fakeEnv) Positional(n int) (string, bool) {
	if n < 1 || n > len(f.positional) {
		return "", false
	}
	return f.positional[n-1], true
}
func (f *fakeEnv) PositionalCount() int { return len(f.positional) }
func (f *fakeEnv) PositionalAll(joinFirstChar bool) []string {
	return append([]string(nil), f.positional...)
}
func (f *fakeEnv) Generation() int64 { return f.generation }
func (f *fakeEnv) IFS() string       { return f.ifs }
func (f *fakeEnv) HomeDir(user string) (string, bool) {
	if user == "" {
		return f.home, f.home != ""
	}
	return "", false
}
func (f *fakeEnv) Special(name string) (string, bool) {
	switch name {
	case "?":
		return "0", true
	case "$":
		return "123", true
	}
	return "", false
}

type fakeRunner struct {
	output string
	status int
}

func (r fakeRunner) Capture(list *ast.List) (string, int, error) {
	return r.output, r.status, nil
}

func wordOf(t *testing.T, text string) ast.Word {
	t.Helper()
	toks, err := lexer.ToSlice(text, lexer.Strict)
	if err != nil {
		t.Fatalf("lex(%q): %v", text, err)
	}
	if len(toks) == 0 || toks[0].Kind != token.WORD {
		t.Fatalf("lex(%q) did not produce a single WORD: %v", text, toks)
	}
	return ast.Word{Tok: toks[0]}
}

func TestExpandWordFieldSplitting(t *testing.T) {
	env := newFakeEnv(map[string]string{"FOO": "a  b   c"})
	e := New(env, fakeRunner{}, "/tmp")

	fields, err := e.ExpandWord(wordOf(t, "$FOO"))
	if err != nil {
		t.Fatalf("ExpandWord error: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(fields) != len(want) {
		t.Fatalf("ExpandWord($FOO) = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestExpandWordQuotedNoSplit(t *testing.T) {
	env := newFakeEnv(map[string]string{"FOO": "a  b   c"})
	e := New(env, fakeRunner{}, "/tmp")

	fields, err := e.ExpandWord(wordOf(t, `"$FOO"`))
	if err != nil {
		t.Fatalf("ExpandWord error: %v", err)
	}
	if len(fields) != 1 || fields[0] != "a  b   c" {
		t.Errorf(`ExpandWord("$FOO") = %v, want one field "a  b   c"`, fields)
	}
}

func TestExpandWordDefaultValue(t *testing.T) {
	env := newFakeEnv(map[string]string{})
	e := New(env, fakeRunner{}, "/tmp")

	got, err := e.ExpandWordNoSplit(wordOf(t, "${UNSET:-fallback}"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if got != "fallback" {
		t.Errorf("${UNSET:-fallback} = %q, want fallback", got)
	}
}

func TestExpandWordPositional(t *testing.T) {
	env := newFakeEnv(map[string]string{}, "one", "two", "three")
	e := New(env, fakeRunner{}, "/tmp")

	fields, err := e.ExpandWord(wordOf(t, `"$@"`))
	if err != nil {
		t.Fatalf("ExpandWord error: %v", err)
	}
	if len(fields) != 3 || fields[0] != "one" || fields[2] != "three" {
		t.Errorf(`"$@" = %v, want [one two three]`, fields)
	}
}

func TestExpandWordCommandSubstitution(t *testing.T) {
	env := newFakeEnv(map[string]string{})
	e := New(env, fakeRunner{output: "result\n"}, "/tmp")

	got, err := e.ExpandWordNoSplit(wordOf(t, "$(echo result)"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if got != "result" {
		t.Errorf("$(echo result) = %q, want result (trailing newline trimmed)", got)
	}
}

func TestExpandWordTildeAndGlob(t *testing.T) {
	env := newFakeEnv(map[string]string{})
	e := New(env, fakeRunner{}, "/tmp")

	got, err := e.ExpandWordNoSplit(wordOf(t, "~"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if got != "/home/u" {
		t.Errorf("~ = %q, want /home/u", got)
	}

	fields, err := e.ExpandWord(wordOf(t, `'*.go'`))
	if err != nil {
		t.Fatalf("ExpandWord error: %v", err)
	}
	if len(fields) != 1 || fields[0] != "*.go" {
		t.Errorf("quoted glob metachar should stay literal, got %v", fields)
	}
}

func TestEvalArith(t *testing.T) {
	env := newFakeEnv(map[string]string{"X": "4"})
	cases := []struct {
		expr string
		want int64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"X * 2", 8},
		{"10 % 3", 1},
		{"1 ? 2 : 3", 2},
		{"0 ? 2 : 3", 3},
		{"2**3", 8},
		{"2**3**2", 512}, // right-associative: 2**(3**2), not (2**3)**2
		{"-2**2", -4},    // ** binds tighter than unary minus
	}
	for _, c := range cases {
		got, err := EvalArith(env, c.expr, token.Position{})
		if err != nil {
			t.Fatalf("EvalArith(%q) error: %v", c.expr, err)
		}
		if got != c.want {
			t.Errorf("EvalArith(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestEvalArithPowNegativeExponentErrors(t *testing.T) {
	env := newFakeEnv(map[string]string{})
	if _, err := EvalArith(env, "2**-1", token.Position{}); err == nil {
		t.Error("EvalArith(2**-1) should error (negative exponent)")
	}
}

func TestExpandWordNoUnsetErrorsOnUnsetVariable(t *testing.T) {
	env := newFakeEnv(map[string]string{})
	e := New(env, fakeRunner{}, "/tmp")
	e.SetNoUnset(true)

	if _, err := e.ExpandWord(wordOf(t, "$UNSET")); err == nil {
		t.Error("ExpandWord($UNSET) under nounset should error")
	}

	// Default-value forms handle "unset" themselves and must still work.
	got, err := e.ExpandWordNoSplit(wordOf(t, "${UNSET:-fallback}"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit(${UNSET:-fallback}) under nounset: %v", err)
	}
	if got != "fallback" {
		t.Errorf("${UNSET:-fallback} under nounset = %q, want fallback", got)
	}

	// $@/$*/$# are always considered set, even with no positional args.
	if _, err := e.ExpandWord(wordOf(t, `"$@"`)); err != nil {
		t.Errorf(`"$@" under nounset with no positional args should not error: %v`, err)
	}
}

func TestReplacePatternAnchoredForms(t *testing.T) {
	env := newFakeEnv(map[string]string{"P": "foobarfoo"})
	e := New(env, fakeRunner{}, "/tmp")

	start, err := e.ExpandWordNoSplit(wordOf(t, "${P/#foo/X}"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if start != "Xbarfoo" {
		t.Errorf("${P/#foo/X} = %q, want Xbarfoo (anchored at start)", start)
	}

	end, err := e.ExpandWordNoSplit(wordOf(t, "${P/%foo/X}"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if end != "foobarX" {
		t.Errorf("${P/%%foo/X} = %q, want foobarX (anchored at end)", end)
	}

	// A start-anchor that doesn't match at the start must not replace
	// elsewhere in the string.
	noMatch, err := e.ExpandWordNoSplit(wordOf(t, "${P/#bar/X}"))
	if err != nil {
		t.Fatalf("ExpandWordNoSplit error: %v", err)
	}
	if noMatch != "foobarfoo" {
		t.Errorf("${P/#bar/X} = %q, want unchanged foobarfoo", noMatch)
	}
}

func TestExpandBraces(t *testing.T) {
	got := ExpandBraces("a{1..3}b")
	want := []string{"a1b", "a2b", "a3b"}
	if len(got) != len(want) {
		t.Fatalf("ExpandBraces = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandCasePattern(t *testing.T) {
	env := newFakeEnv(map[string]string{"EXT": "go"})
	e := New(env, fakeRunner{}, "/tmp")

	pattern, err := e.ExpandCasePattern(wordOf(t, "*.$EXT"))
	if err != nil {
		t.Fatalf("ExpandCasePattern error: %v", err)
	}
	if pattern != "*.go" {
		t.Errorf("ExpandCasePattern(*.$EXT) = %q, want *.go", pattern)
	}

	literalPattern, err := e.ExpandCasePattern(wordOf(t, `"*.go"`))
	if err != nil {
		t.Fatalf("ExpandCasePattern error: %v", err)
	}
	if literalPattern == "*.go" {
		t.Errorf("quoted pattern should be glob-escaped, got raw %q", literalPattern)
	}
}
