package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/token"
)

// TestRoundTripPrintReparse exercises spec §8's round-trip invariant:
// parsing, pretty-printing, and reparsing a program yields an AST
// isomorphic to the first parse. Position fields are expected to differ
// (the printed text isn't byte-identical to the source) so they're
// excluded from the comparison.
func TestRoundTripPrintReparse(t *testing.T) {
	srcs := []string{
		"echo hello world",
		"ls -l | grep foo | wc -l",
		"make build && make test || echo failed",
		"FOO=bar BAZ=qux env",
		`if false; then echo a; elif true; then echo b; else echo c; fi`,
		"for x in a b c; do echo $x; done",
		"for x; do echo $x; done",
		`case $x in foo) echo a;; bar|baz) echo b;; *) echo c;; esac`,
		"cmd < in.txt > out.txt 2>> err.log",
		"greet() { echo hi; }",
		"while true; do echo x; break; done",
		"until false; do echo x; done",
		"(echo sub)",
		"! false",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			first, err := Parse(src)
			if err != nil {
				t.Fatalf("Parse(%q): %v", src, err)
			}
			printed := ast.Print(first)
			second, err := Parse(printed)
			if err != nil {
				t.Fatalf("Parse(printed %q): %v", printed, err)
			}
			if diff := cmp.Diff(first, second, cmpopts.IgnoreTypes(token.Position{})); diff != "" {
				t.Errorf("round-trip mismatch for %q (printed %q):\n%s", src, printed, diff)
			}
		})
	}
}
