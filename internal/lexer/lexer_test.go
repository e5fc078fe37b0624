package lexer

import (
	"testing"

	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/token"
)

func TestToSliceKinds(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []token.Kind
	}{
		{"simple command", "echo hello", []token.Kind{token.WORD, token.WORD, token.EOF}},
		{"pipeline", "ls | grep foo", []token.Kind{token.WORD, token.OPERATOR, token.WORD, token.WORD, token.EOF}},
		{"and-or", "true && false", []token.Kind{token.WORD, token.OPERATOR, token.WORD, token.EOF}},
		// Reserved words stay WORD tokens; the parser reclassifies them.
		{"if keyword", "if true; then echo y; fi",
			[]token.Kind{token.WORD, token.WORD, token.OPERATOR, token.WORD, token.WORD, token.WORD, token.OPERATOR, token.WORD, token.EOF}},
		{"redirection", "cat < in.txt > out.txt",
			[]token.Kind{token.WORD, token.OPERATOR, token.WORD, token.OPERATOR, token.WORD, token.EOF}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			toks, err := ToSlice(c.input, Strict)
			if err != nil {
				t.Fatalf("ToSlice(%q) error: %v", c.input, err)
			}
			if len(toks) != len(c.want) {
				t.Fatalf("ToSlice(%q) = %d tokens, want %d: %v", c.input, len(toks), len(c.want), toks)
			}
			for i, k := range c.want {
				if toks[i].Kind != k {
					t.Errorf("token %d: got kind %v, want %v (%v)", i, toks[i].Kind, k, toks[i])
				}
			}
		})
	}
}

func TestQuoting(t *testing.T) {
	toks, err := ToSlice(`echo "hello $USER" 'literal $X'`, Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 4 {
		t.Fatalf("got %d tokens, want 4 (three words and EOF): %v", len(toks), toks)
	}
	if toks[1].Quoting != token.DoubleQuoted {
		t.Errorf("arg 1 quoting = %v, want DoubleQuoted", toks[1].Quoting)
	}
	if toks[2].Quoting != token.SingleQuoted {
		t.Errorf("arg 2 quoting = %v, want SingleQuoted", toks[2].Quoting)
	}
	if toks[2].Value != "literal $X" {
		t.Errorf("single-quoted value = %q, want literal $X unexpanded text", toks[2].Value)
	}
}

func TestUnterminatedQuoteIsIncomplete(t *testing.T) {
	_, err := ToSlice(`echo "unterminated`, Resumable)
	if err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}
	if !shellerr.Is(err, shellerr.IncompleteInput) {
		t.Errorf("error = %v, want an IncompleteInput error", err)
	}
}

func TestOperatorDisambiguation(t *testing.T) {
	toks, err := ToSlice("a>>b", Strict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ops []string
	for _, tok := range toks {
		if tok.Kind == token.OPERATOR {
			ops = append(ops, tok.Op)
		}
	}
	if len(ops) != 1 || ops[0] != ">>" {
		t.Errorf("got operators %v, want [>>] (longest match wins over > >)", ops)
	}
}
