package ast

import "github.com/aledsdavies/posh/internal/token"

// The constructors below mirror the teacher's pkgs/ast/builder.go helpers
// (NewProgram, Cmd, Shell, Id, Str, ...): small factory functions used
// mainly by tests to build ASTs by hand without repeating struct literals.

// NewWord builds a Word from a raw unquoted string, for use in tests and
// synthetic nodes.
func NewWord(value string) Word {
	return Word{Tok: token.Token{Kind: token.WORD, Value: value, Lexeme: value}}
}

// NewCommand builds a simple Command from a name and argument strings.
func NewCommand(name string, args ...string) *Command {
	c := &Command{Name: NewWord(name)}
	for _, a := range args {
		c.Args = append(c.Args, NewWord(a))
	}
	return c
}

// NewPipeline wraps commands into a Pipeline with the given Negate flag.
func NewPipeline(negate bool, cmds ...*Command) *Pipeline {
	p := &Pipeline{Negate: negate}
	for _, c := range cmds {
		p.Commands = append(p.Commands, c)
	}
	return p
}

// NewAndOr builds a single-pipeline AndOr, the common case in tests.
func NewAndOr(p *Pipeline) *AndOr {
	return &AndOr{Items: []AndOrItem{{Pipeline: p, Connector: End}}}
}

// Chain appends a pipeline to an AndOr under the given connector.
func (a *AndOr) Chain(conn Connector, p *Pipeline) *AndOr {
	if len(a.Items) > 0 {
		a.Items[len(a.Items)-1].Connector = conn
	}
	a.Items = append(a.Items, AndOrItem{Pipeline: p, Connector: End})
	return a
}

// NewList builds a List from AndOr nodes, all foreground.
func NewList(items ...*AndOr) *List {
	l := &List{}
	for _, it := range items {
		l.Statements = append(l.Statements, Statement{AndOr: it})
	}
	return l
}

// Simple wraps a single Command in the minimal AndOr/Pipeline/List chain
// so one-command programs don't need manual wrapping in tests.
func Simple(c *Command) *List {
	return NewList(&AndOr{Items: []AndOrItem{{Pipeline: NewPipeline(false, c), Connector: End}}})
}
