package ast

import (
	"testing"

	"github.com/aledsdavies/posh/internal/token"
)

func TestNewWord(t *testing.T) {
	w := NewWord("hello")
	if w.Tok.Value != "hello" || w.Tok.Kind != token.WORD {
		t.Errorf("NewWord(hello) = %+v", w)
	}
}

func TestNewCommand(t *testing.T) {
	c := NewCommand("echo", "a", "b")
	if c.Name.Tok.Value != "echo" {
		t.Errorf("Name = %q, want echo", c.Name.Tok.Value)
	}
	if len(c.Args) != 2 || c.Args[0].Tok.Value != "a" || c.Args[1].Tok.Value != "b" {
		t.Errorf("Args = %v, want [a b]", c.Args)
	}
}

func TestNewPipeline(t *testing.T) {
	c1 := NewCommand("ls")
	c2 := NewCommand("grep", "foo")
	p := NewPipeline(true, c1, c2)
	if !p.Negate {
		t.Error("Negate = false, want true")
	}
	if len(p.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(p.Commands))
	}
}

func TestNewAndOrAndChain(t *testing.T) {
	p1 := NewPipeline(false, NewCommand("make", "build"))
	p2 := NewPipeline(false, NewCommand("make", "test"))
	p3 := NewPipeline(false, NewCommand("echo", "failed"))

	ao := NewAndOr(p1)
	if len(ao.Items) != 1 || ao.Items[0].Connector != End {
		t.Fatalf("fresh AndOr = %+v, want one End item", ao.Items)
	}

	ao.Chain(And, p2).Chain(Or, p3)
	if len(ao.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(ao.Items))
	}
	if ao.Items[0].Connector != And || ao.Items[1].Connector != Or || ao.Items[2].Connector != End {
		t.Errorf("connectors = %v %v %v, want And Or End",
			ao.Items[0].Connector, ao.Items[1].Connector, ao.Items[2].Connector)
	}
	if ao.Items[0].Pipeline != p1 || ao.Items[1].Pipeline != p2 || ao.Items[2].Pipeline != p3 {
		t.Error("Chain did not preserve pipeline order")
	}
}

func TestNewListAndSimple(t *testing.T) {
	ao1 := NewAndOr(NewPipeline(false, NewCommand("true")))
	ao2 := NewAndOr(NewPipeline(false, NewCommand("false")))
	list := NewList(ao1, ao2)
	if len(list.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(list.Statements))
	}
	if list.Statements[0].AndOr != ao1 || list.Statements[1].AndOr != ao2 {
		t.Error("NewList did not preserve AndOr order")
	}

	simple := Simple(NewCommand("echo", "hi"))
	cmd, ok := simple.Statements[0].AndOr.Items[0].Pipeline.Commands[0].(*Command)
	if !ok {
		t.Fatalf("Simple's single command is %T, want *Command",
			simple.Statements[0].AndOr.Items[0].Pipeline.Commands[0])
	}
	if cmd.Name.Tok.Value != "echo" {
		t.Errorf("Simple command name = %q, want echo", cmd.Name.Tok.Value)
	}
}

func TestNodePositionAccessors(t *testing.T) {
	var n Node = NewList()
	if n.Position().Line != 0 {
		t.Errorf("zero-value List position = %+v, want zero", n.Position())
	}
}
