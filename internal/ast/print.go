package ast

import (
	"fmt"
	"strings"
)

// Print renders a List back to shell source text: the canonical
// pretty-printer spec §8's round-trip invariant requires ("re-printing the
// AST ... and re-parsing yields an AST isomorphic to the first"). Grounded
// on the teacher's formatExecutionNode (core/planfmt/formatter/text.go): a
// type-switch over plan execution nodes building into a strings.Builder,
// generalized here from plan nodes to the shell's own tagged-variant AST.
func Print(list *List) string {
	var b strings.Builder
	printList(&b, list)
	return b.String()
}

func printList(b *strings.Builder, l *List) {
	for i, stmt := range l.Statements {
		if i > 0 {
			b.WriteString("; ")
		}
		printAndOr(b, stmt.AndOr)
		if stmt.Background {
			b.WriteString(" &")
		}
	}
}

func printAndOr(b *strings.Builder, ao *AndOr) {
	for _, item := range ao.Items {
		printPipeline(b, item.Pipeline)
		switch item.Connector {
		case And:
			b.WriteString(" && ")
		case Or:
			b.WriteString(" || ")
		}
	}
}

func printPipeline(b *strings.Builder, p *Pipeline) {
	if p.Negate {
		b.WriteString("! ")
	}
	for i, c := range p.Commands {
		if i > 0 {
			b.WriteString(" | ")
		}
		printNode(b, c)
	}
}

// printBody prints a Node known to sit in a compound command's body/
// condition position (if/while/for/case/subshell): the parser always
// hands these a bare *List (parseList's result; a brace group also parses
// to a bare *List, braces being pure syntax), so printing it as a plain statement list — not wrapped in a
// brace group — reproduces the identical AST shape on reparse.
func printBody(b *strings.Builder, n Node) {
	if l, ok := n.(*List); ok {
		printList(b, l)
		return
	}
	printNode(b, n)
}

// printNode dispatches a Node appearing in a position that itself requires
// a full compound_command (a pipeline stage, or a function body): a bare
// *List there isn't valid shell grammar on its own, so it must be spelled
// as an explicit brace group, which reparses back to the same *List.
func printNode(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Command:
		printCommand(b, v)
	case *List:
		b.WriteString("{ ")
		printList(b, v)
		b.WriteString("; }")
	case *If:
		printIf(b, v)
	case *While:
		printWhile(b, v)
	case *For:
		printFor(b, v)
	case *Case:
		printCase(b, v)
	case *Function:
		printFunction(b, v)
	case *Subshell:
		b.WriteString("(")
		printBody(b, v.Body)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "<unprintable %T>", n)
	}
}

func printCommand(b *strings.Builder, c *Command) {
	parts := make([]string, 0, len(c.Assignments)+1+len(c.Args))
	for _, a := range c.Assignments {
		parts = append(parts, a.Name+"="+a.Value.Tok.Lexeme)
	}
	if c.Name.Tok.Value != "" {
		parts = append(parts, c.Name.Tok.Lexeme)
	}
	for _, a := range c.Args {
		parts = append(parts, a.Tok.Lexeme)
	}
	b.WriteString(strings.Join(parts, " "))
	for _, r := range c.Redirections {
		b.WriteString(" ")
		printRedirection(b, r)
	}
}

func printRedirection(b *strings.Builder, r Redirection) {
	if r.HasFD {
		fmt.Fprintf(b, "%d", r.FD)
	}
	b.WriteString(r.Op)
	b.WriteString(" ")
	b.WriteString(r.Target.Tok.Lexeme)
}

func printIf(b *strings.Builder, n *If) {
	b.WriteString("if ")
	printBody(b, n.Cond)
	b.WriteString("; then ")
	printBody(b, n.Then)
	for i, ec := range n.ElifCond {
		b.WriteString("; elif ")
		printBody(b, ec)
		b.WriteString("; then ")
		printBody(b, n.ElifThen[i])
	}
	if n.Else != nil {
		b.WriteString("; else ")
		printBody(b, n.Else)
	}
	b.WriteString("; fi")
}

func printWhile(b *strings.Builder, n *While) {
	if n.Until {
		b.WriteString("until ")
	} else {
		b.WriteString("while ")
	}
	printBody(b, n.Cond)
	b.WriteString("; do ")
	printBody(b, n.Body)
	b.WriteString("; done")
}

func printFor(b *strings.Builder, n *For) {
	fmt.Fprintf(b, "for %s", n.IterVar)
	if n.HasIn {
		b.WriteString(" in")
		for _, w := range n.Words {
			b.WriteString(" ")
			b.WriteString(w.Tok.Lexeme)
		}
	}
	b.WriteString("; do ")
	printBody(b, n.Body)
	b.WriteString("; done")
}

func printCase(b *strings.Builder, n *Case) {
	fmt.Fprintf(b, "case %s in ", n.Subject.Tok.Lexeme)
	for _, cl := range n.Clauses {
		pats := make([]string, len(cl.Patterns))
		for i, p := range cl.Patterns {
			pats[i] = p.Tok.Lexeme
		}
		b.WriteString(strings.Join(pats, "|"))
		b.WriteString(") ")
		if cl.Body != nil {
			printBody(b, cl.Body)
			b.WriteString(" ")
		}
		b.WriteString(";; ")
	}
	b.WriteString("esac")
}

// printFunction wraps a *List body in an explicit brace group: unlike
// if/while/for/case bodies, a function definition's body must itself be a
// compound_command, and a bare statement list is not one.
func printFunction(b *strings.Builder, n *Function) {
	fmt.Fprintf(b, "%s() ", n.Name)
	if l, ok := n.Body.(*List); ok {
		b.WriteString("{ ")
		printList(b, l)
		b.WriteString("; }")
		return
	}
	printNode(b, n.Body)
}
