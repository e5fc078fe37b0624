// Package executor walks the AST the parser builds, dispatching on node
// kind (spec §4.5) and driving the expander to materialize words into
// argv. Grounded on the teacher's pkgs/engine (program-level dispatch) and
// runtime/executor (the external-collaborator boundary for running real
// processes) — generalized from devcmd's decorator-execution model to
// POSIX control-flow and pipeline semantics.
package executor

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/expander"
	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/shellglob"
)

// Executor owns one shell session's state and drives AST execution. One
// Executor exists per session (spec §5: "one executor per shell session").
type Executor struct {
	State  *ShellState
	Runner ProcessRunner
	cwd    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New builds an Executor over state, using runner for external commands.
// stdin/stdout/stderr are the session's top-level streams.
func New(state *ShellState, runner ProcessRunner, stdin io.Reader, stdout, stderr io.Writer) *Executor {
	cwd, _ := os.Getwd()
	return &Executor{State: state, Runner: runner, cwd: cwd, Stdin: stdin, Stdout: stdout, Stderr: stderr}
}

func (ex *Executor) newExpander() *expander.Expander {
	exp := expander.New(ex.State, captureRunner{ex: ex}, ex.cwd)
	exp.SetNoUnset(ex.State.Opts.NoUnset)
	return exp
}

// Run executes list at the top level, returning its exit status. A
// ControlFlowError of kind exit unwinds here and becomes the returned
// status (spec §7: "exit is consumed by the top-level REPL loop").
func (ex *Executor) Run(list *ast.List) (status int, err error) {
	status, err = ex.visitList(list, ex.Stdin, ex.Stdout, ex.Stderr)
	if cf, ok := shellerr.AsControlFlow(err); ok && cf.Signal == shellerr.SignalExit {
		return cf.Status, nil
	}
	return status, err
}

// captureList runs list with stdout redirected into an in-memory buffer,
// implementing expander.CommandRunner for $(...) and `...` substitution
// (spec §6.2's capture(argv or AST)).
func (ex *Executor) captureList(list *ast.List) (string, int, error) {
	var buf bytes.Buffer
	sub := &Executor{State: ex.State, Runner: ex.Runner, cwd: ex.cwd, Stdin: ex.Stdin, Stdout: &buf, Stderr: ex.Stderr}
	sub.State.Scopes.PushLocal()
	defer sub.State.Scopes.Pop()
	status, err := sub.visitList(list, sub.Stdin, &buf, sub.Stderr)
	if cf, ok := shellerr.AsControlFlow(err); ok && cf.Signal == shellerr.SignalExit {
		return buf.String(), cf.Status, nil
	}
	if err != nil {
		return buf.String(), status, err
	}
	return buf.String(), status, nil
}

// visitList implements list execution (spec §3.2, §4.5): each statement's
// AndOr runs in turn, $? updates after each, & defers to a background job.
func (ex *Executor) visitList(list *ast.List, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	status := 0
	for _, stmt := range list.Statements {
		if stmt.Background {
			bg := &Executor{State: ex.State, Runner: ex.Runner, cwd: ex.cwd, Stdin: stdin, Stdout: stdout, Stderr: stderr}
			go func(s ast.Statement) {
				bg.visitAndOr(s.AndOr, stdin, stdout, stderr)
			}(stmt)
			status = 0
			ex.State.LastStatus = status
			continue
		}
		s, err := ex.visitAndOr(stmt.AndOr, stdin, stdout, stderr)
		status = s
		ex.State.LastStatus = status
		if err != nil {
			return status, err
		}
		if ex.State.Opts.ErrExit && status != 0 {
			return status, nil
		}
	}
	return status, nil
}

// visitAndOr implements spec §4.5's AndOr fold: left-to-right,
// short-circuiting on && after a non-zero status or || after a zero one.
func (ex *Executor) visitAndOr(ao *ast.AndOr, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	status := 0
	var err error
	skip := false
	prevConn := ast.End
	for _, item := range ao.Items {
		switch prevConn {
		case ast.And:
			skip = status != 0
		case ast.Or:
			skip = status == 0
		default:
			skip = false
		}
		if !skip {
			status, err = ex.visitPipeline(item.Pipeline, stdin, stdout, stderr)
			ex.State.LastStatus = status
			if err != nil {
				return status, err
			}
		}
		prevConn = item.Connector
	}
	return status, nil
}

// visitPipeline implements spec §4.5's pipeline rule: spawn every stage
// concurrently wired by OS pipes, the pipeline's status is the rightmost
// stage's (or, under the pipefail option, the first non-zero one),
// negated by a leading '!'.
func (ex *Executor) visitPipeline(p *ast.Pipeline, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	n := len(p.Commands)
	if n == 1 {
		status, err := ex.visitNode(p.Commands[0], stdin, stdout, stderr)
		if err != nil {
			if _, isCF := shellerr.AsControlFlow(err); isCF {
				return status, err
			}
		}
		return negateStatus(p.Negate, status), err
	}

	type stageResult struct {
		status int
		err    error
	}
	results := make([]stageResult, n)
	readers := make([]*os.File, n-1)
	writers := make([]*os.File, n-1)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return 1, nil
		}
		readers[i] = r
		writers[i] = w
	}

	done := make(chan int, n)
	for i, stage := range p.Commands {
		var in io.Reader = stdin
		var out io.Writer = stdout
		if i > 0 {
			in = readers[i-1]
		}
		if i < n-1 {
			out = writers[i]
		}
		idx := i
		go func(node ast.Node, in io.Reader, out io.Writer) {
			status, err := ex.visitNode(node, in, out, stderr)
			if idx > 0 {
				readers[idx-1].Close()
			}
			if idx < n-1 {
				writers[idx].Close()
			}
			results[idx] = stageResult{status, err}
			done <- idx
		}(stage, in, out)
	}
	for range p.Commands {
		<-done
	}

	for _, r := range results {
		if _, isCF := shellerr.AsControlFlow(r.err); isCF {
			return r.status, r.err
		}
	}

	status := results[n-1].status
	if ex.State.Opts.PipeFail {
		for _, r := range results {
			if r.status != 0 {
				status = r.status
				break
			}
		}
	}
	return negateStatus(p.Negate, status), nil
}

func negateStatus(negate bool, status int) int {
	if !negate {
		return status
	}
	if status == 0 {
		return 1
	}
	return 0
}

// visitNode dispatches on node kind — the tagged-variant switch spec §9
// calls for in place of open-set polymorphism.
func (ex *Executor) visitNode(node ast.Node, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	switch n := node.(type) {
	case *ast.Command:
		return ex.visitCommand(n, stdin, stdout, stderr)
	case *ast.List:
		return ex.visitList(n, stdin, stdout, stderr)
	case *ast.If:
		return ex.visitIf(n, stdin, stdout, stderr)
	case *ast.While:
		return ex.visitWhile(n, stdin, stdout, stderr)
	case *ast.For:
		return ex.visitFor(n, stdin, stdout, stderr)
	case *ast.Case:
		return ex.visitCase(n, stdin, stdout, stderr)
	case *ast.Function:
		ex.State.Functions[n.Name] = n
		return 0, nil
	case *ast.Subshell:
		return ex.visitSubshell(n, stdin, stdout, stderr)
	default:
		return 1, shellerr.New(shellerr.ParseError, node.Position(), "unexecutable node %T", node)
	}
}

func (ex *Executor) visitIf(n *ast.If, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	status, err := ex.visitNode(n.Cond, stdin, stdout, stderr)
	if err != nil {
		return status, err
	}
	if status == 0 {
		return ex.visitNode(n.Then, stdin, stdout, stderr)
	}
	for i, ec := range n.ElifCond {
		status, err = ex.visitNode(ec, stdin, stdout, stderr)
		if err != nil {
			return status, err
		}
		if status == 0 {
			return ex.visitNode(n.ElifThen[i], stdin, stdout, stderr)
		}
	}
	if n.Else != nil {
		return ex.visitNode(n.Else, stdin, stdout, stderr)
	}
	return 0, nil
}

func (ex *Executor) visitWhile(n *ast.While, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	status := 0
	for {
		condStatus, err := ex.visitNode(n.Cond, stdin, stdout, stderr)
		if err != nil {
			return condStatus, err
		}
		loopShouldRun := condStatus == 0
		if n.Until {
			loopShouldRun = condStatus != 0
		}
		if !loopShouldRun {
			break
		}
		bodyStatus, err := ex.visitNode(n.Body, stdin, stdout, stderr)
		status = bodyStatus
		if cf, ok := shellerr.AsControlFlow(err); ok {
			switch cf.Signal {
			case shellerr.SignalBreak:
				if cf.Levels > 1 {
					cf.Levels--
					return status, cf
				}
				return status, nil
			case shellerr.SignalContinue:
				if cf.Levels > 1 {
					cf.Levels--
					return status, cf
				}
				continue
			default:
				return status, err
			}
		} else if err != nil {
			return status, err
		}
	}
	return status, nil
}

// visitFor implements spec §4.5's for-loop: an empty word list with no
// "in" clause iterates the current positional parameters.
func (ex *Executor) visitFor(n *ast.For, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	exp := ex.newExpander()
	var values []string
	if n.HasIn {
		for _, w := range n.Words {
			fields, err := exp.ExpandWord(w)
			if err != nil {
				return 1, err
			}
			values = append(values, fields...)
		}
	} else {
		values = ex.State.PositionalAll(false)
	}

	status := 0
	for _, v := range values {
		ex.State.Set(n.IterVar, v)
		bodyStatus, err := ex.visitNode(n.Body, stdin, stdout, stderr)
		status = bodyStatus
		if cf, ok := shellerr.AsControlFlow(err); ok {
			switch cf.Signal {
			case shellerr.SignalBreak:
				if cf.Levels > 1 {
					cf.Levels--
					return status, cf
				}
				return status, nil
			case shellerr.SignalContinue:
				if cf.Levels > 1 {
					cf.Levels--
					return status, cf
				}
				continue
			default:
				return status, err
			}
		} else if err != nil {
			return status, err
		}
	}
	return status, nil
}

// visitCase implements spec §4.5's case dispatch: first-match-wins over
// glob-style alternatives, unmatched subject yields status 0.
func (ex *Executor) visitCase(n *ast.Case, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	exp := ex.newExpander()
	subject, err := exp.ExpandWordNoSplit(n.Subject)
	if err != nil {
		return 1, err
	}
	for _, clause := range n.Clauses {
		for _, patWord := range clause.Patterns {
			pattern, err := exp.ExpandCasePattern(patWord)
			if err != nil {
				return 1, err
			}
			if shellglob.Match(pattern, subject) {
				if clause.Body == nil {
					return 0, nil
				}
				return ex.visitNode(clause.Body, stdin, stdout, stderr)
			}
		}
	}
	return 0, nil
}

// visitSubshell implements spec §4.5's (…) grouping: the body runs over
// the same variable reads as the parent, and its plain assignments stay in
// one throwaway local frame. There is no real fork: the body runs in the
// shell's own process, so unset, export of an outer variable, function
// definitions, cd and exit still affect the enclosing shell.
func (ex *Executor) visitSubshell(n *ast.Subshell, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	sub := &Executor{State: ex.State, Runner: ex.Runner, cwd: ex.cwd, Stdin: stdin, Stdout: stdout, Stderr: stderr}
	sub.State.Scopes.PushLocal()
	defer sub.State.Scopes.Pop()
	return sub.visitNode(n.Body, stdin, stdout, stderr)
}

// visitCommand implements spec §4.5's simple-command execution: prefix
// assignments (scoped per spec §4.5), word materialization, function
// lookup order (function table → built-in table → PATH), redirections.
func (ex *Executor) visitCommand(c *ast.Command, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	// -n (noexec, spec §6.1): read but never run a command — no assignment,
	// no redirection, no builtin/function/external dispatch. Every command
	// execution in this package funnels through here, so gating at this one
	// point also silences command substitution and loop/conditional bodies.
	if ex.State.Opts.NoExec {
		return 0, nil
	}

	exp := ex.newExpander()

	if len(c.Assignments) > 0 && c.Name.Tok.Value == "" {
		for _, a := range c.Assignments {
			val, err := exp.ExpandWordNoSplit(a.Value)
			if err != nil {
				return 1, err
			}
			ex.State.Set(a.Name, val)
		}
		return 0, nil
	}

	var prefixEnv []string
	if len(c.Assignments) > 0 {
		ex.State.Scopes.PushLocal()
		defer ex.State.Scopes.Pop()
		for _, a := range c.Assignments {
			val, err := exp.ExpandWordNoSplit(a.Value)
			if err != nil {
				return 1, err
			}
			ex.State.Set(a.Name, val)
			prefixEnv = append(prefixEnv, a.Name+"="+val)
		}
	}

	name, err := exp.ExpandWordNoSplit(c.Name)
	if err != nil {
		return 1, err
	}
	if name == "" {
		return 0, nil
	}

	var argv []string
	argv = append(argv, name)
	for _, w := range c.Args {
		fields, err := exp.ExpandWord(w)
		if err != nil {
			return 1, err
		}
		argv = append(argv, fields...)
	}

	in, out, errw, cleanup, err := ex.resolveRedirections(c.Redirections, stdin, stdout, stderr, exp)
	if err != nil {
		return 1, err
	}
	defer cleanup()

	if ex.State.Opts.XTrace {
		ex.trace(argv, prefixEnv)
	}

	if fn, ok := ex.State.Functions[name]; ok {
		return ex.callFunction(fn, argv[1:], in, out, errw)
	}
	if b, ok := LookupBuiltin(name); ok {
		return b(ex, argv, in, out, errw)
	}
	return ex.runExternal(argv, in, out, errw, prefixEnv)
}

// trace implements spec §6.1's xtrace mode (-x): write the fully-expanded
// command line to stderr, "+ "-prefixed, right before it runs.
func (ex *Executor) trace(argv, prefixEnv []string) {
	parts := make([]string, 0, len(prefixEnv)+len(argv))
	parts = append(parts, prefixEnv...)
	parts = append(parts, argv...)
	io.WriteString(ex.Stderr, "+ "+strings.Join(parts, " ")+"\n")
}

func (ex *Executor) callFunction(fn *ast.Function, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	ex.State.Scopes.PushFunctionFrame(args)
	defer ex.State.Scopes.Pop()
	status, err := ex.visitNode(fn.Body, stdin, stdout, stderr)
	if cf, ok := shellerr.AsControlFlow(err); ok && cf.Signal == shellerr.SignalReturn {
		return cf.Status, nil
	}
	return status, err
}

// runExternal spawns argv[0] via ex.Runner. extraEnv holds this command's
// own prefix assignments ("FOO=bar cmd"): spec §4.5 scopes these to "cmd and
// its children", so they're merged in here regardless of whether FOO is
// otherwise marked exported, rather than relying on ScopeStack's persisted
// export bit (which a brand-new prefix-assigned name never has set).
func (ex *Executor) runExternal(argv []string, stdin io.Reader, stdout, stderr io.Writer, extraEnv []string) (int, error) {
	inFile, inCleanup := asReadFile(stdin)
	outFile, outCleanup := asWriteFile(stdout)
	errFile, errCleanup := asWriteFile(stderr)
	defer inCleanup()
	defer outCleanup()
	defer errCleanup()

	env := append(ex.State.Scopes.ExportedEnviron(), extraEnv...)
	result, err := ex.Runner.RunExternal(argv, env, inFile, outFile, errFile, false)
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			io.WriteString(stderr, argv[0]+": command not found\n")
			return 127, nil
		}
		io.WriteString(stderr, err.Error()+"\n")
		return 126, nil
	}
	status, _ := result.Wait()
	return status, nil
}

// asReadFile/asWriteFile adapt an io.Reader/Writer into an *os.File for
// ProcessRunner, which speaks the OS-level fd vocabulary spec §6.2 hands
// to the collaborator. A stream that is already an *os.File (the common
// case: a terminal, an opened redirection target) passes through; a
// pipeline's in-process stage boundary or a capture buffer is bridged
// through an os.Pipe with a copying goroutine.
func asReadFile(r io.Reader) (*os.File, func()) {
	if f, ok := r.(*os.File); ok {
		return f, func() {}
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, func() {}
	}
	go func() {
		io.Copy(pw, r)
		pw.Close()
	}()
	return pr, func() { pr.Close() }
}

func asWriteFile(w io.Writer) (*os.File, func()) {
	if f, ok := w.(*os.File); ok {
		return f, func() {}
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, func() {}
	}
	done := make(chan struct{})
	go func() {
		io.Copy(w, pr)
		pr.Close()
		close(done)
	}()
	return pw, func() {
		pw.Close()
		<-done
	}
}

// effectiveFD resolves a redirection's target descriptor, defaulting per
// its operator when the source didn't write an explicit one (spec §4.3:
// "< is 0, >/>>/... are 1").
func effectiveFD(r ast.Redirection) int {
	if r.HasFD {
		return r.FD
	}
	if r.Op == "<" || r.Op == "<&" {
		return 0
	}
	return 1
}

// resolveRedirections applies a command's redirections in source order,
// turning each into an opened file or an fd-duplication over the current
// in/out/err streams (spec §4.5, §6.2: the executor hands ProcessRunner
// already-resolved streams, never a redirection list of its own).
func (ex *Executor) resolveRedirections(redirs []ast.Redirection, stdin io.Reader, stdout, stderr io.Writer, exp *expander.Expander) (io.Reader, io.Writer, io.Writer, func(), error) {
	in, out, errw := stdin, stdout, stderr
	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, r := range redirs {
		target, err := exp.ExpandWordNoSplit(r.Target)
		if err != nil {
			cleanup()
			return nil, nil, nil, func() {}, err
		}
		fd := effectiveFD(r)
		switch r.Op {
		case "<":
			f, err := os.Open(target)
			if err != nil {
				cleanup()
				return nil, nil, nil, func() {}, shellerr.NewRedirection(r.Pos, "%v", err)
			}
			opened = append(opened, f)
			in = f
		case ">", "&>":
			f, err := os.Create(target)
			if err != nil {
				cleanup()
				return nil, nil, nil, func() {}, shellerr.NewRedirection(r.Pos, "%v", err)
			}
			opened = append(opened, f)
			if fd == 2 {
				errw = f
			} else {
				out = f
				if r.Op == "&>" {
					errw = f
				}
			}
		case ">>":
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				cleanup()
				return nil, nil, nil, func() {}, shellerr.NewRedirection(r.Pos, "%v", err)
			}
			opened = append(opened, f)
			if fd == 2 {
				errw = f
			} else {
				out = f
			}
		case ">&":
			switch target {
			case "-":
				if fd == 2 {
					errw = io.Discard
				} else {
					out = io.Discard
				}
			case "1":
				if fd == 2 {
					errw = out
				}
			case "2":
				if fd != 2 {
					out = errw
				}
			}
		case "<&":
			switch target {
			case "-":
				in = strings.NewReader("")
			case "0":
				// duplicate fd 0 onto itself: no-op
			}
		}
	}
	return in, out, errw, cleanup, nil
}
