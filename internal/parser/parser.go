// Package parser turns a token stream into the AST defined in internal/ast,
// by recursive descent over the informal grammar in spec §4.3:
//
//	program        := list
//	list           := and_or (( ';' | '&' | NEWLINE ) and_or)* [ ';' | '&' ]
//	and_or         := pipeline (( '&&' | '||' ) NEWLINE* pipeline)*
//	pipeline       := [ '!' ] command ( '|' NEWLINE* command)*
//	command        := simple_command | compound_command
//	compound_command := if_clause | while_clause | until_clause | for_clause
//	                  | case_clause | function_def | brace_group | subshell
//
// Grounded on the teacher's pkgs/parser/parser.go: a single Parser struct
// walking a flat token slice, one method per grammar rule, errors collected
// as *shellerr.ShellError rather than panics.
package parser

import (
	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/lexer"
	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/token"
)

// Parser holds the token cursor and accumulated non-fatal errors. A single
// fatal error (returned from the entry point) always aborts the parse;
// Errors() exposes the errors recorded via recordError and synchronization,
// which ParseProgram itself never uses.
type Parser struct {
	s         *stream
	resumable bool
	errs      []*shellerr.ShellError
}

// New builds a Parser over an already-lexed token slice.
func New(toks []token.Token) *Parser {
	return &Parser{s: newStream(toks)}
}

// NewResumable builds a Parser that, on encountering EOF where the grammar
// expects more input, reports shellerr.IncompleteInput instead of a hard
// ParseError — the signal the ResumableParser wrapper (resumable.go) turns
// into a "needs more input" result for interactive PS2-style continuation.
func NewResumable(toks []token.Token) *Parser {
	return &Parser{s: newStream(toks), resumable: true}
}

// Parse lexes input in one shot (Strict mode) and parses it to a *ast.List.
func Parse(input string) (*ast.List, error) {
	toks, err := lexer.ToSlice(input, lexer.Strict)
	if err != nil {
		return nil, err
	}
	return New(toks).ParseProgram()
}

// Errors returns the errors recorded through recordError, each followed by
// statement-boundary synchronization. ParseProgram is fail-fast and records
// none, so after it this is empty.
func (p *Parser) Errors() []*shellerr.ShellError { return p.errs }

// ParseProgram parses the entire token stream as one program: a list
// optionally followed by trailing input, which is an error.
func (p *Parser) ParseProgram() (*ast.List, error) {
	p.s.skipNewlines()
	list, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if !p.s.atEnd() {
		return nil, shellerr.NewParse(p.s.position(), "unexpected token %s", p.s.cur())
	}
	return list, nil
}

// eofErr reports EOF encountered where the grammar wanted more input. In
// resumable mode this is IncompleteInput (recoverable by feeding another
// chunk); otherwise it is a terminal ParseError.
func (p *Parser) eofErr(format string, args ...any) error {
	pos := p.s.position()
	if p.resumable {
		return shellerr.New(shellerr.IncompleteInput, pos, format, args...)
	}
	return shellerr.NewParse(pos, format, args...)
}

// needsMore is eofErr's use at a specific decision point: the stream is at
// EOF and the grammar rule in progress has not reached a valid stopping
// point.
func (p *Parser) needsMore(what string) error {
	if p.s.atEnd() {
		return p.eofErr("unexpected end of input, expected %s", what)
	}
	return nil
}

// expectOp consumes an OPERATOR token with the given spelling or fails.
func (p *Parser) expectOp(op string) (token.Token, error) {
	if p.s.atEnd() {
		return token.Token{}, p.eofErr("expected %q", op)
	}
	if !p.s.isOp(op) {
		return token.Token{}, shellerr.NewParse(p.s.position(), "expected %q, found %s", op, p.s.cur())
	}
	return p.s.advance(), nil
}

// expectKeyword consumes a reserved word in command-start position or fails.
func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	if p.s.atEnd() {
		return token.Token{}, p.eofErr("expected %q", kw)
	}
	if !p.s.isKeyword(kw) {
		return token.Token{}, shellerr.NewParse(p.s.position(), "expected %q, found %s", kw, p.s.cur())
	}
	return p.s.advance(), nil
}

// expectWord consumes any WORD token (quoted or not) or fails — used for
// names (function identifiers, for-loop variables) that do not need
// command-start keyword reclassification.
func (p *Parser) expectWord(what string) (token.Token, error) {
	if p.s.atEnd() {
		return token.Token{}, p.eofErr("expected %s", what)
	}
	if p.s.cur().Kind != token.WORD {
		return token.Token{}, shellerr.NewParse(p.s.position(), "expected %s, found %s", what, p.s.cur())
	}
	return p.s.advance(), nil
}

// stopSet lists the unquoted reserved words that end a list nested inside a
// compound command, without being consumed by parseList itself.
var (
	stopThenEsac   = []string{"then"}
	stopDoDone     = []string{"do"}
	stopDone       = []string{"done"}
	stopFiElifElse = []string{"fi", "elif", "else"}
	stopFi         = []string{"fi"}
	stopBrace      = []string{"}"}
	stopCaseBody   = []string{";;", "esac"}
)

// parseList implements list := and_or ((';' | '&' | NEWLINE) and_or)*
// [';' | '&'], stopping (without consuming) at EOF or any word in stop.
func (p *Parser) parseList(stop ...string) (*ast.List, error) {
	list := &ast.List{Pos: p.s.position()}
outer:
	for {
		p.s.skipNewlines()
		if p.s.atEnd() || p.atStop(stop) {
			break
		}
		andOr, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		stmt := ast.Statement{AndOr: andOr}
		switch {
		case p.s.isOp("&"):
			stmt.Background = true
			p.s.advance()
		case p.s.isOp(";"):
			p.s.advance()
		case p.s.isNewline():
			p.s.advance()
		default:
			list.Statements = append(list.Statements, stmt)
			break outer
		}
		list.Statements = append(list.Statements, stmt)
	}
	return list, nil
}

func (p *Parser) atStop(words []string) bool {
	for _, w := range words {
		switch w {
		case "}", ")", ";;":
			if p.s.isOp(w) || p.s.isUnquotedWord(w) {
				return true
			}
		default:
			if p.s.isKeyword(w) {
				return true
			}
		}
	}
	return false
}

// parseAndOr implements and_or := pipeline (('&&'|'||') NEWLINE* pipeline)*.
func (p *Parser) parseAndOr() (*ast.AndOr, error) {
	startPos := p.s.position()
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	ao := &ast.AndOr{Pos: startPos, Items: []ast.AndOrItem{{Pipeline: first, Connector: ast.End}}}
	for p.s.isOp("&&") || p.s.isOp("||") {
		conn := ast.And
		name := "&&"
		if p.s.isOp("||") {
			conn, name = ast.Or, "||"
		}
		p.s.advance()
		p.s.skipNewlines()
		if err := p.needsMore("a command after " + name); err != nil {
			return nil, err
		}
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		ao.Items[len(ao.Items)-1].Connector = conn
		ao.Items = append(ao.Items, ast.AndOrItem{Pipeline: next, Connector: ast.End})
	}
	return ao, nil
}

// parsePipeline implements pipeline := ['!'] command ('|' NEWLINE* command)*.
func (p *Parser) parsePipeline() (*ast.Pipeline, error) {
	startPos := p.s.position()
	negate := false
	if p.s.isUnquotedWord("!") {
		negate = true
		p.s.advance()
	}
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	pipe := &ast.Pipeline{Pos: startPos, Negate: negate, Commands: []ast.Node{first}}
	for p.s.isOp("|") {
		p.s.advance()
		p.s.skipNewlines()
		if err := p.needsMore("a command after '|'"); err != nil {
			return nil, err
		}
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pipe.Commands = append(pipe.Commands, next)
	}
	return pipe, nil
}

// parseCommand implements command := simple_command | compound_command.
func (p *Parser) parseCommand() (ast.Node, error) {
	if err := p.needsMore("a command"); err != nil {
		return nil, err
	}
	switch {
	case p.s.isKeyword("if"):
		return p.parseIf()
	case p.s.isKeyword("while"):
		return p.parseWhile(false)
	case p.s.isKeyword("until"):
		return p.parseWhile(true)
	case p.s.isKeyword("for"):
		return p.parseFor()
	case p.s.isKeyword("case"):
		return p.parseCase()
	case p.s.isKeyword("function"):
		return p.parseFunctionDef(true)
	case p.s.isUnquotedWord("{"):
		return p.parseBraceGroup()
	case p.s.isOp("("):
		return p.parseSubshell()
	default:
		// A reserved word that only closes or continues a construct cannot
		// start a command.
		for _, kw := range []string{"then", "else", "elif", "fi", "do", "done", "esac", "}"} {
			if p.s.isUnquotedWord(kw) {
				return nil, shellerr.NewParse(p.s.position(), "unexpected reserved word %q", kw)
			}
		}
		// "name () compound_command" function definition form, recognized
		// by lookahead: WORD followed directly by '(' ')'.
		if p.s.cur().Kind == token.WORD && p.s.peek(1).Kind == token.OPERATOR && p.s.peek(1).Op == "(" &&
			p.s.peek(2).Kind == token.OPERATOR && p.s.peek(2).Op == ")" {
			return p.parseFunctionDef(false)
		}
		return p.parseSimpleCommand()
	}
}

// parseSimpleCommand implements simple_command: a prefix of NAME=value
// assignments, then an optional command name and arguments, then zero or
// more redirections, all interleaved in source order per spec §3.2.
func (p *Parser) parseSimpleCommand() (*ast.Command, error) {
	cmd := &ast.Command{Pos: p.s.position()}
	nameSeen := false
	for {
		if p.s.atEnd() {
			break
		}
		if redir, ok, err := p.tryParseRedirection(); err != nil {
			return nil, err
		} else if ok {
			cmd.Redirections = append(cmd.Redirections, redir)
			continue
		}
		if !nameSeen {
			if assign, ok := p.tryParseAssignment(); ok {
				cmd.Assignments = append(cmd.Assignments, assign)
				continue
			}
		}
		if p.s.cur().Kind != token.WORD {
			break
		}
		if !nameSeen {
			cmd.Name = ast.Word{Tok: p.s.advance()}
			nameSeen = true
			continue
		}
		cmd.Args = append(cmd.Args, ast.Word{Tok: p.s.advance()})
	}
	if !nameSeen && len(cmd.Assignments) == 0 && len(cmd.Redirections) == 0 {
		return nil, shellerr.NewParse(cmd.Pos, "expected a command, found %s", p.s.cur())
	}
	return cmd, nil
}

// tryParseAssignment recognizes an unquoted WORD of the form NAME=value at
// the current position and, if it matches, consumes and returns it. Only
// valid in prefix position (before the command name has been seen) since
// assignment syntax is otherwise just a literal argument word.
func (p *Parser) tryParseAssignment() (ast.Assignment, bool) {
	t := p.s.cur()
	if t.Kind != token.WORD || t.Quoting != token.Unquoted {
		return ast.Assignment{}, false
	}
	name, ok := splitAssignment(t.Value)
	if !ok {
		return ast.Assignment{}, false
	}
	p.s.advance()
	valueStr := t.Value[len(name)+1:]
	return ast.Assignment{
		Pos:  t.Pos,
		Name: name,
		Value: ast.Word{Tok: token.Token{
			Kind: token.WORD, Lexeme: valueStr, Value: valueStr,
			Quoting: token.Unquoted, Pos: t.Pos, EndPos: t.EndPos,
		}},
	}, true
}

// splitAssignment reports whether s has the shape NAME=..., where NAME is a
// valid identifier, returning NAME if so.
func splitAssignment(s string) (string, bool) {
	eq := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			eq = i
			break
		}
		if !identByteAt(s, i) {
			return "", false
		}
	}
	if eq <= 0 {
		return "", false
	}
	return s[:eq], true
}

func identByteAt(s string, i int) bool {
	b := s[i]
	first := i == 0
	if b < 0x80 {
		return isIdentASCII(b, first)
	}
	return true // non-ASCII bytes belong to a multi-byte identifier rune; accept
}

func isIdentASCII(b byte, first bool) bool {
	switch {
	case b == '_':
		return true
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

// redirOps maps an OPERATOR spelling to its default target FD.
var redirOps = map[string]int{
	"<": 0, ">": 1, ">>": 1, "<&": 0, ">&": 1, "2>": 2, "2>>": 2, "&>": 1,
}

// tryParseRedirection recognizes [n]op word at the current position.
func (p *Parser) tryParseRedirection() (ast.Redirection, bool, error) {
	pos := p.s.position()
	fd := -1
	hasFD := false
	save := p.s.pos
	if t := p.s.cur(); t.Kind == token.WORD && t.Quoting == token.Unquoted && isAllDigits(t.Value) {
		if next := p.s.peek(1); next.Kind == token.OPERATOR {
			if _, isRedir := redirOps[next.Op]; isRedir {
				var err error
				fd, err = parseFD(t.Value)
				if err != nil {
					return ast.Redirection{}, false, err
				}
				hasFD = true
				p.s.advance()
			}
		}
	}
	op := p.s.cur()
	defaultFD, isRedir := redirOps[op.Op]
	if op.Kind != token.OPERATOR || !isRedir {
		p.s.pos = save
		return ast.Redirection{}, false, nil
	}
	p.s.advance()
	if err := p.needsMore("a redirection target"); err != nil {
		return ast.Redirection{}, false, err
	}
	if p.s.cur().Kind != token.WORD {
		return ast.Redirection{}, false, shellerr.NewParse(p.s.position(), "expected redirection target, found %s", p.s.cur())
	}
	target := ast.Word{Tok: p.s.advance()}
	if !hasFD {
		fd = defaultFD
	}
	return ast.Redirection{Pos: pos, FD: fd, HasFD: hasFD, Op: op.Op, Target: target}, true, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseFD(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n, nil
}

// parseIf implements if_clause := 'if' list 'then' list
// (('elif' list 'then' list))* ['else' list] 'fi'.
func (p *Parser) parseIf() (*ast.If, error) {
	pos := p.s.position()
	if _, err := p.expectKeyword("if"); err != nil {
		return nil, err
	}
	n := &ast.If{Pos: pos}
	cond, err := p.parseList(stopThenEsac...)
	if err != nil {
		return nil, err
	}
	n.Cond = cond
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseList(stopFiElifElse...)
	if err != nil {
		return nil, err
	}
	n.Then = then
	for p.s.isKeyword("elif") {
		p.s.advance()
		ec, err := p.parseList(stopThenEsac...)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		et, err := p.parseList(stopFiElifElse...)
		if err != nil {
			return nil, err
		}
		n.ElifCond = append(n.ElifCond, ec)
		n.ElifThen = append(n.ElifThen, et)
	}
	if p.s.isKeyword("else") {
		p.s.advance()
		elseBody, err := p.parseList(stopFi...)
		if err != nil {
			return nil, err
		}
		n.Else = elseBody
	}
	if _, err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseWhile implements while_clause / until_clause := ('while'|'until')
// list 'do' list 'done'.
func (p *Parser) parseWhile(until bool) (*ast.While, error) {
	pos := p.s.position()
	kw := "while"
	if until {
		kw = "until"
	}
	if _, err := p.expectKeyword(kw); err != nil {
		return nil, err
	}
	cond, err := p.parseList(stopDoDone...)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseList(stopDone...)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ast.While{Pos: pos, Cond: cond, Body: body, Until: until}, nil
}

// parseFor implements for_clause := 'for' NAME ['in' word*] sequential-sep
// 'do' list 'done', where sequential-sep is (';' | NEWLINE)+.
func (p *Parser) parseFor() (*ast.For, error) {
	pos := p.s.position()
	if _, err := p.expectKeyword("for"); err != nil {
		return nil, err
	}
	nameTok, err := p.expectWord("a loop variable name")
	if err != nil {
		return nil, err
	}
	n := &ast.For{Pos: pos, IterVar: nameTok.Value}
	p.s.skipNewlines()
	if p.s.isKeyword("in") {
		p.s.advance()
		n.HasIn = true
		for p.s.cur().Kind == token.WORD {
			n.Words = append(n.Words, ast.Word{Tok: p.s.advance()})
		}
	}
	// sequential separator: ';' or NEWLINE before 'do'
	if p.s.isOp(";") {
		p.s.advance()
	}
	p.s.skipNewlines()
	if _, err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.parseList(stopDone...)
	if err != nil {
		return nil, err
	}
	n.Body = body
	if _, err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseCase implements case_clause := 'case' word 'in' NEWLINE*
// ( pattern_list ')' list ';;' NEWLINE* )* 'esac'. The trailing ';;' of the
// final clause is optional, matching common shell leniency.
func (p *Parser) parseCase() (*ast.Case, error) {
	pos := p.s.position()
	if _, err := p.expectKeyword("case"); err != nil {
		return nil, err
	}
	subjTok, err := p.expectWord("a case subject")
	if err != nil {
		return nil, err
	}
	n := &ast.Case{Pos: pos, Subject: ast.Word{Tok: subjTok}}
	p.s.skipNewlines()
	if _, err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	p.s.skipNewlines()
	for !p.s.isKeyword("esac") {
		if err := p.needsMore("a case pattern or 'esac'"); err != nil {
			return nil, err
		}
		if p.s.isOp("(") {
			p.s.advance()
		}
		var clause ast.CaseClause
		for {
			patTok, err := p.expectWord("a case pattern")
			if err != nil {
				return nil, err
			}
			clause.Patterns = append(clause.Patterns, ast.Word{Tok: patTok})
			if p.s.isOp("|") {
				p.s.advance()
				continue
			}
			break
		}
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
		p.s.skipNewlines()
		if !p.s.isOp(";;") && !p.s.isKeyword("esac") {
			body, err := p.parseList(stopCaseBody...)
			if err != nil {
				return nil, err
			}
			clause.Body = body
		}
		n.Clauses = append(n.Clauses, clause)
		if p.s.isOp(";;") {
			p.s.advance()
			p.s.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expectKeyword("esac"); err != nil {
		return nil, err
	}
	return n, nil
}

// parseFunctionDef implements both function definition forms:
//
//	'function' NAME [ '(' ')' ] compound_command
//	NAME '(' ')' compound_command
//
// withKeyword selects which form is being parsed (the lookahead in
// parseCommand already distinguished them).
func (p *Parser) parseFunctionDef(withKeyword bool) (*ast.Function, error) {
	pos := p.s.position()
	if withKeyword {
		if _, err := p.expectKeyword("function"); err != nil {
			return nil, err
		}
	}
	nameTok, err := p.expectWord("a function name")
	if err != nil {
		return nil, err
	}
	if p.s.isOp("(") {
		p.s.advance()
		if _, err := p.expectOp(")"); err != nil {
			return nil, err
		}
	}
	p.s.skipNewlines()
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if _, simple := body.(*ast.Command); simple {
		return nil, shellerr.NewParse(pos, "function body of %s must be a compound command", nameTok.Value)
	}
	return &ast.Function{Pos: pos, Name: nameTok.Value, Body: body}, nil
}

// parseBraceGroup implements brace_group := '{' list '}'. A brace group
// runs its body in the current shell environment (no subshell fork), so it
// is represented directly by the inner *ast.List — braces are pure syntax.
func (p *Parser) parseBraceGroup() (ast.Node, error) {
	if _, err := p.expectKeyword("{"); err != nil {
		return nil, err
	}
	body, err := p.parseList(stopBrace...)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("}"); err != nil {
		return nil, err
	}
	return body, nil
}

// parseSubshell implements subshell := '(' list ')'; Subshell wraps the
// body so the executor runs it in its own variable scope.
func (p *Parser) parseSubshell() (*ast.Subshell, error) {
	pos := p.s.position()
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	body, err := p.parseList(")")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.Subshell{Pos: pos, Body: body}, nil
}

// synchronize advances the stream to the next recovery token (spec §4.2
// error-recovery note), used by tooling that parses a whole script and
// wants to report more than the first error. Not used by ParseProgram
// itself, which is fail-fast.
func (p *Parser) synchronize() {
	for !p.s.atEnd() && !recoveryToken(p.s.cur()) {
		p.s.advance()
	}
	if !p.s.atEnd() {
		p.s.advance()
	}
}

// recordError appends a non-fatal error and synchronizes, for callers doing
// best-effort multi-error parsing (e.g. a linter front end).
func (p *Parser) recordError(err error) {
	if se, ok := err.(*shellerr.ShellError); ok {
		p.errs = append(p.errs, se)
	} else {
		p.errs = append(p.errs, shellerr.NewParse(p.s.position(), "%v", err))
	}
	p.synchronize()
}
