package parser

import "github.com/aledsdavies/posh/internal/token"

// stream is the sole token accessor for grammar rules: peek(k), cur(),
// advance(), atEnd(), isOp, isUnquotedWord, isKeyword, isNewline,
// skipNewlines and position() (spec §4.2). recoveryToken below names the
// statement boundaries that Parser.synchronize skips to; ParseProgram
// itself stops at the first error.
type stream struct {
	toks []token.Token
	pos  int
}

func newStream(toks []token.Token) *stream {
	return &stream{toks: toks}
}

func (s *stream) peek(k int) token.Token {
	idx := s.pos + k
	if idx >= len(s.toks) {
		return s.toks[len(s.toks)-1] // EOF sentinel, always last
	}
	return s.toks[idx]
}

func (s *stream) cur() token.Token { return s.peek(0) }

func (s *stream) atEnd() bool { return s.cur().Kind == token.EOF }

func (s *stream) advance() token.Token {
	t := s.cur()
	if !s.atEnd() {
		s.pos++
	}
	return t
}

func (s *stream) position() token.Position { return s.cur().Pos }

// isOp reports whether the current token is an OPERATOR with this spelling.
func (s *stream) isOp(op string) bool {
	t := s.cur()
	return t.Kind == token.OPERATOR && t.Op == op
}

// isUnquotedWord reports whether the current token is an unquoted WORD
// with this exact value — the shape a reserved word must have before the
// parser reclassifies it as a KEYWORD (spec §3.1, §4.3).
func (s *stream) isUnquotedWord(value string) bool {
	t := s.cur()
	return t.Kind == token.WORD && t.Quoting == token.Unquoted && t.Value == value
}

// isKeyword reports whether the current token, in command-start position,
// should be read as the reserved word kw.
func (s *stream) isKeyword(kw string) bool {
	return token.Keywords[kw] && s.isUnquotedWord(kw)
}

func (s *stream) isNewline() bool { return s.cur().Kind == token.NEWLINE }

// skipNewlines consumes any run of NEWLINE tokens — used between grammar
// elements that allow blank lines (e.g. after "do", before "then").
func (s *stream) skipNewlines() {
	for s.isNewline() {
		s.advance()
	}
}

// recoveryToken reports whether tok is one of the fixed synchronization
// points the parser resynchronizes at after a ParseError: ; , newline,
// fi, done, esac.
func recoveryToken(t token.Token) bool {
	if t.Kind == token.NEWLINE {
		return true
	}
	if t.Kind == token.OPERATOR && t.Op == ";" {
		return true
	}
	if t.Kind == token.WORD && t.Quoting == token.Unquoted {
		switch t.Value {
		case "fi", "done", "esac":
			return true
		}
	}
	return false
}
