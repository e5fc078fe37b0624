// Package lexer tokenizes POSIX shell source into a token.Token stream,
// preserving quote provenance for the expander and structural boundaries
// for the parser.
package lexer

import (
	"unicode"
	"unicode/utf8"

	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/token"
)

// ASCII classification tables, following the teacher's fast-path approach
// of precomputed lookup arrays over the 0-127 byte range.
var (
	isSpaceTab   [128]bool
	isOperatorCh [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isSpaceTab[i] = ch == ' ' || ch == '\t'
	}
	for _, ch := range []byte{'|', '&', ';', '(', ')', '<', '>'} {
		isOperatorCh[ch] = true
	}
}

// Mode selects whether unterminated constructs are reported as a fatal
// LexError (Strict) or as the resumable-parse signal IncompleteInput
// (Resumable), per spec §4.1's failure-mode table.
type Mode int

const (
	Strict Mode = iota
	Resumable
)

// parenCtx tracks one level of an unquoted $( or $(( region so embedded
// whitespace/operators don't prematurely end the enclosing WORD.
type parenCtx struct {
	depth int
}

// Lexer performs rune-based scanning of shell source.
type Lexer struct {
	input   string
	mode    Mode
	pos     int // byte offset of l.ch
	readPos int
	ch      rune
	line    int
	column  int

	parens []parenCtx // stack of open $( / $(( regions
}

// New creates a Lexer over input in Strict mode.
func New(input string) *Lexer {
	return NewMode(input, Strict)
}

// NewMode creates a Lexer with an explicit resumability mode.
func NewMode(input string, mode Mode) *Lexer {
	l := &Lexer{input: input, mode: mode, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
	} else if b := l.input[l.readPos]; b < 0x80 {
		l.ch = rune(b)
		l.pos = l.readPos
		l.readPos++
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.pos = l.readPos
		l.readPos += size
	}
	l.column++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	if b := l.input[l.readPos]; b < 0x80 {
		return rune(b)
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.readPos
	for i := 0; i < offset && p < len(l.input); i++ {
		_, size := utf8.DecodeRuneInString(l.input[p:])
		p += size
	}
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) pos_() token.Position {
	return token.Position{Line: l.line, Column: l.column, Offset: l.pos}
}

func (l *Lexer) skipSpacesAndComments() {
	for {
		for l.ch < 128 && isSpaceTab[l.ch] {
			l.readChar()
		}
		if l.ch == '\\' && l.peekChar() == '\n' {
			// line continuation outside a word: consumed silently
			l.readChar()
			l.readChar()
			continue
		}
		if l.ch == '#' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// Next returns the next token. At end of input it returns an EOF token
// forever after. Returns a *shellerr.ShellError for malformed quoting or
// unterminated substitutions, or when IncompleteInput should be signaled
// in Resumable mode (callers test shellerr.Is(err, shellerr.IncompleteInput)).
func (l *Lexer) Next() (token.Token, error) {
	l.skipSpacesAndComments()
	start := l.pos_()

	switch {
	case l.ch == 0:
		return token.Token{Kind: token.EOF, Pos: start, EndPos: start}, nil
	case l.ch == '\n':
		l.readChar()
		return token.Token{Kind: token.NEWLINE, Op: "\n", Pos: start, EndPos: l.pos_()}, nil
	}

	if l.ch < 128 && isOperatorCh[l.ch] {
		return l.lexOperator(start)
	}

	return l.lexWord(start)
}

// lexOperator performs longest-match scanning among the fixed operator set.
func (l *Lexer) lexOperator(start token.Position) (token.Token, error) {
	// Try 3-, then 2-, then 1-character operators starting at l.ch.
	candidates := []string{
		string(l.ch) + string(l.peekChar()) + string(l.peekAt(1)),
		string(l.ch) + string(l.peekChar()),
		string(l.ch),
	}
	for _, cand := range candidates {
		if matchesOperator(cand) {
			for range cand {
				l.readChar()
			}
			return token.Token{Kind: token.OPERATOR, Op: cand, Lexeme: cand, Pos: start, EndPos: l.pos_()}, nil
		}
	}
	// Unrecognized operator character in isolation (shouldn't happen given
	// the fixed set, but fail closed rather than loop).
	ch := l.ch
	l.readChar()
	return token.Token{}, shellerr.NewLex(start, "unexpected character %q", ch)
}

func matchesOperator(s string) bool {
	for _, op := range token.Operators {
		if op == s {
			return true
		}
	}
	return false
}

// lexWord scans a WORD token, tracking quote state and $(...) / $((...))
// nesting so embedded whitespace and operator characters don't split it.
func (l *Lexer) lexWord(start token.Position) (token.Token, error) {
	var lexemeBuf []byte
	var valueBuf []byte
	var segs []token.Segment
	var curSegVal []byte
	curQuote := token.Unquoted
	sawQuote := false

	inSingle, inDouble, inBacktick := false, false, false
	l.parens = l.parens[:0]

	// flushSeg closes out the run of text accumulated under curQuote and
	// starts a new run tagged next. Consecutive runs with different
	// Quoting values are what make the word's overall tag MIXED.
	flushSeg := func(next token.Quoting) {
		if len(curSegVal) > 0 || curQuote != token.Unquoted {
			segs = append(segs, token.Segment{Text: string(curSegVal), Quoting: curQuote})
		}
		curSegVal = nil
		curQuote = next
	}

	atTopLevel := func() bool { return !inSingle && !inDouble && !inBacktick && len(l.parens) == 0 }

	for {
		if atTopLevel() {
			if l.ch == 0 || l.ch == '\n' || (l.ch < 128 && isSpaceTab[l.ch]) {
				break
			}
			if l.ch < 128 && isOperatorCh[l.ch] {
				break
			}
		}

		switch {
		case l.ch == 0:
			if inSingle || inDouble || inBacktick || len(l.parens) > 0 {
				kind := shellerr.LexError
				if l.mode == Resumable {
					kind = shellerr.IncompleteInput
				}
				return token.Token{}, shellerr.New(kind, start, "unterminated quoting or substitution")
			}
			goto done

		case l.ch == '\'' && !inDouble && !inBacktick:
			if !inSingle {
				flushSeg(token.SingleQuoted)
				sawQuote = true
			}
			inSingle = !inSingle
			lexemeBuf = append(lexemeBuf, '\'')
			if !inSingle {
				flushSeg(token.Unquoted)
			}
			l.readChar()

		case inSingle:
			// Single-quoted content is taken verbatim, including backslash.
			lexemeBuf = append(lexemeBuf, string(l.ch)...)
			valueBuf = append(valueBuf, string(l.ch)...)
			curSegVal = append(curSegVal, string(l.ch)...)
			l.readChar()

		case l.ch == '"' && !inBacktick:
			if !inDouble {
				flushSeg(token.DoubleQuoted)
				sawQuote = true
			}
			inDouble = !inDouble
			lexemeBuf = append(lexemeBuf, '"')
			if !inDouble {
				flushSeg(token.Unquoted)
			}
			l.readChar()

		case l.ch == '`' && !inSingle:
			inBacktick = !inBacktick
			lexemeBuf = append(lexemeBuf, '`')
			valueBuf = append(valueBuf, '`')
			curSegVal = append(curSegVal, '`')
			l.readChar()

		case l.ch == '\\' && !inSingle:
			lexemeBuf = append(lexemeBuf, '\\')
			l.readChar()
			if l.ch == 0 {
				break
			}
			if inDouble {
				// Only $ " \ ` are escapable inside double quotes; anything
				// else keeps the backslash literally (spec §4.1).
				if l.ch == '$' || l.ch == '`' {
					// Mark the literal so the expander never mistakes it
					// for an expansion trigger (see token.EscLiteral).
					lexemeBuf = append(lexemeBuf, string(l.ch)...)
					valueBuf = append(valueBuf, token.EscLiteral)
					valueBuf = append(valueBuf, string(l.ch)...)
					curSegVal = append(curSegVal, token.EscLiteral)
					curSegVal = append(curSegVal, string(l.ch)...)
				} else if l.ch == '"' || l.ch == '\\' {
					lexemeBuf = append(lexemeBuf, string(l.ch)...)
					valueBuf = append(valueBuf, string(l.ch)...)
					curSegVal = append(curSegVal, string(l.ch)...)
				} else {
					valueBuf = append(valueBuf, '\\')
					curSegVal = append(curSegVal, '\\')
					lexemeBuf = append(lexemeBuf, string(l.ch)...)
					valueBuf = append(valueBuf, string(l.ch)...)
					curSegVal = append(curSegVal, string(l.ch)...)
				}
			} else {
				// Unquoted backslash: passes the next char through literally.
				if l.ch == '$' || l.ch == '`' {
					valueBuf = append(valueBuf, token.EscLiteral)
					curSegVal = append(curSegVal, token.EscLiteral)
				}
				lexemeBuf = append(lexemeBuf, string(l.ch)...)
				valueBuf = append(valueBuf, string(l.ch)...)
				curSegVal = append(curSegVal, string(l.ch)...)
			}
			l.readChar()

		case l.ch == '$' && l.peekChar() == '(' && !inSingle:
			l.parens = append(l.parens, parenCtx{depth: 1})
			lexemeBuf = append(lexemeBuf, '$', '(')
			valueBuf = append(valueBuf, '$', '(')
			curSegVal = append(curSegVal, '$', '(')
			l.readChar()
			l.readChar()

		case l.ch == '(' && !inSingle && len(l.parens) > 0:
			l.parens[len(l.parens)-1].depth++
			lexemeBuf = append(lexemeBuf, '(')
			valueBuf = append(valueBuf, '(')
			curSegVal = append(curSegVal, '(')
			l.readChar()

		case l.ch == ')' && !inSingle && len(l.parens) > 0:
			top := len(l.parens) - 1
			l.parens[top].depth--
			lexemeBuf = append(lexemeBuf, ')')
			valueBuf = append(valueBuf, ')')
			curSegVal = append(curSegVal, ')')
			l.readChar()
			if l.parens[top].depth == 0 {
				l.parens = l.parens[:top]
			}

		default:
			lexemeBuf = append(lexemeBuf, string(l.ch)...)
			valueBuf = append(valueBuf, string(l.ch)...)
			curSegVal = append(curSegVal, string(l.ch)...)
			l.readChar()
		}
	}

done:
	flushSeg(token.Unquoted)

	quoting := token.Unquoted
	switch {
	case !sawQuote:
		quoting = token.Unquoted
	case len(segs) == 1:
		quoting = segs[0].Quoting
	default:
		quoting = token.Mixed
	}

	tok := token.Token{
		Kind:    token.WORD,
		Lexeme:  string(lexemeBuf),
		Value:   string(valueBuf),
		Quoting: quoting,
		Pos:     start,
		EndPos:  l.pos_(),
	}
	if quoting == token.Mixed {
		tok.Segments = segs
	}
	return tok, nil
}

// ToSlice tokenizes the full input, stopping at the first error or at EOF.
func ToSlice(input string, mode Mode) ([]token.Token, error) {
	l := NewMode(input, mode)
	var out []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return out, err
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out, nil
		}
	}
}

// IsIdentByte reports whether b can appear in a shell variable/function name.
func IsIdentByte(b byte, first bool) bool {
	if b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') {
		return true
	}
	if !first && b >= '0' && b <= '9' {
		return true
	}
	return false
}

// IsIdentRune is the unicode-aware counterpart used when scanning beyond
// ASCII identifier characters embedded in expansions.
func IsIdentRune(r rune, first bool) bool {
	if r < 128 {
		return IsIdentByte(byte(r), first)
	}
	return !first && unicode.IsDigit(r)
}
