package parser

import (
	"strings"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/lexer"
	"github.com/aledsdavies/posh/internal/shellerr"
)

// ResumableParser accumulates chunks of interactive input until a complete
// program has been typed, per spec §4.3's resumability requirement: an
// unmatched if/fi, do/done, case/esac, {/}, an unterminated quote or
// substitution, or a trailing &&/||/| all mean "the user is not done
// typing yet" rather than a syntax error.
//
// The lexer already reports shellerr.IncompleteInput for unterminated
// quoting and unclosed command/arithmetic substitutions (the nesting it
// tracks directly). Everything else — unmatched compound-command keywords
// and trailing connectors — falls out of a single rule: in resumable mode,
// any EOF the grammar hits while still expecting a specific token becomes
// IncompleteInput instead of a hard ParseError (see Parser.eofErr). A
// resumable parser is therefore just Parser run in that mode, plus a
// buffer that grows across Feed calls.
type ResumableParser struct {
	buf strings.Builder
}

// NewResumableParser returns an empty ResumableParser ready to accept input.
func NewResumableParser() *ResumableParser {
	return &ResumableParser{}
}

// FeedResult is the outcome of one Feed call: exactly one of Program,
// NeedsMore, or Err is meaningful.
type FeedResult struct {
	Program   *ast.List // non-nil when the accumulated input parsed completely
	NeedsMore bool      // true when more input is required before re-trying
	Err       error     // non-nil on an unrecoverable syntax error
}

// Feed appends chunk (normally one line, including its trailing newline) to
// the buffered input and attempts a parse. On success the buffer is reset
// and the program is returned. On NeedsMore the caller should prompt for
// another line (PS2) and Feed it; the buffer is preserved. On Err the
// buffer is reset so the next Feed starts a fresh program, matching
// interactive shells discarding a rejected command line.
func (r *ResumableParser) Feed(chunk string) FeedResult {
	r.buf.WriteString(chunk)
	input := r.buf.String()

	if endsInLineContinuation(input) {
		return FeedResult{NeedsMore: true}
	}

	toks, err := lexer.ToSlice(input, lexer.Resumable)
	if err != nil {
		if shellerr.Is(err, shellerr.IncompleteInput) {
			return FeedResult{NeedsMore: true}
		}
		r.buf.Reset()
		return FeedResult{Err: err}
	}

	prog, err := NewResumable(toks).ParseProgram()
	if err != nil {
		if shellerr.Is(err, shellerr.IncompleteInput) {
			return FeedResult{NeedsMore: true}
		}
		r.buf.Reset()
		return FeedResult{Err: err}
	}

	r.buf.Reset()
	return FeedResult{Program: prog}
}

// Pending reports whether a partial program is currently buffered.
func (r *ResumableParser) Pending() bool { return r.buf.Len() > 0 }

// Reset discards any buffered partial input, e.g. on an interactive Ctrl-C.
func (r *ResumableParser) Reset() { r.buf.Reset() }

// endsInLineContinuation reports whether input ends with an unescaped
// backslash immediately before its final newline (or at end of string),
// meaning the line was explicitly continued. The lexer's
// skipSpacesAndComments silently consumes "\" + newline as whitespace, so
// by the time a token stream exists this signal is already gone — it has
// to be checked on the raw buffer instead.
func endsInLineContinuation(input string) bool {
	s := input
	if strings.HasSuffix(s, "\n") {
		s = s[:len(s)-1]
	} else {
		// No trailing newline yet: the chunk is still being typed, not
		// a candidate for continuation detection.
		return false
	}
	if !strings.HasSuffix(s, "\\") {
		return false
	}
	// Count trailing backslashes: an even count means they escape each
	// other (literal backslashes), not a line continuation.
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
