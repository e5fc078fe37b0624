// Package expander implements spec §4.4: brace expansion, tilde expansion,
// parameter expansion (with the full ${...} modifier set), arithmetic
// expansion, command substitution, word splitting on IFS, and pathname
// expansion, applied to the raw Word tokens the parser produces.
//
// The package depends only on small interfaces (Env, CommandRunner) so it
// has no knowledge of how variables are actually stored or how external
// commands actually run — internal/executor supplies both, the same
// separation the teacher draws between pkgs/execution (interprets) and
// pkgs/engine (decides what to run).
package expander

import "github.com/aledsdavies/posh/internal/ast"

// Env is the variable store the expander reads and writes through:
// shell variables, positional parameters, and IFS. internal/executor's
// scope stack implements this.
type Env interface {
	Get(name string) (value string, set bool)
	Set(name, value string)
	Unset(name string)
	IsSet(name string) bool

	Positional(n int) (value string, set bool) // $1, $2, ...
	PositionalCount() int                      // $#
	PositionalAll(joinFirstChar bool) []string // $@ (joinFirstChar=false) or $* (true)

	// Generation increments on every Set/Unset, letting the expander cache
	// parsed arithmetic expressions without ever seeing a stale variable
	// value (spec §6.1 performance note).
	Generation() int64

	IFS() string
	HomeDir(user string) (string, bool)           // "" user means $HOME
	Special(name string) (value string, set bool) // $$, $?, $0, $-, $!
}

// CommandRunner executes a parsed command list for $(...) and `...`
// command substitution, capturing its standard output.
type CommandRunner interface {
	Capture(list *ast.List) (output string, status int, err error)
}
