package executor

import (
	"os"
	"os/user"
	"strconv"

	"github.com/aledsdavies/posh/internal/ast"
)

// Options holds the shell's boolean mode flags (spec §6.1's $-, spec §5's
// pipefail extension).
type Options struct {
	ErrExit  bool // -e: abort a script on the first non-zero status
	NoExec   bool // -n: read but don't execute (syntax-check mode)
	Verbose  bool // -v
	XTrace   bool // -x
	NoUnset  bool // -u: reference to an unset variable is an error
	PipeFail bool // pipefail extension (spec §5): pipeline status is the
	// first non-zero stage's status, left to right, rather than the last
	// stage's.
}

// Flags renders Options as the $- letter string, in the fixed order a
// shell conventionally reports them.
func (o Options) Flags() string {
	var s []byte
	if o.ErrExit {
		s = append(s, 'e')
	}
	if o.NoExec {
		s = append(s, 'n')
	}
	if o.Verbose {
		s = append(s, 'v')
	}
	if o.XTrace {
		s = append(s, 'x')
	}
	if o.NoUnset {
		s = append(s, 'u')
	}
	return string(s)
}

// ShellState is the explicit, by-reference execution context spec §9
// substitutes for a global "SHELL context object": the variable scope
// stack, function table, last status, positional parameters (held inside
// Scopes), and option flags. Grounded on the teacher's ExecutionContext
// (pkgs/execution/context.go), generalized from a fixed decorator-oriented
// struct to the shell's own state shape.
type ShellState struct {
	Scopes    *ScopeStack
	Functions map[string]*ast.Function

	LastStatus int    // $?
	ShellPID   int    // $$
	LastBgPID  int    // $!
	ScriptName string // $0

	Opts Options

	ifs     string
	homeDir string
}

// NewShellState builds a ShellState seeded from the process environment,
// the way the teacher's NewExecutionContext seeds Env from os.Environ
// (generalized here from devcmd's fixed decorator map to the full
// process environment spec §1.3 calls for).
func NewShellState(environ []string, scriptName string, args []string) *ShellState {
	init := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				init[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	scopes := NewScopeStack(init)
	scopes.SetPositional(args)

	ifs := " \t\n"
	if v, ok := init["IFS"]; ok {
		ifs = v
	}
	home := init["HOME"]

	return &ShellState{
		Scopes:     scopes,
		Functions:  make(map[string]*ast.Function),
		ShellPID:   os.Getpid(),
		ScriptName: scriptName,
		ifs:        ifs,
		homeDir:    home,
	}
}

// The Get/Set/Unset/IsSet/Positional* methods delegate straight to Scopes,
// giving ShellState the full expander.Env shape with IFS/HomeDir/Special
// layered on top.

func (s *ShellState) Get(name string) (string, bool)  { return s.Scopes.Get(name) }
func (s *ShellState) Set(name, value string)          { s.Scopes.Set(name, value); s.syncIFS(name, value) }
func (s *ShellState) Unset(name string)               { s.Scopes.Unset(name) }
func (s *ShellState) IsSet(name string) bool          { return s.Scopes.IsSet(name) }
func (s *ShellState) Positional(n int) (string, bool) { return s.Scopes.Positional(n) }
func (s *ShellState) PositionalCount() int            { return s.Scopes.PositionalCount() }
func (s *ShellState) PositionalAll(j bool) []string   { return s.Scopes.PositionalAll(j) }
func (s *ShellState) Generation() int64               { return s.Scopes.Generation() }

func (s *ShellState) syncIFS(name, value string) {
	if name == "IFS" {
		s.ifs = value
	}
}

func (s *ShellState) IFS() string {
	if v, ok := s.Scopes.Get("IFS"); ok {
		return v
	}
	return " \t\n"
}

// HomeDir resolves "~" (user == "") to $HOME, and "~name" via os/user —
// spec §4.4 tilde expansion's two forms.
func (s *ShellState) HomeDir(name string) (string, bool) {
	if name == "" {
		if s.homeDir != "" {
			return s.homeDir, true
		}
		return "", false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}

// Special resolves the single-character special parameters $? $$ $! $- $0.
func (s *ShellState) Special(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(s.LastStatus), true
	case "$":
		return strconv.Itoa(s.ShellPID), true
	case "!":
		if s.LastBgPID == 0 {
			return "", false
		}
		return strconv.Itoa(s.LastBgPID), true
	case "-":
		return s.Opts.Flags(), true
	case "0":
		return s.ScriptName, true
	}
	return "", false
}
