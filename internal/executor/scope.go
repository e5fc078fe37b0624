package executor

import (
	"sync/atomic"
)

// variable is one scope slot: its value plus whether it has been marked for
// export to child processes (spec §4.5 scoping: "export marks a variable
// for inheritance by child processes").
type variable struct {
	value    string
	exported bool
	set      bool
}

// scope is one frame of the variable scope stack: either the global frame,
// a function-call frame, or a command-local prefix-assignment frame (spec
// §4.5, §9's "explicit ShellState passed by reference").
type scope struct {
	vars       map[string]variable
	positional []string // $1.. for this frame; nil means "inherit enclosing frame's"
	funcFrame  bool     // true for a function-call frame (rebinds $0 is not done; name stays $0)
}

func newScope() *scope {
	return &scope{vars: make(map[string]variable)}
}

// ScopeStack is the executor's variable environment: a stack of scopes
// searched top-down for reads, written at the top frame only, with a
// generation counter the expander uses to invalidate its arithmetic cache
// (spec §5's "expansion cache ... invalidated on any write").
type ScopeStack struct {
	frames     []*scope
	generation int64
}

// NewScopeStack builds a stack with a single global frame seeded from
// initial (typically the inherited process environment).
func NewScopeStack(initial map[string]string) *ScopeStack {
	g := newScope()
	for k, v := range initial {
		g.vars[k] = variable{value: v, exported: true, set: true}
	}
	return &ScopeStack{frames: []*scope{g}}
}

func (s *ScopeStack) top() *scope { return s.frames[len(s.frames)-1] }

// PushFunctionFrame enters a new scope for a function call, with its own
// positional parameters; assignments inside are local to the call unless
// exported (spec §4.5).
func (s *ScopeStack) PushFunctionFrame(args []string) {
	f := newScope()
	f.positional = args
	f.funcFrame = true
	s.frames = append(s.frames, f)
}

// PushLocal enters a bare local frame (used for command-prefix assignments
// like "VAR=x cmd", visible only to that command and its children).
func (s *ScopeStack) PushLocal() {
	s.frames = append(s.frames, newScope())
}

func (s *ScopeStack) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *ScopeStack) bump() { atomic.AddInt64(&s.generation, 1) }

// Get implements expander.Env: search frames top-down.
func (s *ScopeStack) Get(name string) (string, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok && v.set {
			return v.value, true
		}
	}
	return "", false
}

// Set writes to the top frame, matching the rule that a plain assignment
// (no "export") is visible only to the current scope and below.
func (s *ScopeStack) Set(name, value string) {
	s.top().vars[name] = variable{value: value, set: true, exported: s.wasExported(name)}
	s.bump()
}

func (s *ScopeStack) wasExported(name string) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			return v.exported
		}
	}
	return false
}

// Export marks the innermost existing binding of name for inheritance by
// child processes. If name is bound in no frame, an unset exported
// placeholder is created in the top frame. It never changes a value.
func (s *ScopeStack) Export(name string) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].vars[name]; ok {
			v.exported = true
			s.frames[i].vars[name] = v
			return
		}
	}
	s.top().vars[name] = variable{exported: true, set: false}
}

func (s *ScopeStack) Unset(name string) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].vars[name]; ok {
			delete(s.frames[i].vars, name)
			s.bump()
			return
		}
	}
}

func (s *ScopeStack) IsSet(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *ScopeStack) Generation() int64 { return atomic.LoadInt64(&s.generation) }

// currentPositional walks down to the nearest frame that owns positional
// parameters (a function frame, or the global frame seeded from argv).
func (s *ScopeStack) currentPositional() []string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].positional != nil || s.frames[i].funcFrame {
			return s.frames[i].positional
		}
	}
	return s.frames[0].positional
}

func (s *ScopeStack) Positional(n int) (string, bool) {
	p := s.currentPositional()
	if n < 1 || n > len(p) {
		return "", false
	}
	return p[n-1], true
}

func (s *ScopeStack) PositionalCount() int { return len(s.currentPositional()) }

func (s *ScopeStack) PositionalAll(joinFirstChar bool) []string {
	return append([]string(nil), s.currentPositional()...)
}

// SetPositional rebinds $1..$N at the global (script) frame — used by the
// top-level "set --" built-in, not by function calls (which push their own
// frame instead).
func (s *ScopeStack) SetPositional(args []string) {
	s.frames[0].positional = args
}

// ExportedEnviron returns "NAME=value" pairs for every exported, set
// variable across all frames (innermost wins), the shape run_external's
// collaborator needs to build a child process environment.
func (s *ScopeStack) ExportedEnviron() []string {
	seen := make(map[string]string)
	order := make([]string, 0)
	for _, f := range s.frames {
		for k, v := range f.vars {
			if !v.exported || !v.set {
				continue
			}
			if _, ok := seen[k]; !ok {
				order = append(order, k)
			}
			seen[k] = v.value
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+seen[k])
	}
	return out
}
