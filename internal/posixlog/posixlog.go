// Package posixlog builds the debug-toggled slog.Logger that cmd/posh uses
// for its diagnostics. The lexer, parser, expander and executor packages do
// not log.
package posixlog

import (
	"log/slog"
	"os"
)

// DebugEnvVar is the environment variable that, when non-empty, raises the
// log level from Info to Debug, as the --debug flag does. There are no
// per-stage variables.
const DebugEnvVar = "POSH_DEBUG"

// New builds a text-handler logger writing to stderr, with timestamp and
// level attrs stripped for clean shell-trace output — debug-gated the way
// the teacher's parser/lexer loggers were, generalized to one shared
// constructor instead of one copy per package.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv(DebugEnvVar) != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Nop returns a logger that discards everything, for contexts (tests,
// library embedding) that don't want stderr chatter.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
