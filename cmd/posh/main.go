// Command posh is a POSIX-style shell: interactive REPL, script
// interpreter, or single-command (-c) runner, built on internal/lexer,
// internal/parser, internal/expander, and internal/executor. Grounded on
// the teacher's cli/main.go: a cobra root command wired straight to the
// lex → parse → execute pipeline, with SIGINT and SIGTERM caught so that
// they do not end the shell process.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aledsdavies/posh/internal/ast"
	"github.com/aledsdavies/posh/internal/config"
	"github.com/aledsdavies/posh/internal/executor"
	"github.com/aledsdavies/posh/internal/parser"
	"github.com/aledsdavies/posh/internal/posixlog"
	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cCommand string
		debug    bool
		noExec   bool
		errExit  bool
		xtrace   bool
		noUnset  bool
		pipeFail bool
	)

	rootCmd := &cobra.Command{
		Use:           "posh [script] [args...]",
		Short:         "A POSIX-style command shell",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var scriptPath string
			var rest []string
			if cCommand == "" && len(args) > 0 {
				scriptPath = args[0]
				rest = args[1:]
			} else {
				rest = args
			}

			cfg, err := config.Load(rest, cCommand, scriptPath, debug, noExec, errExit, xtrace, noUnset, pipeFail)
			if err != nil {
				return err
			}

			status, runErr := runShell(cfg)
			exitStatus = status
			return runErr
		},
	}

	rootCmd.Flags().StringVarP(&cCommand, "command", "c", "", "execute the given command string")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&noExec, "noexec", "n", false, "read commands but do not execute them")
	rootCmd.Flags().BoolVarP(&errExit, "errexit", "e", false, "exit immediately on a non-zero command status")
	rootCmd.Flags().BoolVarP(&xtrace, "xtrace", "x", false, "print commands before executing them")
	rootCmd.Flags().BoolVarP(&noUnset, "nounset", "u", false, "treat unset variable references as an error")
	rootCmd.Flags().BoolVar(&pipeFail, "pipefail", false, "pipeline status is the first non-zero stage's, not the last's")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "posh: %v\n", err)
		if exitStatus == 0 {
			exitStatus = 1
		}
	}
	return exitStatus
}

// exitStatus carries the shell's final status out of cobra's RunE, which
// only distinguishes error/no-error — the actual POSIX exit code is
// orthogonal to whether RunE itself returned an error.
var exitStatus int

// newCancellableContext registers for SIGINT/SIGTERM, so those signals no
// longer end the shell process, and cancels the returned context on the
// first one. runShell keeps only the cancel function: nothing watches the
// context, so no running command is stopped through it. An external child
// killed by a signal reports 128 plus the signal number as its status.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func runShell(cfg *config.Config) (int, error) {
	logger := posixlog.New(cfg.Debug)
	logger.Debug("starting shell", "mode", cfg.Mode, "script", cfg.ScriptPath)

	state := executor.NewShellState(cfg.Environ, scriptName(cfg), cfg.Args[1:])
	state.Opts = executor.Options{
		ErrExit:  cfg.ErrExit,
		NoExec:   cfg.NoExec,
		XTrace:   cfg.XTrace,
		NoUnset:  cfg.NoUnset,
		PipeFail: cfg.PipeFail,
	}

	_, cancel := newCancellableContext()
	defer cancel()

	ex := executor.New(state, executor.OSRunner{}, os.Stdin, os.Stdout, os.Stderr)

	switch cfg.Mode {
	case config.ModeCommandString:
		return runProgram(ex, cfg.CommandString)
	case config.ModeScript:
		data, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return 1, err
		}
		return runProgram(ex, string(data))
	default:
		return runInteractive(ex, cfg)
	}
}

func scriptName(cfg *config.Config) string {
	if len(cfg.Args) == 0 {
		return "posh"
	}
	return cfg.Args[0]
}

// runProgram parses input to completion (script and -c modes don't need
// resumable prompting — an incomplete program here is just a syntax error).
func runProgram(ex *executor.Executor, input string) (int, error) {
	list, err := parser.Parse(input)
	if err != nil {
		printShellErr(err)
		return 2, nil
	}
	return runList(ex, list)
}

// runInteractive implements spec §6.1's PS1/PS2 prompting loop: each
// completed program is parsed and run immediately; an incomplete one
// continues accumulating under the PS2 prompt (ResumableParser.Feed's
// NeedsMore signal).
func runInteractive(ex *executor.Executor, cfg *config.Config) (int, error) {
	rp := parser.NewResumableParser()
	in := bufio.NewReader(os.Stdin)
	status := 0

	prompt := cfg.PS1
	for {
		fmt.Fprint(os.Stderr, prompt)
		line, err := in.ReadString('\n')
		if line == "" && err != nil {
			break // EOF with no pending input: exit the shell
		}

		result := rp.Feed(line)
		switch {
		case result.NeedsMore:
			prompt = cfg.PS2
			continue
		case result.Err != nil:
			printShellErr(result.Err)
			status = 2
			prompt = cfg.PS1
		default:
			s, runErr := runList(ex, result.Program)
			status = s
			if runErr != nil {
				printShellErr(runErr)
			}
			prompt = cfg.PS1
		}

		if err != nil {
			break // EOF after a final complete line
		}
	}
	return status, nil
}

func runList(ex *executor.Executor, list *ast.List) (int, error) {
	status, err := ex.Run(list)
	if err != nil {
		if se, ok := err.(*shellerr.ShellError); ok {
			printShellErr(se)
			return 1, nil
		}
		return status, err
	}
	return status, nil
}

func printShellErr(err error) {
	fmt.Fprintf(os.Stderr, "posh: %v\n", err)
}
