package executor

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aledsdavies/posh/internal/parser"
)

// catRunner is a ProcessRunner stand-in for external commands: it copies
// stdin to stdout regardless of argv, so pipeline tests exercise the real
// os.Pipe wiring in visitPipeline without depending on $PATH contents.
type catRunner struct{}

func (catRunner) RunExternal(argv []string, env []string, stdin, stdout, stderr *os.File, background bool) (RunResult, error) {
	io.Copy(stdout, stdin)
	return RunResult{PID: 1, Wait: func() (int, error) { return 0, nil }}, nil
}

// envProbeRunner writes the value of one named env var, as seen in the env
// slice RunExternal receives, to stdout — used to assert on exactly what an
// external child process's environment would contain.
type envProbeRunner struct{ key string }

func (p envProbeRunner) RunExternal(argv []string, env []string, stdin, stdout, stderr *os.File, background bool) (RunResult, error) {
	val := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, p.key+"=") {
			val = strings.TrimPrefix(kv, p.key+"=")
		}
	}
	io.WriteString(stdout, val+"\n")
	return RunResult{PID: 1, Wait: func() (int, error) { return 0, nil }}, nil
}

func newTestExecutor() (*Executor, *bytes.Buffer, *bytes.Buffer) {
	state := NewShellState(nil, "test", nil)
	var stdout, stderr bytes.Buffer
	ex := New(state, catRunner{}, strings.NewReader(""), &stdout, &stderr)
	return ex, &stdout, &stderr
}

func runSrc(t *testing.T, ex *Executor, src string) int {
	t.Helper()
	list, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	status, err := ex.Run(list)
	if err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	return status
}

func TestRunSimpleCommandBuiltin(t *testing.T) {
	ex, out, _ := newTestExecutor()
	status := runSrc(t, ex, "echo hello world")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out.String() != "hello world\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "hello world\n")
	}
}

func TestRunAndOrShortCircuit(t *testing.T) {
	ex, out, _ := newTestExecutor()
	status := runSrc(t, ex, "false && echo no || echo yes")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out.String() != "yes\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "yes\n")
	}
}

func TestRunIfElifElse(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, `if false; then echo a; elif true; then echo b; else echo c; fi`)
	if out.String() != "b\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "b\n")
	}
}

func TestRunForLoopExpandsWords(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, "for x in a b c; do echo $x; done")
	if out.String() != "a\nb\nc\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "a\nb\nc\n")
	}
}

func TestRunForBreak(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, "for x in a b c; do echo $x; break; done")
	if out.String() != "a\n" {
		t.Errorf("stdout = %q, want %q (break should stop after the first iteration)", out.String(), "a\n")
	}
}

func TestRunForContinueSkipsRest(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, "for x in a b c; do echo start; continue; echo end; done")
	want := "start\nstart\nstart\n"
	if out.String() != want {
		t.Errorf("stdout = %q, want %q", out.String(), want)
	}
}

func TestRunWhileCaseBreak(t *testing.T) {
	ex, out, _ := newTestExecutor()
	status := runSrc(t, ex, `
n=0
while true; do
  n=$((n+1))
  case $n in
    3) break ;;
  esac
done
echo $n`)
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out.String() != "3\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "3\n")
	}
}

func TestRunCaseFirstMatchWins(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, `x=bar; case $x in foo) echo 1;; bar|baz) echo 2;; *) echo 3;; esac`)
	if out.String() != "2\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "2\n")
	}
}

func TestRunFunctionCallAndReturn(t *testing.T) {
	ex, out, _ := newTestExecutor()
	status := runSrc(t, ex, `
greet() { echo "hi $1"; return 7; }
greet world`)
	if status != 7 {
		t.Errorf("status = %d, want 7", status)
	}
	if out.String() != "hi world\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "hi world\n")
	}
}

func TestRunExitUnwindsAtTopLevel(t *testing.T) {
	ex, out, _ := newTestExecutor()
	status := runSrc(t, ex, `echo before; exit 3; echo after`)
	if status != 3 {
		t.Errorf("status = %d, want 3", status)
	}
	if out.String() != "before\n" {
		t.Errorf("stdout = %q, want %q (exit should skip the rest of the list)", out.String(), "before\n")
	}
}

func TestRunPipelineUsesRunnerForExternalStages(t *testing.T) {
	// The final stage's output is redirected to a real file rather than read
	// back from ex.Stdout directly: when the pipeline's last stage is an
	// external command, its stdout is handed to ProcessRunner as an *os.File
	// (resolveRedirections's opened file, here), sidestepping the
	// asWriteFile goroutine bridge that a plain in-memory io.Writer would
	// need.
	dir := t.TempDir()
	path := dir + "/out.txt"
	ex, _, _ := newTestExecutor()
	runSrc(t, ex, "echo hello | relaystage > "+path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("file contents = %q, want %q (catRunner should relay piped stdin through)", string(data), "hello\n")
	}
}

func TestRunPipelineNegationAndPipeFail(t *testing.T) {
	ex, _, _ := newTestExecutor()
	status := runSrc(t, ex, "! false")
	if status != 0 {
		t.Errorf("'! false' status = %d, want 0", status)
	}

	ex2, out2, _ := newTestExecutor()
	ex2.State.Opts.PipeFail = true
	status2 := runSrc(t, ex2, "false | echo hi")
	if status2 == 0 {
		t.Errorf("pipefail: status = %d, want the first non-zero stage's status", status2)
	}
	if out2.String() != "hi\n" {
		t.Errorf("stdout = %q, want %q", out2.String(), "hi\n")
	}
}

func TestRunAssignmentPrefixScopedToCommand(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, `FOO=bar :; echo after=$FOO`)
	if out.String() != "after=\n" {
		t.Errorf("stdout = %q, want %q (prefix assignment must not leak past its command)", out.String(), "after=\n")
	}
}

func TestRunPrefixAssignmentVisibleToExternalChildEnv(t *testing.T) {
	state := NewShellState(nil, "test", nil)
	var stdout, stderr bytes.Buffer
	ex := New(state, envProbeRunner{key: "FOO"}, strings.NewReader(""), &stdout, &stderr)
	runSrc(t, ex, "FOO=bar externalprobe")
	if stdout.String() != "bar\n" {
		t.Errorf("stdout = %q, want %q (a prefix assignment must reach its command's external child env even though FOO was never exported)", stdout.String(), "bar\n")
	}
}

func TestRunExportMakesVariableVisibleToChildEnv(t *testing.T) {
	ex, _, _ := newTestExecutor()
	runSrc(t, ex, "FOO=bar; export FOO")
	found := false
	for _, kv := range ex.State.Scopes.ExportedEnviron() {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Errorf("ExportedEnviron() = %v, want it to contain FOO=bar", ex.State.Scopes.ExportedEnviron())
	}
}

func TestRunRedirectionWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.txt"
	ex, _, _ := newTestExecutor()
	runSrc(t, ex, "echo redirected > "+path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "redirected\n" {
		t.Errorf("file contents = %q, want %q", string(data), "redirected\n")
	}
}

func TestRunSubshellDoesNotLeakAssignments(t *testing.T) {
	ex, out, _ := newTestExecutor()
	runSrc(t, ex, `(FOO=inner; echo $FOO); echo outer=$FOO`)
	if out.String() != "inner\nouter=\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "inner\nouter=\n")
	}
}

func TestRunNoExecSkipsEverything(t *testing.T) {
	ex, out, _ := newTestExecutor()
	ex.State.Opts.NoExec = true
	status := runSrc(t, ex, "FOO=bar; echo $FOO; exit 9")
	if status != 0 {
		t.Errorf("status = %d, want 0 (noexec must not run exit)", status)
	}
	if out.String() != "" {
		t.Errorf("stdout = %q, want empty (noexec must not run echo or apply FOO=bar)", out.String())
	}
}

func TestRunXTraceWritesExpandedCommandToStderr(t *testing.T) {
	ex, _, errOut := newTestExecutor()
	ex.State.Opts.XTrace = true
	runSrc(t, ex, "FOO=bar echo hi")
	want := "+ FOO=bar echo hi\n"
	if errOut.String() != want {
		t.Errorf("stderr = %q, want %q", errOut.String(), want)
	}
}
