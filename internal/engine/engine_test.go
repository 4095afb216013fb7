package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcelocantos/neoshell/internal/audit"
	"github.com/marcelocantos/neoshell/internal/rules"
)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Workspace == "" {
		opts.Workspace = t.TempDir()
	}
	e, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func dispatch(t *testing.T, e *Engine, cmd string) *Result {
	t.Helper()
	res, err := e.Dispatch(context.Background(), Request{Command: cmd})
	if err != nil {
		t.Fatalf("Dispatch(%q): %v", cmd, err)
	}
	return res
}

func killAfterTest(t *testing.T, pid int) {
	t.Cleanup(func() {
		if p, err := os.FindProcess(pid); err == nil {
			_ = p.Kill()
		}
	})
}

func TestDispatchExecution(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, "echo hello world")
	if res.Kind != Execution || res.Failure != None || !res.OK() {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stdout != "hello world\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.Elapsed <= 0 {
		t.Errorf("elapsed = %v, want > 0", res.Elapsed)
	}
}

func TestDispatchShellOperators(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, "true && echo yes; echo $((1+2))")
	if res.Kind != Execution {
		t.Fatalf("kind = %s", res.Kind)
	}
	if res.Stdout != "yes\n3\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestDispatchLeftoverChildHoldsOutput(t *testing.T) {
	// The shell exits at once but its backgrounded sleep keeps stdout open
	// past the executor's wait delay.
	for _, tt := range []struct {
		line string
		code int
	}{
		{"sleep 3 & echo hi", 0},
		{"sleep 3 & echo hi; exit 4", 4},
	} {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			e := newEngine(t, Options{})
			res := dispatch(t, e, tt.line)
			if res.Failure != None {
				t.Fatalf("failure = %s, stderr %q", res.Failure, res.Stderr)
			}
			if res.ExitCode != tt.code || res.Stdout != "hi\n" {
				t.Errorf("exit %d, stdout %q", res.ExitCode, res.Stdout)
			}
		})
	}
}

func TestDispatchCommandNotFound(t *testing.T) {
	for _, noShell := range []bool{false, true} {
		e := newEngine(t, Options{NoShell: noShell})
		res := dispatch(t, e, "neoshell-no-such-command --flag")
		if res.Failure != CommandNotFound {
			t.Errorf("noShell=%v: failure = %s, want command_not_found", noShell, res.Failure)
		}
		if res.Stderr == "" {
			t.Errorf("noShell=%v: expected stderr", noShell)
		}
	}
}

func TestDispatchPipe(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, `printf "b\na\n" | sort`)
	if res.Kind != Piping || res.Failure != None {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stdout != "a\nb\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "a\nb\n")
	}
	if res.Stderr != "" {
		t.Errorf("unexpected stderr %q", res.Stderr)
	}
}

func TestDispatchTruncateTwice(t *testing.T) {
	e := newEngine(t, Options{})
	for range 2 {
		res := dispatch(t, e, "echo hello > a.txt")
		if res.Kind != OutputRedirect || res.Failure != None {
			t.Fatalf("unexpected result %+v", res)
		}
		if res.Stdout != "" {
			t.Errorf("stdout should be in the file, got %q", res.Stdout)
		}
		if res.Notice != "output written to a.txt" {
			t.Errorf("notice = %q", res.Notice)
		}
	}
	got, err := e.Workspace().Read("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello\n" {
		t.Errorf("a.txt = %q, want %q", got, "hello\n")
	}
}

func TestDispatchAppendTwice(t *testing.T) {
	e := newEngine(t, Options{})
	for range 2 {
		res := dispatch(t, e, "echo hello >> a.txt")
		if res.Kind != AppendRedirect || res.Failure != None {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	got, err := e.Workspace().Read("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello\nhello\n" {
		t.Errorf("a.txt = %q, want %q", got, "hello\nhello\n")
	}
}

func TestDispatchInputRedirect(t *testing.T) {
	e := newEngine(t, Options{})
	if _, err := e.Workspace().Create("in.txt", "b\na\n"); err != nil {
		t.Fatal(err)
	}
	res := dispatch(t, e, "sort < in.txt")
	if res.Kind != InputRedirect || res.Failure != None {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Stdout != "a\nb\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestDispatchInputRedirectMissingFile(t *testing.T) {
	e := newEngine(t, Options{})
	res, err := e.Dispatch(context.Background(), Request{Command: "cat < nope.txt"})
	if err != nil {
		t.Fatalf("missing input must not be an engine error: %v", err)
	}
	if res.Failure != FileNotFound {
		t.Errorf("failure = %s, want file_not_found", res.Failure)
	}
	if res.Stdout != "" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
	if res.Stderr == "" {
		t.Error("expected stderr")
	}
}

func TestDispatchRedirectParseErrors(t *testing.T) {
	e := newEngine(t, Options{})
	tests := []struct {
		cmd  string
		kind OperationKind
		want string
	}{
		{"> out.txt", OutputRedirect, "missing command"},
		{">> out.txt", AppendRedirect, "missing command"},
		{"< in.txt", InputRedirect, "missing command"},
		{"echo hi >", OutputRedirect, "missing file name"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			res := dispatch(t, e, tt.cmd)
			if res.Kind != tt.kind || res.Failure != ParseError {
				t.Fatalf("unexpected result %+v", res)
			}
			if !strings.Contains(res.Stderr, tt.want) {
				t.Errorf("stderr %q does not mention %q", res.Stderr, tt.want)
			}
			if res.ExitCode != -1 {
				t.Errorf("exit code = %d, want -1", res.ExitCode)
			}
		})
	}
	if _, err := os.Stat(e.Workspace().Resolve("out.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("a rejected redirect must not create its target")
	}
}

func TestDispatchEmpty(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, "   ")
	if res.Kind != Empty || res.Failure != EmptyInput || res.Notice == "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestDispatchBackground(t *testing.T) {
	e := newEngine(t, Options{})

	start := time.Now()
	res := dispatch(t, e, "sleep 5 &")
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("background dispatch blocked for %v", elapsed)
	}
	if res.Kind != Background || res.Failure != None {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.PID <= 0 {
		t.Fatalf("pid = %d, want > 0", res.PID)
	}
	killAfterTest(t, res.PID)
	if res.Elapsed != 0 || res.Stdout != "" {
		t.Errorf("background result should carry no timing or output: %+v", res)
	}

	jobs := e.Jobs()
	if len(jobs) != 1 || jobs[0].PID != res.PID || jobs[0].Command != "sleep 5" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestDispatchBackgroundFlag(t *testing.T) {
	e := newEngine(t, Options{NoShell: true})
	res, err := e.Dispatch(context.Background(), Request{Command: "sleep 5", Background: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Background || res.PID <= 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	killAfterTest(t, res.PID)
}

func TestDispatchBackgroundIsReaped(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, "true &")
	if res.PID <= 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(e.Jobs()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("finished background process was never removed from the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatchPipeInBackground(t *testing.T) {
	e := newEngine(t, Options{})
	res := dispatch(t, e, "sleep 5 | cat &")
	if res.Kind != Piping || res.PID <= 0 || res.Stdout != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	killAfterTest(t, res.PID)

	direct := newEngine(t, Options{NoShell: true})
	res = dispatch(t, direct, "sleep 5 | cat &")
	if res.Failure != ParseError {
		t.Errorf("without a shell a background pipeline is a parse error, got %+v", res)
	}
}

func TestDispatchNoShell(t *testing.T) {
	e := newEngine(t, Options{NoShell: true})

	res := dispatch(t, e, `echo "a  b" '$HOME'`)
	if res.Stdout != "a  b $HOME\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}

	res = dispatch(t, e, "true && echo hi")
	if res.Failure != ParseError {
		t.Errorf("&& without a shell should be a parse error, got %+v", res)
	}
}

func TestDispatchTimeout(t *testing.T) {
	e := newEngine(t, Options{Timeout: 200 * time.Millisecond})

	start := time.Now()
	res := dispatch(t, e, "sleep 30")
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if res.Failure != Timeout {
		t.Errorf("failure = %s, want timeout", res.Failure)
	}
	if !strings.Contains(res.Stderr, "timed out after 200ms") {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestDispatchCanceled(t *testing.T) {
	e := newEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Dispatch(ctx, Request{Command: "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failure != Canceled {
		t.Errorf("failure = %s, want canceled", res.Failure)
	}
}

func TestDispatchGuard(t *testing.T) {
	guard := rules.Compile(map[string]rules.CommandRule{
		"make": {RejectFlags: []string{"-j"}},
	})
	e := newEngine(t, Options{Guard: guard})

	tests := []struct {
		cmd    string
		denied bool
	}{
		{"echo safe", false},
		{"rm -rf /", true},
		{"echo hi | rm -r .", true},
		{"make -j8 all &", true},
		{"echo make -j8", false},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			res := dispatch(t, e, tt.cmd)
			if got := res.Failure == Denied; got != tt.denied {
				t.Errorf("denied = %v, want %v (%+v)", got, tt.denied, res)
			}
			if tt.denied && (res.PID != 0 || res.Stderr == "") {
				t.Errorf("denied command should not run and should explain: %+v", res)
			}
		})
	}
}

func TestDispatchGuardScriptFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.star")
	if err := os.WriteFile(path, []byte("def check(kind, line, stages):\n    return 1 // 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	script, err := rules.LoadScript(path)
	if err != nil {
		t.Fatal(err)
	}
	guard := rules.NewRuleSet(rules.Hardcoded()...)
	guard.SetScript(script)
	e := newEngine(t, Options{Guard: guard})

	_, err = e.Dispatch(context.Background(), Request{Command: "echo hi"})
	var eerr *Error
	if !errors.As(err, &eerr) || eerr.Kind != GuardFailed {
		t.Fatalf("expected guard_failed engine error, got %v", err)
	}
}

func TestNewWorkspaceUnavailable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(Options{Workspace: filepath.Join(file, "sub")})
	var eerr *Error
	if !errors.As(err, &eerr) || eerr.Kind != WorkspaceUnavailable {
		t.Fatalf("expected workspace_unavailable, got %v", err)
	}
}

func TestDispatchRunsInWorkspace(t *testing.T) {
	e := newEngine(t, Options{})
	if _, err := e.Workspace().Create("marker.txt", "x"); err != nil {
		t.Fatal(err)
	}
	res := dispatch(t, e, "ls")
	if !strings.Contains(res.Stdout, "marker.txt") {
		t.Errorf("ls did not run in the workspace: %q", res.Stdout)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memRecorder) Log(r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func TestDispatchRecords(t *testing.T) {
	rec := &memRecorder{}
	e := newEngine(t, Options{Recorder: rec, Guard: rules.NewRuleSet(rules.Hardcoded()...)})

	dispatch(t, e, "echo hi | tr a-z A-Z")
	dispatch(t, e, "rm -rf /")
	dispatch(t, e, "")

	if len(rec.records) != 2 {
		t.Fatalf("expected 2 records (empty input is not recorded), got %d", len(rec.records))
	}
	first := rec.records[0]
	if first.Kind != "piping" || first.ExitCode != 0 || len(first.Programs) != 2 || first.Programs[1] != "tr" {
		t.Errorf("unexpected first record %+v", first)
	}
	if rec.records[1].Failure != "denied" {
		t.Errorf("unexpected second record %+v", rec.records[1])
	}
}

func TestDispatchAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := audit.NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, Options{Recorder: logger})
	dispatch(t, e, "echo one")
	dispatch(t, e, "echo two > two.txt")

	if err := audit.Verify(path); err != nil {
		t.Fatal(err)
	}
	entries, err := audit.Tail(path, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Kind != "output_redirect" {
		t.Errorf("unexpected entries %+v", entries)
	}
}
