package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Exit codes reported for stages that never ran, following shell convention.
const (
	ExitNotFound    = 127
	ExitCannotStart = 126
)

// waitDelay bounds how long Wait keeps draining output after the process
// has exited or been killed, in case a grandchild still holds the pipe.
const waitDelay = 2 * time.Second

// Options control where and how stage processes are spawned.
type Options struct {
	Dir string   // working directory; relative redirect paths resolve here
	Env []string // nil inherits the engine's environment
}

// Resolve returns path as seen from the working directory.
func (o Options) Resolve(path string) string {
	if o.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.Dir, path)
}

// StageError attributes a failure to one stage of a pipeline.
type StageError struct {
	Index int    // zero-based stage index
	Name  string // argv[0], "" for an empty stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("stage %d: %v", e.Index+1, e.Err)
	}
	return fmt.Sprintf("stage %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RedirectError reports a redirect target or source that could not be opened.
type RedirectError struct {
	Op   string // OpRedirectIn, OpRedirectOut or OpAppendOut
	Path string
	Err  error
}

// Input reports whether the failing redirect was the input source.
func (e *RedirectError) Input() bool { return e.Op == OpRedirectIn }

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, pathCause(e.Err))
}

func (e *RedirectError) Unwrap() error { return e.Err }

// Outcome is what a run produced. Stdout holds only the last stage's output
// (empty when it went to a file); Stderr merges every stage's error stream
// plus the engine's own per-stage diagnostics.
type Outcome struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int   // last stage's status; -1 if it never ran
	Err      error // first failure not expressed by an exit status, or ctx error
}

// syncBuffer lets several stage processes share one stderr sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// RunPipeline runs stages with each stage's stdout wired to the next
// stage's stdin, and captures the final stage's output.
func RunPipeline(ctx context.Context, stages [][]string, opts Options) *Outcome {
	return Run(ctx, &Plan{Stages: stages}, opts)
}

// RunRedirected runs argv with stdout bound to path, opened per mode.
// Stderr is captured in the outcome.
func RunRedirected(ctx context.Context, argv []string, path string, mode WriteMode, opts Options) *Outcome {
	if len(argv) == 0 {
		return syntaxOutcome(fmt.Errorf("%w: missing command before %q", ErrSyntax, mode.Operator()))
	}
	return Run(ctx, &Plan{Stages: [][]string{argv}, RedirectOut: path, Mode: mode}, opts)
}

// RunInput runs argv with stdin read from path and captures both output
// streams. A missing path is reported in the outcome, not run.
func RunInput(ctx context.Context, argv []string, path string, opts Options) *Outcome {
	if len(argv) == 0 {
		return syntaxOutcome(fmt.Errorf("%w: missing command before %q", ErrSyntax, OpRedirectIn))
	}
	return Run(ctx, &Plan{Stages: [][]string{argv}, RedirectIn: path}, opts)
}

func syntaxOutcome(err error) *Outcome {
	return &Outcome{Stderr: []byte(err.Error() + "\n"), ExitCode: -1, Err: err}
}

// Run executes a plan. Redirect files are opened before any stage starts
// and closed on every return path. Stages run concurrently as OS processes
// joined by OS pipes; every started stage is waited on.
func Run(ctx context.Context, p *Plan, opts Options) *Outcome {
	out := &Outcome{ExitCode: -1}
	var (
		stdout bytes.Buffer
		stderr syncBuffer
		stdin  io.Reader
		sink   io.Writer = &stdout
	)
	finish := func() *Outcome {
		out.Stdout = stdout.Bytes()
		out.Stderr = stderr.Bytes()
		return out
	}

	if p.RedirectIn != "" {
		f, err := os.Open(opts.Resolve(p.RedirectIn))
		if err != nil {
			out.Err = &RedirectError{Op: OpRedirectIn, Path: p.RedirectIn, Err: err}
			fmt.Fprintln(&stderr, out.Err)
			return finish()
		}
		defer f.Close()
		stdin = f
	}

	if p.RedirectOut != "" {
		f, err := os.OpenFile(opts.Resolve(p.RedirectOut), p.Mode.openFlags(), 0o644)
		if err != nil {
			out.Err = &RedirectError{Op: p.Mode.Operator(), Path: p.RedirectOut, Err: err}
			fmt.Fprintln(&stderr, out.Err)
			return finish()
		}
		defer f.Close()
		sink = f
	}

	runStages(ctx, p.Stages, opts, stdin, sink, &stderr, out)
	return finish()
}

func runStages(ctx context.Context, stages [][]string, opts Options, stdin io.Reader, sink io.Writer, stderr io.Writer, out *Outcome) {
	n := len(stages)

	// Create N-1 OS pipes between N stages.
	type pipeEnd struct {
		r, w *os.File
	}
	pipes := make([]pipeEnd, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			for _, pe := range pipes[:i] {
				pe.r.Close()
				pe.w.Close()
			}
			out.Err = fmt.Errorf("create pipe: %w", err)
			fmt.Fprintln(stderr, out.Err)
			return
		}
		pipes[i] = pipeEnd{r: r, w: w}
	}

	setErr := func(err error) {
		if out.Err == nil {
			out.Err = err
		}
	}

	cmds := make([]*exec.Cmd, n)
	lastStatus := -1
	for i, argv := range stages {
		var segIn io.Reader = stdin
		if i > 0 {
			segIn = pipes[i-1].r
		}
		var segOut io.Writer = sink
		if i < n-1 {
			segOut = pipes[i].w
		}

		if len(argv) == 0 {
			err := &StageError{Index: i, Err: ErrEmptyStage}
			fmt.Fprintln(stderr, err)
			setErr(err)
		} else {
			cmd := command(ctx, argv, opts)
			cmd.Stdin = segIn
			cmd.Stdout = segOut
			cmd.Stderr = stderr
			if err := cmd.Start(); err != nil {
				serr := &StageError{Index: i, Name: argv[0], Err: err}
				fmt.Fprintln(stderr, serr)
				setErr(serr)
				if i == n-1 {
					lastStatus = startStatus(err)
				}
			} else {
				cmds[i] = cmd
			}
		}

		// The child holds its own copies now. Closing ours lets the next
		// stage see EOF when this one exits (or never started), and lets
		// the previous stage see EPIPE if this one is gone.
		if i > 0 {
			pipes[i-1].r.Close()
		}
		if i < n-1 {
			pipes[i].w.Close()
		}
	}

	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		err := cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			// The stage exited but a child it left behind still holds the
			// output pipe. Its own status stands.
			err = nil
			if st := cmd.ProcessState; st != nil && !st.Success() {
				err = &exec.ExitError{ProcessState: st}
			}
		}
		if i == n-1 {
			lastStatus = exitStatus(err)
		}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			setErr(&StageError{Index: i, Name: stages[i][0], Err: err})
		}
	}
	out.ExitCode = lastStatus

	// A deadline or cancellation explains every other failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.Err = ctxErr
	}
}

func command(ctx context.Context, argv []string, opts Options) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	killGroupOnCancel(cmd)
	return cmd
}

// Detached builds a command that is not tied to any context and whose
// standard streams go to the null device. The caller starts it.
func Detached(argv []string, opts Options) *exec.Cmd {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}
	setProcessGroup(cmd)
	return cmd
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func startStatus(err error) int {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return ExitNotFound
	}
	return ExitCannotStart
}

// pathCause strips the operation and path from an *fs.PathError so messages
// read "out.txt: no such file or directory" rather than repeating the path.
func pathCause(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
