// Package engine classifies command lines and dispatches each one to the
// matching executor: a shell or argv process, a pipeline, a redirect, or a
// background launch. Every command-attributable outcome comes back as a
// Result; only infrastructure failures are returned as errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/marcelocantos/neoshell/internal/audit"
	"github.com/marcelocantos/neoshell/internal/pipeline"
	"github.com/marcelocantos/neoshell/internal/rules"
	"github.com/marcelocantos/neoshell/internal/workspace"
)

// DefaultShell interprets Execution commands and background launches.
const DefaultShell = "/bin/sh"

// Recorder receives one record per dispatched command. *audit.Logger
// satisfies it.
type Recorder interface {
	Log(audit.Record) error
}

// Options configure an Engine. The zero value runs commands through
// DefaultShell in the current directory with no timeout.
type Options struct {
	Workspace string        // cwd for every process and file operation; "" = "."
	Shell     string        // "" = DefaultShell
	NoShell   bool          // execute argv directly; no interpreter is ever spawned
	Timeout   time.Duration // bounds each synchronous run; 0 = none
	Env       []string      // nil inherits the caller's environment
	Guard     *rules.RuleSet
	Recorder  Recorder
	Logger    *slog.Logger
}

// Engine dispatches commands. It is safe for concurrent use.
type Engine struct {
	shell    string // "" when NoShell
	timeout  time.Duration
	guard    *rules.RuleSet
	recorder Recorder
	log      *slog.Logger
	ws       *workspace.Dir
	run      pipeline.Options
	launcher *Launcher
}

// New prepares the workspace and returns a ready Engine.
func New(opts Options) (*Engine, error) {
	dir := opts.Workspace
	if dir == "" {
		dir = "."
	}
	ws, err := workspace.Open(dir)
	if err != nil {
		return nil, newError(WorkspaceUnavailable, "workspace unavailable", err)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	shell := opts.Shell
	if shell == "" {
		shell = DefaultShell
	}
	if opts.NoShell {
		shell = ""
	}

	run := pipeline.Options{Dir: ws.Path(), Env: opts.Env}
	return &Engine{
		shell:    shell,
		timeout:  opts.Timeout,
		guard:    opts.Guard,
		recorder: opts.Recorder,
		log:      log,
		ws:       ws,
		run:      run,
		launcher: newLauncher(shell, run, log),
	}, nil
}

// Workspace returns the directory commands run in.
func (e *Engine) Workspace() *workspace.Dir { return e.ws }

// Jobs lists background processes launched by this engine that are still
// running.
func (e *Engine) Jobs() []Handle { return e.launcher.Running() }

// Dispatch classifies req once, routes it to exactly one executor, and
// returns the uniform result. The returned error is non-nil only for
// engine-level failures (*Error).
func (e *Engine) Dispatch(ctx context.Context, req Request) (*Result, error) {
	raw := strings.TrimSpace(req.Command)
	kind, desc := Classify(raw, req.Background)
	res := &Result{Kind: kind, Description: desc, ExitCode: -1}

	if kind == Empty {
		res.Failure = EmptyInput
		res.Notice = "no command entered"
		return res, nil
	}
	e.log.Debug("dispatch", "kind", kind.Slug(), "command", raw)

	stages := guardStages(raw)
	if e.guard != nil {
		err := e.guard.Check(rules.Command{Kind: kind.Slug(), Line: raw, Stages: stages})
		var deny *rules.DenyError
		switch {
		case errors.As(err, &deny):
			e.log.Info("command denied", "rule", deny.Rule, "reason", deny.Reason)
			res.Failure = Denied
			res.Stderr = deny.Error() + "\n"
			e.record(raw, stages, res)
			return res, nil
		case err != nil:
			return nil, newError(GuardFailed, "guard check failed", err)
		}
	}

	// A pipe or redirect asked to run in the background keeps its kind but
	// is launched whole, detached, through the shell. Without a shell the
	// launcher rejects it as a syntax error.
	background := req.Background || strings.HasSuffix(raw, pipeline.OpBackground)
	if kind == Background || background {
		e.launch(raw, res)
	} else {
		e.runSync(ctx, kind, raw, res)
	}
	e.record(raw, stages, res)
	return res, nil
}

// launch hands raw to the background launcher. Elapsed stays zero because
// nothing is waited for.
func (e *Engine) launch(raw string, res *Result) {
	h, err := e.launcher.Launch(raw)
	if err != nil {
		res.Failure = failureFor(err)
		res.Stderr = err.Error() + "\n"
		return
	}
	res.PID = h.PID
	res.ExitCode = 0
	res.Notice = fmt.Sprintf("background process started (pid %d)", h.PID)
}

func (e *Engine) runSync(ctx context.Context, kind OperationKind, raw string, res *Result) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		out  *pipeline.Outcome
		plan *pipeline.Plan
	)
	start := time.Now()
	if kind == Execution && e.shell != "" {
		// The shell sees the whole line, so operators the engine does not
		// model (&&, ;, $VAR, globs) keep working.
		out = pipeline.RunPipeline(ctx, [][]string{{e.shell, "-c", raw}}, e.run)
	} else {
		var err error
		plan, err = pipeline.Parse(raw)
		if err != nil {
			res.Failure = ParseError
			res.Stderr = err.Error() + "\n"
			return
		}
		out = e.execute(ctx, plan)
	}
	res.Elapsed = time.Since(start)

	res.Stdout = string(out.Stdout)
	res.Stderr = string(out.Stderr)
	res.ExitCode = out.ExitCode
	res.Failure = failureFor(out.Err)
	if res.Failure == None && plan == nil && out.ExitCode == pipeline.ExitNotFound {
		res.Failure = CommandNotFound
	}

	switch res.Failure {
	case Timeout:
		e.log.Warn("command timed out", "command", raw, "timeout", e.timeout)
		res.Stderr += fmt.Sprintf("command timed out after %s\n", e.timeout)
	case Canceled:
		res.Stderr += "command canceled\n"
	case None:
		if plan != nil && plan.RedirectOut != "" {
			verb := "written to"
			if plan.Mode == pipeline.Append {
				verb = "appended to"
			}
			res.Notice = fmt.Sprintf("output %s %s", verb, plan.RedirectOut)
		}
	}
}

// execute hands a parsed plan to the executor matching its shape.
func (e *Engine) execute(ctx context.Context, plan *pipeline.Plan) *pipeline.Outcome {
	single := len(plan.Stages) == 1
	switch {
	case !plan.Redirected():
		return pipeline.RunPipeline(ctx, plan.Stages, e.run)
	case single && plan.RedirectIn == "":
		return pipeline.RunRedirected(ctx, plan.Stages[0], plan.RedirectOut, plan.Mode, e.run)
	case single && plan.RedirectOut == "":
		return pipeline.RunInput(ctx, plan.Stages[0], plan.RedirectIn, e.run)
	default:
		return pipeline.Run(ctx, plan, e.run)
	}
}

func (e *Engine) record(raw string, stages [][]string, res *Result) {
	if e.recorder == nil {
		return
	}
	programs := make([]string, 0, len(stages))
	for _, argv := range stages {
		if len(argv) > 0 {
			programs = append(programs, argv[0])
		}
	}
	failure := ""
	if res.Failure != None {
		failure = res.Failure.String()
	}
	err := e.recorder.Log(audit.Record{
		Command:  raw,
		Kind:     res.Kind.Slug(),
		Programs: programs,
		ExitCode: res.ExitCode,
		Failure:  failure,
		PID:      res.PID,
		Duration: res.Elapsed,
		Cwd:      e.ws.Path(),
	})
	if err != nil {
		e.log.Warn("audit log write failed", "err", err)
	}
}

// failureFor maps an executor error onto a Failure.
func failureFor(err error) Failure {
	if err == nil {
		return None
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, pipeline.ErrSyntax), errors.Is(err, pipeline.ErrEmptyStage):
		return ParseError
	}

	var rerr *pipeline.RedirectError
	if errors.As(err, &rerr) {
		if rerr.Input() && errors.Is(err, fs.ErrNotExist) {
			return FileNotFound
		}
		return IOError
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return CommandNotFound
	}
	return StartFailed
}

// guardStages makes a best-effort split of raw into argument vectors for the
// guard. Operators end a stage and the word after a redirect is dropped.
// Lines the lexer rejects yield no stages; the guard still sees the raw line.
func guardStages(raw string) [][]string {
	toks, err := pipeline.Lex(raw)
	if err != nil {
		return nil
	}
	var (
		stages [][]string
		cur    []string
		skip   bool
	)
	for _, tok := range toks {
		switch {
		case tok.Kind == pipeline.TokWord:
			if skip {
				skip = false
				continue
			}
			cur = append(cur, tok.Text)
		case tok.Kind == pipeline.TokPipe || tok.Kind == pipeline.TokBackground:
			if len(cur) > 0 {
				stages = append(stages, cur)
			}
			cur = nil
		default:
			skip = true
		}
	}
	if len(cur) > 0 {
		stages = append(stages, cur)
	}
	return stages
}
