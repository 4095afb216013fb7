package rules

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxScriptSteps bounds a single check() call so a runaway guard script
// cannot stall dispatch.
const maxScriptSteps = 1_000_000

// Script is a compiled Starlark guard. The file must define
//
//	def check(kind, line, stages): ...
//
// where stages is a list of lists of strings. Returning None, True, or ""
// allows the command; returning a non-empty string denies it with that
// reason, and False denies it with a generic reason.
type Script struct {
	path  string
	check starlark.Callable
}

// LoadScript reads and executes the guard file at path.
func LoadScript(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guard script: %w", err)
	}
	return compileScript(path, src)
}

func compileScript(path string, src []byte) (*Script, error) {
	thread := &starlark.Thread{Name: "guard-load"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, src, nil)
	if err != nil {
		return nil, fmt.Errorf("load guard script %s: %w", path, err)
	}
	globals.Freeze()
	fn, ok := globals["check"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("guard script %s: no check function defined", path)
	}
	return &Script{path: path, check: fn}, nil
}

// Check calls the script's check function. Each call gets its own thread,
// so a Script may be shared between concurrent dispatches.
func (s *Script) Check(cmd Command) error {
	stages := make([]starlark.Value, len(cmd.Stages))
	for i, argv := range cmd.Stages {
		words := make([]starlark.Value, len(argv))
		for j, w := range argv {
			words[j] = starlark.String(w)
		}
		stages[i] = starlark.NewList(words)
	}

	thread := &starlark.Thread{Name: "guard"}
	thread.SetMaxExecutionSteps(maxScriptSteps)
	args := starlark.Tuple{
		starlark.String(cmd.Kind),
		starlark.String(cmd.Line),
		starlark.NewList(stages),
	}
	v, err := starlark.Call(thread, s.check, args, nil)
	if err != nil {
		return fmt.Errorf("guard script %s: %w", s.path, err)
	}

	switch v := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		if v {
			return nil
		}
		return &DenyError{Rule: "script", Reason: "rejected by guard script"}
	case starlark.String:
		if v == "" {
			return nil
		}
		return &DenyError{Rule: "script", Reason: string(v)}
	default:
		return fmt.Errorf("guard script %s: check returned %s, want None, bool or string", s.path, v.Type())
	}
}
