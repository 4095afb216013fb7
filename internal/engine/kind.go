package engine

import (
	"fmt"
	"strings"

	"github.com/marcelocantos/neoshell/internal/pipeline"
)

// OperationKind is the category a command line falls into. It selects the
// executor that runs it.
type OperationKind int

const (
	Empty OperationKind = iota
	Execution
	Piping
	OutputRedirect
	AppendRedirect
	InputRedirect
	Background
)

var kindInfo = [...]struct {
	slug, label, description string
}{
	Empty:          {"empty", "No Command", "No command entered."},
	Execution:      {"execution", "Process Execution", "Executes a single process and waits for it."},
	Piping:         {"piping", "Piping", "Transfers output of one process as input to another."},
	OutputRedirect: {"output_redirect", "Output Redirection", "Redirects a process's output to a file."},
	AppendRedirect: {"append_redirect", "Append Redirection", "Appends a process's output to a file."},
	InputRedirect:  {"input_redirect", "Input Redirection", "Uses a file as input for a process."},
	Background:     {"background", "Background Process", "Runs a process in the background without blocking."},
}

func (k OperationKind) valid() bool { return k >= Empty && k <= Background }

// String returns the display label, e.g. "Output Redirection".
func (k OperationKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("OperationKind(%d)", int(k))
	}
	return kindInfo[k].label
}

// Description returns a one-sentence explanation for display.
func (k OperationKind) Description() string {
	if !k.valid() {
		return ""
	}
	return kindInfo[k].description
}

// Slug returns the machine-readable name used in logs and JSON.
func (k OperationKind) Slug() string {
	if !k.valid() {
		return "unknown"
	}
	return kindInfo[k].slug
}

func (k OperationKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid operation kind %d", int(k))
	}
	return []byte(k.Slug()), nil
}

func (k *OperationKind) UnmarshalText(b []byte) error {
	for i := range kindInfo {
		if kindInfo[i].slug == string(b) {
			*k = OperationKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown operation kind %q", b)
}

// Classify assigns raw to exactly one kind. The checks run in a fixed order
// and the first match wins, so a line holding several operators gets the
// earliest: "a | b > f" is Piping, and ">>" is never read as ">".
// Quotes are not considered.
func Classify(raw string, background bool) (OperationKind, string) {
	k := classify(raw, background)
	return k, k.Description()
}

func classify(raw string, background bool) OperationKind {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Empty
	case strings.Contains(trimmed, pipeline.OpPipe):
		return Piping
	case strings.Contains(trimmed, pipeline.OpAppendOut):
		return AppendRedirect
	case strings.Contains(trimmed, pipeline.OpRedirectOut):
		return OutputRedirect
	case strings.Contains(trimmed, pipeline.OpRedirectIn):
		return InputRedirect
	case background || strings.HasSuffix(trimmed, pipeline.OpBackground):
		return Background
	default:
		return Execution
	}
}
