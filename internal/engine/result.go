package engine

import (
	"fmt"
	"time"
)

// Request is one command submitted for dispatch.
type Request struct {
	Command    string
	Background bool // run detached even without a trailing &
}

// Failure categorises why a command did not run cleanly. Failures are data:
// they travel inside a Result, never as a Go error.
type Failure int

const (
	None            Failure = iota
	EmptyInput              // blank command, nothing attempted
	ParseError              // malformed operators or quoting
	CommandNotFound         // an executable could not be found
	FileNotFound            // an input redirect source is missing
	Timeout                 // the configured timeout expired
	Canceled                // the caller's context was cancelled
	Denied                  // a guard rule refused the command
	StartFailed             // a process could not be started
	IOError                 // a redirect target could not be opened
)

var failureNames = [...]string{
	None:            "",
	EmptyInput:      "empty_input",
	ParseError:      "parse_error",
	CommandNotFound: "command_not_found",
	FileNotFound:    "file_not_found",
	Timeout:         "timeout",
	Canceled:        "canceled",
	Denied:          "denied",
	StartFailed:     "start_failed",
	IOError:         "io_error",
}

func (f Failure) String() string {
	if f < None || int(f) >= len(failureNames) {
		return fmt.Sprintf("Failure(%d)", int(f))
	}
	if f == None {
		return "none"
	}
	return failureNames[f]
}

func (f Failure) MarshalText() ([]byte, error) {
	if f == None {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

// Result is the uniform record returned for every dispatched command.
// ExitCode is the final stage's status, -1 if it never ran, and 0 once a
// background launch has started. PID is set for background launches only.
// Notice is an acknowledgement shown in place of output.
type Result struct {
	Kind        OperationKind `json:"kind"`
	Description string        `json:"description"`
	Stdout      string        `json:"stdout"`
	Stderr      string        `json:"stderr"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	ExitCode    int           `json:"exit_code"`
	PID         int           `json:"pid,omitempty"`
	Failure     Failure       `json:"failure,omitzero"`
	Notice      string        `json:"notice,omitempty"`
}

// OK reports whether the command ran and exited zero.
func (r *Result) OK() bool {
	return r.Failure == None && r.ExitCode == 0
}
