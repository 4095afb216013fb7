package pipeline

import (
	"errors"
	"os"
)

// Shell operators recognised by the lexer when they appear outside quotes.
// Every other character belongs to a word.
const (
	OpPipe        = "|"  // stdout of one stage → stdin of the next
	OpRedirectIn  = "<"  // stdin from file (first stage only)
	OpRedirectOut = ">"  // stdout to file, truncating (last stage only)
	OpAppendOut   = ">>" // stdout to file, appending (last stage only)
	OpBackground  = "&"  // run detached (end of line only)
)

// ErrSyntax is wrapped by every error Parse and Lex return.
var ErrSyntax = errors.New("syntax error")

// ErrEmptyStage is reported for a pipeline stage with no words, e.g. "a | | b".
var ErrEmptyStage = errors.New("empty command")

// WriteMode selects how an output redirect opens its target.
type WriteMode int

const (
	Truncate WriteMode = iota // create, or truncate existing content
	Append                    // create, or extend existing content
)

func (m WriteMode) String() string {
	if m == Append {
		return "append"
	}
	return "truncate"
}

// Operator returns the shell operator that selects this mode.
func (m WriteMode) Operator() string {
	if m == Append {
		return OpAppendOut
	}
	return OpRedirectOut
}

func (m WriteMode) openFlags() int {
	if m == Append {
		return os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	return os.O_CREATE | os.O_WRONLY | os.O_TRUNC
}

// Plan is a parsed command line: one or more stages connected by pipes,
// plus optional redirects at either end.
type Plan struct {
	Stages      [][]string // argument vectors in execution order; never empty
	RedirectIn  string     // file bound to the first stage's stdin, "" if none
	RedirectOut string     // file bound to the last stage's stdout, "" if none
	Mode        WriteMode  // how RedirectOut is opened
	Background  bool       // line ended with &
}

// Redirected reports whether either end of the plan is bound to a file.
func (p *Plan) Redirected() bool {
	return p.RedirectIn != "" || p.RedirectOut != ""
}
