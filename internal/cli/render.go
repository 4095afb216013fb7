package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/marcelocantos/neoshell/internal/engine"
)

var kindColors = map[engine.OperationKind]pterm.Color{
	engine.Empty:          pterm.FgGray,
	engine.Execution:      pterm.FgBlue,
	engine.Piping:         pterm.FgCyan,
	engine.OutputRedirect: pterm.FgYellow,
	engine.AppendRedirect: pterm.FgGreen,
	engine.InputRedirect:  pterm.FgYellow,
	engine.Background:     pterm.FgMagenta,
}

// badge renders the kind label, e.g. "[Piping]".
func badge(k engine.OperationKind) string {
	return pterm.NewStyle(kindColors[k], pterm.Bold).Sprint("[" + k.String() + "]")
}

// renderHeader writes the classification line:
//
//	[Piping] Transfers output of one process as input to another. (4ms)
func renderHeader(w io.Writer, res *engine.Result) {
	line := badge(res.Kind) + " " + res.Description
	if res.Elapsed > 0 {
		line += pterm.NewStyle(pterm.FgGray).Sprint(" (" + formatElapsed(res.Elapsed) + ")")
	}
	fmt.Fprintln(w, line)
}

// renderResult writes the command's own output to stdout and stderr, and
// the classification, notices, and failure summary to diag.
func renderResult(stdout, stderr, diag io.Writer, res *engine.Result, quiet bool) {
	if !quiet {
		renderHeader(diag, res)
	}
	io.WriteString(stdout, res.Stdout)
	io.WriteString(stderr, res.Stderr)
	if res.Notice != "" && !quiet {
		fmt.Fprintln(diag, pterm.NewStyle(pterm.FgGreen).Sprint(res.Notice))
	}
	if res.Failure != engine.None && res.Failure != engine.EmptyInput {
		fmt.Fprintln(diag, pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("failed: "+res.Failure.String()))
	} else if res.ExitCode > 0 && !quiet {
		fmt.Fprintln(diag, pterm.NewStyle(pterm.FgRed).Sprintf("exit status %d", res.ExitCode))
	}
}

// exitStatus maps a result onto a process exit code.
func exitStatus(res *engine.Result) int {
	switch {
	case res.Failure == engine.EmptyInput:
		return 0
	case res.ExitCode > 0:
		return res.ExitCode
	case res.Failure != engine.None:
		return 1
	default:
		return 0
	}
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(100 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %s", n, word+"s")
}
