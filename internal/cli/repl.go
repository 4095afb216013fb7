package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/marcelocantos/neoshell/internal/engine"
)

const prompt = "neoshell> "

func (a *app) replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read command lines from stdin and run each one",
		Long: `Repl reads one command line at a time and dispatches it. A trailing &
runs the line in the background. Builtins: jobs (list background processes
still running), exit, quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			return a.repl(cmd, eng)
		},
	}
}

func (a *app) repl(cmd *cobra.Command, eng *engine.Engine) error {
	interactive := isTerminal(a.stdin) && isTerminal(a.stdout)
	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(a.stdout, prompt)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "jobs":
			a.printJobs(eng.Jobs())
			continue
		}

		res, err := eng.Dispatch(cmd.Context(), engine.Request{Command: line})
		if err != nil {
			var eerr *engine.Error
			if errors.As(err, &eerr) && eerr.Kind == engine.WorkspaceUnavailable {
				return err
			}
			fmt.Fprintf(a.stderr, "neoshell: %v\n", err)
			continue
		}
		renderResult(a.stdout, a.stderr, a.stderr, res, false)
		if cmd.Context().Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func (a *app) printJobs(jobs []engine.Handle) {
	if len(jobs) == 0 {
		fmt.Fprintln(a.stdout, "no background jobs")
		return
	}
	now := time.Now()
	for _, h := range jobs {
		age := now.Sub(h.StartedAt).Round(time.Second)
		fmt.Fprintf(a.stdout, "%s  %-8d %s\n",
			pterm.NewStyle(pterm.FgMagenta).Sprintf("%6s", age), h.PID, h.Command)
	}
}
