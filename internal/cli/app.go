// Package cli implements the neoshell command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcelocantos/neoshell/internal/audit"
	"github.com/marcelocantos/neoshell/internal/config"
	"github.com/marcelocantos/neoshell/internal/engine"
	"github.com/marcelocantos/neoshell/internal/workspace"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	version string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer

	configPath string
	workspace  string
	timeout    time.Duration
	noShell    bool

	cfg      *config.Config
	exitCode int
}

// Execute runs the command line args and returns the process exit status.
func Execute(ctx context.Context, version string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{version: version, stdin: stdin, stdout: stdout, stderr: stderr}
	if !isTerminal(stderr) {
		pterm.DisableStyling()
	}

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !silent(err) {
			fmt.Fprintf(stderr, "neoshell: %v\n", err)
		}
		if a.exitCode == 0 {
			return 1
		}
	}
	return a.exitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "neoshell",
		Short:         "Classify and run shell command lines",
		Long:          "neoshell classifies a command line (execution, pipe, redirect, background) and runs it with the matching process topology.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.ConfigPath()+")")
	flags.StringVarP(&a.workspace, "workspace", "w", "", "working directory for commands and files")
	flags.DurationVar(&a.timeout, "timeout", 0, "kill synchronous commands after this long")
	flags.BoolVar(&a.noShell, "no-shell", false, "run plain commands as argv instead of through the shell")

	root.AddCommand(
		a.runCommand(),
		a.replCommand(),
		a.filesCommand(),
		a.auditCommand(),
		a.serveCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.workspace != "" {
		cfg.Workspace = a.workspace
	}
	if a.timeout > 0 {
		cfg.Timeout = a.timeout.String()
	}
	if a.noShell {
		cfg.ShellDelegation = false
	}
	a.cfg = cfg
	return nil
}

func (a *app) logger() *slog.Logger {
	level, _ := a.cfg.Level()
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine builds an engine from the loaded config. The audit log is
// best-effort: if it cannot be opened the engine runs without it.
func (a *app) newEngine() (*engine.Engine, error) {
	log := a.logger()
	guard, err := a.cfg.BuildGuard()
	if err != nil {
		return nil, err
	}
	timeout, _ := a.cfg.TimeoutDuration()

	opts := engine.Options{
		Workspace: a.cfg.Workspace,
		Shell:     a.cfg.Shell,
		NoShell:   !a.cfg.ShellDelegation,
		Timeout:   timeout,
		Guard:     guard,
		Logger:    log,
	}
	if a.cfg.Audit.Path != "" {
		l, err := audit.NewLogger(a.cfg.Audit.Path)
		if err != nil {
			log.Warn("audit log disabled", "err", err)
		} else {
			opts.Recorder = l
		}
	}
	return engine.New(opts)
}

func (a *app) openWorkspace() (*workspace.Dir, error) {
	return workspace.Open(a.cfg.Workspace)
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the neoshell version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "neoshell %s\n", a.version)
		},
	}
}

// exitError sets the process exit status without printing anything more.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// fail records code as the exit status and stops command execution.
func (a *app) fail(code int) error {
	a.exitCode = code
	return exitError(code)
}

// silent reports whether err only carries an exit status.
func silent(err error) bool {
	var e exitError
	return errors.As(err, &e)
}

// isTerminal reports whether stream is a terminal. Anything other than an
// *os.File is not.
func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
