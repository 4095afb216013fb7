package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/neoshell/internal/engine"
)

func (a *app) runCommand() *cobra.Command {
	var (
		background bool
		asJSON     bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command line>",
		Short: "Classify and run one command line",
		Long: `Run classifies the command line and runs it with the matching topology.
Words after -- are joined with spaces, so quote operators you want neoshell
rather than your login shell to see:

  neoshell run -- 'printf "b\na\n" | sort'
  neoshell run -- 'echo hello >> notes.txt'
  neoshell run --bg -- sleep 30`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			res, err := eng.Dispatch(cmd.Context(), engine.Request{
				Command:    strings.Join(args, " "),
				Background: background,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				renderResult(a.stdout, a.stderr, a.stderr, res, quiet)
			}
			if code := exitStatus(res); code != 0 {
				return a.fail(code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&background, "bg", "b", false, "run in the background and return its pid")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result record as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the command's own output")
	return cmd
}
