package cli

import (
	"github.com/spf13/cobra"

	"github.com/marcelocantos/neoshell/internal/mcpserver"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			return mcpserver.New(eng, a.version).Serve(cmd.Context(), a.stdin, a.stdout)
		},
	}
}
