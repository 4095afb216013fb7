package cli

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (a *app) filesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Create, list, show, and delete files in the workspace",
	}
	cmd.AddCommand(
		a.filesCreateCommand(),
		a.filesListCommand(),
		a.filesShowCommand(),
		a.filesRmCommand(),
	)
	return cmd
}

func (a *app) filesCreateCommand() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Write a file; content comes from --content or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.openWorkspace()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("content") {
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
				content = string(data)
			}
			f, err := ws.Create(args[0], content)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "created %s (%s)\n", f.Name, humanSize(f.Size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "file content")
	return cmd
}

func (a *app) filesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List files in the workspace",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.openWorkspace()
			if err != nil {
				return err
			}
			files, err := ws.List()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(a.stdout, "No files yet. Create one with 'neoshell files create' or run a command that writes one (e.g. echo hi > file.txt).")
				return nil
			}

			data := pterm.TableData{{"NAME", "SIZE", "MODIFIED"}}
			for _, f := range files {
				data = append(data, []string{f.Name, humanSize(f.Size), f.Modified.Format("2006-01-02 15:04:05")})
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, table)
			fmt.Fprintln(a.stdout, plural(len(files), "file")+" in "+ws.Path())
			return nil
		},
	}
}

func (a *app) filesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "show <name>",
		Aliases: []string{"cat"},
		Short:   "Print a file's content",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.openWorkspace()
			if err != nil {
				return err
			}
			content, err := ws.Read(args[0])
			if err != nil {
				return err
			}
			io.WriteString(a.stdout, content)
			return nil
		},
	}
}

func (a *app) filesRmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>...",
		Short: "Delete files from the workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.openWorkspace()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := ws.Delete(name); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "deleted %s\n", name)
			}
			return nil
		},
	}
}
