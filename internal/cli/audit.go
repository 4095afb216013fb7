package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/neoshell/internal/audit"
)

func (a *app) auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the hash-chained audit log",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the audit log's sequence and hash chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Audit.Path == "" {
				return fmt.Errorf("audit log disabled (audit.path is empty)")
			}
			if err := audit.Verify(a.cfg.Audit.Path); err != nil {
				fmt.Fprintf(a.stdout, "audit verification FAILED: %v\n", err)
				return a.fail(1)
			}
			fmt.Fprintln(a.stdout, "audit log integrity verified")
			return nil
		},
	}

	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the last entries of the audit log as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Audit.Path == "" {
				return fmt.Errorf("audit log disabled (audit.path is empty)")
			}
			entries, err := audit.Tail(a.cfg.Audit.Path, n)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, "no audit entries")
				return nil
			}
			enc := json.NewEncoder(a.stdout)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 20, "number of entries")

	cmd.AddCommand(verify, tail)
	return cmd
}
