package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit-prices",
		Short: "Report stored price rules that clash with each other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			pairs, err := d.prices.Audit(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range pairs {
				fmt.Fprintf(out, "%d %q <> %d %q\n", p.A.ID, p.A.Description, p.B.ID, p.B.Description)
			}
			if len(pairs) > 0 {
				return fmt.Errorf("%d conflicting price pairs", len(pairs))
			}
			fmt.Fprintln(out, "no conflicts")
			return nil
		},
	}
}
