package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/usecase/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair duplicate inspection rows (dry run by default)",
	RunE: withApp(func(cmd *cobra.Command, s *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		execute, _ := cmd.Flags().GetBool("execute")

		report, err := s.Reconcile.Run(ctx, reconcile.RunInput{Execute: execute})
		if err != nil {
			return errs.Wrap(err, "run reconcile")
		}

		out := cmd.OutOrStdout()
		mode := "dry-run"
		if report.Executed {
			mode = "execute"
		}
		if _, err := fmt.Fprintf(out, "reconcile (%s): %d rows scanned, %d duplicate clusters\n",
			mode, report.RowsScanned, len(report.Clusters)); err != nil {
			return errs.Wrap(err, "write reconcile output")
		}
		for _, cluster := range report.Clusters {
			if _, err := fmt.Fprintf(out, "  %s: keep %d, delete %v\n",
				cluster.ExternalID, cluster.KeptID, cluster.DeletedIDs); err != nil {
				return errs.Wrap(err, "write reconcile output")
			}
		}
		for _, failure := range report.Errors {
			if _, err := fmt.Fprintf(out, "  error: %s\n", failure); err != nil {
				return errs.Wrap(err, "write reconcile output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("execute", false, "Delete duplicates instead of reporting them")
}
