package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/usecase/ingest"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync inspections from the external source into the store",
	RunE: withApp(func(cmd *cobra.Command, s *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		full, _ := cmd.Flags().GetBool("full")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		maxPages, _ := cmd.Flags().GetInt("max-pages")

		stats, err := s.Ingest.Run(ctx, ingest.RunInput{
			Full:     full,
			PageSize: pageSize,
			MaxPages: maxPages,
		})
		if err != nil {
			return errs.Wrap(err, "run sync")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(),
			"sync %s done: %d pages, %d records, %d establishments (%d skipped), %d inspections, %d violations, geocode %d/%d, %d record errors\n",
			stats.RunID, stats.Pages, stats.RecordsFetched,
			stats.Establishments, stats.EstablishmentsSkipped,
			stats.InspectionsWritten, stats.ViolationsWritten,
			stats.GeocodeHits, stats.GeocodeHits+stats.GeocodeMisses,
			stats.RecordErrors,
		); err != nil {
			return errs.Wrap(err, "write sync output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("full", false, "Rebuild from the fixed lookback window instead of the watermark")
	syncCmd.Flags().Int("page-size", 0, "Override configured source page size")
	syncCmd.Flags().Int("max-pages", 0, "Override configured source page ceiling")
}
