package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

var runSummaryOnly bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the KPI pipeline once",
	Long:  "Executes a full snapshot: reads the input sheet, looks up every store, writes the dated worksheets and prints the snapshot as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Pipeline.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("snapshot complete",
			zap.String("snapshot_date", outcome.Snapshot.Date()),
			zap.Int("stores", outcome.Result.Stores),
			zap.Int("enrichment_errors", outcome.Result.EnrichmentErrors),
		)

		return writeOutcome(os.Stdout, outcome, runSummaryOnly)
	},
}

// writeOutcome prints the snapshot, or only the run counters when summary is set.
func writeOutcome(w io.Writer, outcome *model.RunOutcome, summary bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if summary {
		return enc.Encode(outcome.Result)
	}
	return enc.Encode(outcome.Snapshot)
}

func init() {
	runCmd.Flags().BoolVar(&runSummaryOnly, "summary", false, "print run counters instead of the full snapshot")
	rootCmd.AddCommand(runCmd)
}
