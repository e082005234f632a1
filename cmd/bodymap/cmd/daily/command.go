// Package daily implements the daily command.
package daily

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/internal/cmd/alerts"
	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/cmd/globals"
	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/pkg/logging"
)

// NewCommand creates the daily command.
func NewCommand(app application.Application) *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:     "daily [dataset]",
		GroupID: "core",
		Short:   "Average a consolidated dataset per day",
		Long: `Daily reads a consolidated dataset (csv, json, yaml or parquet) and averages every
measurement field per local calendar day. Without an argument it reads the
dataset written by the last build.`,
		Example: `  bodymap daily
  bodymap daily data/processed/consolidated.csv --timezone Europe/Madrid`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.PipelineConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timezone") {
				cfg.Processing.Timezone = timezone
			}

			var path string
			if len(args) == 1 {
				path = args[0]
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			client, err := app.Client(ctx, cfg, application.Sinks{})
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Daily(ctx, path)
			if err != nil {
				return err
			}
			return Print(cmd, app, result)
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone that defines day boundaries")

	return cmd
}

// Print renders the daily averages and a status line.
func Print(cmd *cobra.Command, app application.Application, result *bodymap.DailyResult) error {
	format := output.DetectFormat(app.OutputFormat())
	table := output.DailyToTableData(result.Days, format == output.FormatWide)
	if err := output.Render(cmd.OutOrStdout(), format, table, result.Days); err != nil {
		return err
	}
	if app.Quiet() {
		return nil
	}
	return alerts.NewWriter(cmd.ErrOrStderr(), output.FormatTable, !globals.Parse(cmd).NoColor).
		Write(Summary(result))
}

// Summary describes the aggregation as a status alert.
func Summary(result *bodymap.DailyResult) *alerts.Alert {
	if len(result.Days) == 0 {
		return alerts.NewWarning("No measurements to aggregate")
	}
	return alerts.NewSuccess(fmt.Sprintf("Aggregated %d days", len(result.Days))).
		WithDetails(fmt.Sprintf("wrote %s", result.Artifact))
}
