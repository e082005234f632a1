// Package compare implements the compare command.
package compare

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

// NewCommand creates the compare command.
func NewCommand(app application.Application) *cobra.Command {
	var pipeline *globals.PipelineFlags

	cmd := &cobra.Command{
		Use:     "compare",
		GroupID: "core",
		Short:   "Compare the CSV and FIT exports of each period",
		Long: `Compare pairs each CSV export with the FIT export of the same period
and reports readings present in only one of them, field mismatches and the
mean absolute weight difference. The summary is written to the output
directory.`,
		Example: `  bodymap compare
  bodymap compare --tolerance-seconds 120 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.PipelineConfig()
			if err != nil {
				return err
			}
			pipeline.Apply(cmd, cfg)

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			client, err := app.Client(ctx, cfg, application.Sinks{})
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Compare(ctx)
			if err != nil {
				return err
			}
			return Print(cmd, app, result)
		},
	}

	pipeline = globals.AddPipelineFlags(cmd)

	return cmd
}

// Print renders the per-period results and a status line.
func Print(cmd *cobra.Command, app application.Application, result *bodymap.CompareResult) error {
	format := output.DetectFormat(app.OutputFormat())
	table := output.ComparisonToTableData(result.Results)
	if err := output.Render(cmd.OutOrStdout(), format, table, result.Results); err != nil {
		return err
	}
	if app.Quiet() {
		return nil
	}
	return alerts.NewWriter(cmd.ErrOrStderr(), output.FormatTable, !globals.Parse(cmd).NoColor).
		Write(Summary(result))
}

// Summary describes a comparison as a status alert.
func Summary(result *bodymap.CompareResult) *alerts.Alert {
	s := result.Summary
	alert := alerts.NewSuccess(fmt.Sprintf("Compared %d file pairs", s.Paired))
	if s.Pairs == 0 {
		alert = alerts.NewWarning("No CSV or FIT exports to compare")
	}
	alert.WithDetails(fmt.Sprintf("matched: %d, csv only: %d, fit only: %d", s.Both, s.TabularOnly, s.BinaryOnly))
	if s.TabularOnlyFiles+s.BinaryOnlyFiles > 0 {
		alert.WithDetails(fmt.Sprintf("unpaired files: %d csv, %d fit", s.TabularOnlyFiles, s.BinaryOnlyFiles))
	}
	if s.WeightMAE != nil {
		alert.WithDetails(fmt.Sprintf("weight MAE: %.3f kg", *s.WeightMAE))
	}
	return alert
}
