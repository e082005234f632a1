// Package build implements the build command.
package build

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/internal/cmd/alerts"
	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/cmd/globals"
	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
)

// NewCommand creates the build command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		pipeline *globals.PipelineFlags
		sinks    *globals.SinkFlags
		show     string
	)

	cmd := &cobra.Command{
		Use:     "build",
		GroupID: "core",
		Short:   "Consolidate raw exports into the canonical dataset",
		Long: `Build scans the raw directory, pairs CSV and FIT readings of the same
weigh-in, resolves conflicting fields and writes the consolidated dataset,
the conflicts file and the provenance report to the output directory.`,
		Example: `  bodymap build                                  # Build with bodymap.yaml
  bodymap build --raw-dir exports --timezone UTC # Override inputs
  bodymap build --store --publish                # Also upsert and publish
  bodymap build --show conflicts                 # List conflicting measurements`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateView(show); err != nil {
				return err
			}
			cfg, err := app.PipelineConfig()
			if err != nil {
				return err
			}
			pipeline.Apply(cmd, cfg)

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			client, err := app.Client(ctx, cfg, sinks.Sinks())
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Build(ctx)
			if err != nil {
				return err
			}
			return Print(cmd, app, result, show)
		},
	}

	cmd.Flags().StringVar(&show, "show", ViewMeasurements,
		"What to print: measurements, conflicts, files")

	pipeline = globals.AddPipelineFlags(cmd)
	sinks = globals.AddSinkFlags(cmd)

	return cmd
}

// Views of a build result.
const (
	ViewMeasurements = "measurements"
	ViewConflicts    = "conflicts"
	ViewFiles        = "files"
)

// Print renders one view of a build and a status line.
func Print(cmd *cobra.Command, app application.Application, result *bodymap.BuildResult, view string) error {
	format := output.DetectFormat(app.OutputFormat())

	var (
		table output.Data
		raw   any
	)
	if err := validateView(view); err != nil {
		return err
	}
	switch view {
	case ViewMeasurements, "":
		ms := result.Measurements()
		table, raw = output.MeasurementsToTableData(ms, format == output.FormatWide), ms
	case ViewConflicts:
		table, raw = output.ConflictsToTableData(result.Provenance), result.Provenance.Conflicts
	case ViewFiles:
		table, raw = output.EventsToTableData(result.Batch.Events), result.Batch.Events
	}

	if err := output.Render(cmd.OutOrStdout(), format, table, raw); err != nil {
		return err
	}
	if app.Quiet() {
		return nil
	}
	return alerts.NewWriter(cmd.ErrOrStderr(), output.FormatTable, !globals.Parse(cmd).NoColor).
		Write(Summary(result))
}

// Summary describes a build as a status alert.
func Summary(result *bodymap.BuildResult) *alerts.Alert {
	res := result.Consolidation
	alert := alerts.NewSuccess(res.Summary())
	if !res.IsSuccess() {
		alert.Level = alerts.LevelWarning
	}
	alert.WithDetails(fmt.Sprintf("run: %s", result.RunID))
	if len(result.Artifacts) > 0 {
		alert.WithDetails(fmt.Sprintf("wrote %d files", len(result.Artifacts)))
	}
	if result.Stored > 0 {
		alert.WithDetails(fmt.Sprintf("stored %d rows", result.Stored))
	}
	if result.Published > 0 {
		alert.WithDetails(fmt.Sprintf("published %d messages", result.Published))
	}
	return alert
}

func validateView(view string) error {
	switch view {
	case ViewMeasurements, ViewConflicts, ViewFiles, "":
		return nil
	}
	return errors.NewValidationError("show", view, "must be one of: measurements, conflicts, files")
}
