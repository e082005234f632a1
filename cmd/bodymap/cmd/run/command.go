// Package run implements the run command.
package run

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/build"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/compare"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/daily"
	"github.com/agentstation/bodymap/internal/cmd/alerts"
	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/cmd/globals"
	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/provenance"
)

// NewCommand creates the run command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		pipeline *globals.PipelineFlags
		sinks    *globals.SinkFlags
		watch    time.Duration
	)

	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Build, compare and aggregate in one pass",
		Long: `Run scans the raw directory once and performs build, compare and daily
over that scan. With --watch it repeats every interval until interrupted,
logging each run instead of printing tables.`,
		Example: `  bodymap run
  bodymap run --watch 1h --store --metrics-file /var/lib/node_exporter/bodymap.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			if cmd.Flags().Changed("watch") {
				logWatch(client, app)
				return client.Watch(ctx, watch)
			}

			result, err := client.Run(ctx)
			if err != nil {
				return err
			}
			return Print(cmd, app, result)
		},
	}

	pipeline = globals.AddPipelineFlags(cmd)
	sinks = globals.AddSinkFlags(cmd)
	cmd.Flags().DurationVar(&watch, "watch", 0, "Repeat the run at this interval until interrupted")

	return cmd
}

// logWatch reports the progress of a watch loop through the logger.
func logWatch(client bodymap.Client, app application.Application) {
	logger := app.Logger()
	client.OnFile(func(e ingest.Event) {
		if e.Status == ingest.StatusError {
			logger.Warn().Str("file", e.File).Str("error", e.Error).Msg("File failed")
		}
	})
	client.OnConflict(func(c provenance.Conflict) {
		logger.Debug().Str("record_id", c.RecordID).Strs("fields", c.Fields).Msg("Conflict resolved")
	})
}

// Print renders the daily averages and one status line per stage.
func Print(cmd *cobra.Command, app application.Application, result *bodymap.RunResult) error {
	format := output.DetectFormat(app.OutputFormat())
	if format == output.FormatJSON || format == output.FormatYAML {
		if err := output.NewFormatter(format).Format(cmd.OutOrStdout(), report(result)); err != nil {
			return err
		}
	} else {
		table := output.DailyToTableData(result.Daily.Days, format == output.FormatWide)
		if err := output.Render(cmd.OutOrStdout(), format, table, nil); err != nil {
			return err
		}
	}
	if app.Quiet() {
		return nil
	}

	w := alerts.NewWriter(cmd.ErrOrStderr(), output.FormatTable, !globals.Parse(cmd).NoColor)
	for _, a := range []*alerts.Alert{
		build.Summary(result.Build),
		compare.Summary(result.Compare),
		daily.Summary(result.Daily),
	} {
		if err := w.Write(a); err != nil {
			return err
		}
	}
	return nil
}

type runReport struct {
	RunID      string   `json:"run_id" yaml:"run_id"`
	Summary    string   `json:"summary" yaml:"summary"`
	Comparison any      `json:"comparison" yaml:"comparison"`
	Daily      any      `json:"daily" yaml:"daily"`
	Artifacts  []string `json:"artifacts" yaml:"artifacts"`
}

func report(result *bodymap.RunResult) runReport {
	artifacts := append([]string{}, result.Build.Artifacts...)
	if result.Compare.Artifact != "" {
		artifacts = append(artifacts, result.Compare.Artifact)
	}
	if result.Daily.Artifact != "" {
		artifacts = append(artifacts, result.Daily.Artifact)
	}
	return runReport{
		RunID:      result.Build.RunID,
		Summary:    result.Build.Consolidation.Summary(),
		Comparison: result.Compare.Summary,
		Daily:      result.Daily.Days,
		Artifacts:  artifacts,
	}
}
