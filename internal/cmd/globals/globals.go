// Package globals provides shared flag structures for CLI commands.
package globals

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/config"
)

// Flags holds the global flags of the root command.
type Flags struct {
	Format  string
	Quiet   bool
	Verbose bool
	NoColor bool
}

// Parse extracts global flags from the command hierarchy.
func Parse(cmd *cobra.Command) *Flags {
	root := cmd
	for root.Parent() != nil {
		root = root.Parent()
	}

	format, _ := root.PersistentFlags().GetString("format")
	quiet, _ := root.PersistentFlags().GetBool("quiet")
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	noColor, _ := root.PersistentFlags().GetBool("no-color")

	return &Flags{
		Format:  format,
		Quiet:   quiet,
		Verbose: verbose,
		NoColor: noColor,
	}
}

// PipelineFlags override configuration values for one command.
type PipelineFlags struct {
	RawDir           string
	ToleranceSeconds int
	Timezone         string
	OutputFormats    []string
	MetricsFile      string
}

// AddPipelineFlags adds the configuration override flags to cmd.
func AddPipelineFlags(cmd *cobra.Command) *PipelineFlags {
	flags := &PipelineFlags{}

	cmd.Flags().StringVar(&flags.RawDir, "raw-dir", "",
		"Directory holding the raw CSV and FIT exports")
	cmd.Flags().IntVar(&flags.ToleranceSeconds, "tolerance-seconds", 0,
		"Maximum distance in seconds between matching readings")
	cmd.Flags().StringVar(&flags.Timezone, "timezone", "",
		"IANA zone for naive CSV timestamps and daily boundaries")
	cmd.Flags().StringSliceVar(&flags.OutputFormats, "output-format", nil,
		"Dataset formats to write: csv, json, yaml, parquet")
	cmd.Flags().StringVar(&flags.MetricsFile, "metrics-file", "",
		"Write Prometheus metrics of the run to this file")

	return flags
}

// Apply copies the flags the user set onto cfg.
func (f *PipelineFlags) Apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("raw-dir") {
		cfg.Sources.RawDir = f.RawDir
	}
	if changed("tolerance-seconds") {
		cfg.Processing.TimestampToleranceSeconds = f.ToleranceSeconds
	}
	if changed("timezone") {
		cfg.Processing.Timezone = f.Timezone
	}
	if changed("output-format") {
		cfg.Output.Formats = append([]string(nil), f.OutputFormats...)
	}
	if changed("metrics-file") {
		cfg.Sinks.MetricsFile = f.MetricsFile
	}
}

// SinkFlags select the optional sinks of a run.
type SinkFlags struct {
	Store   bool
	Publish bool
}

// AddSinkFlags adds --store and --publish to cmd.
func AddSinkFlags(cmd *cobra.Command) *SinkFlags {
	flags := &SinkFlags{}

	cmd.Flags().BoolVar(&flags.Store, "store", false,
		"Upsert measurements into the configured Postgres table")
	cmd.Flags().BoolVar(&flags.Publish, "publish", false,
		"Publish measurements to the configured Kafka topic")

	return flags
}

// Sinks converts the flags for application.Application.Client.
func (f *SinkFlags) Sinks() application.Sinks {
	return application.Sinks{Store: f.Store, Publish: f.Publish}
}
