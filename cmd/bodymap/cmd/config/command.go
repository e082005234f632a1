// Package config implements the config command and its subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap/internal/cmd/alerts"
	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/cmd/globals"
	"github.com/agentstation/bodymap/internal/output"
)

// NewCommand creates the config command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "management",
		Short:   "Inspect and validate the configuration",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewValidateCommand(app))
	cmd.AddCommand(NewShowCommand(app))

	return cmd
}

// NewValidateCommand creates the config validate subcommand. It fails
// with the same error a build would report before reading any file.
func NewValidateCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without processing any file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.PipelineConfig()
			if err != nil {
				return err
			}

			w := alerts.NewWriter(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), !globals.Parse(cmd).NoColor)
			source := cfg.File
			if source == "" {
				source = "defaults and environment"
			}
			if err := cfg.Validate(); err != nil {
				_ = w.Write(alerts.NewError("Configuration invalid").WithError(err).WithDetails("source: " + source))
				return err
			}
			return w.Write(alerts.NewSuccess("Configuration valid").WithDetails("source: " + source))
		},
	}
}

// NewShowCommand creates the config show subcommand. It prints YAML in
// the config file layout with secrets masked.
func NewShowCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.PipelineConfig()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
