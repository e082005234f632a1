package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/bodymap/cmd/bodymap/cmd/build"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/compare"
	configcmd "github.com/agentstation/bodymap/cmd/bodymap/cmd/config"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/daily"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/run"
	"github.com/agentstation/bodymap/cmd/bodymap/cmd/version"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(build.NewCommand(a))
	rootCmd.AddCommand(compare.NewCommand(a))
	rootCmd.AddCommand(daily.NewCommand(a))
	rootCmd.AddCommand(run.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(configcmd.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))
}
