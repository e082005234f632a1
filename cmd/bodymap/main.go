// Package main provides the entry point for the bodymap CLI tool.
package main

import (
	"context"
	"os"

	// Embedded zone database for hosts without one.
	_ "time/tzdata"

	"github.com/agentstation/bodymap/cmd/bodymap/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	// Cancel on SIGINT/SIGTERM so a watch loop stops between runs
	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		app.ExitOnError(err)
	}
}
