// Package application defines what bodymap commands need from the CLI app.
//
// Commands accept the Application interface rather than the concrete App,
// so they can be tested with a Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func(ctx context.Context, cfg *config.Config, sinks application.Sinks) (bodymap.Client, error) {
//	        return bodymap.New(bodymap.WithConfig(cfg))
//	    },
//	}
//	cmd := build.NewCommand(mock)
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/internal/config"
)

// Sinks selects the optional destinations a client is opened with.
type Sinks struct {
	// Store upserts measurements into the configured Postgres table.
	Store bool
	// Publish sends measurements to the configured Kafka topic.
	Publish bool
}

// Application provides the application interface that commands need.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// PipelineConfig returns a copy of the loaded configuration. Commands
	// apply their flag overrides to the copy.
	PipelineConfig() (*config.Config, error)

	// Client opens the requested sinks and creates a pipeline client for cfg.
	// The caller closes the client.
	Client(ctx context.Context, cfg *config.Config, sinks Sinks) (bodymap.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the console output format (table, wide, json, yaml).
	OutputFormat() string

	// Quiet reports whether status lines should be suppressed.
	Quiet() bool

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
