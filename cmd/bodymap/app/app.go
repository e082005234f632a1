// Package app provides the application context and dependency management
// for the bodymap CLI. It centralizes configuration, logging and the
// creation of pipeline clients.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/internal/cmd/application"
	"github.com/agentstation/bodymap/internal/config"
	"github.com/agentstation/bodymap/internal/publish"
	"github.com/agentstation/bodymap/internal/store/postgres"
	"github.com/agentstation/bodymap/pkg/errors"
)

// App represents the bodymap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Global flags and logging
	config *Config
	logger *zerolog.Logger

	// Pipeline configuration (lazy-loaded once flags are parsed)
	mu       sync.RWMutex
	pipeline *config.Config
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		config:  LoadConfig(),
	}

	logger := NewLogger(app.config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the CLI configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the --format value.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Quiet reports whether -q was given.
func (a *App) Quiet() bool {
	return a.config.Quiet
}

// PipelineConfig returns a copy of the pipeline configuration, loading it
// on first use.
func (a *App) PipelineConfig() (*config.Config, error) {
	a.mu.RLock()
	if a.pipeline != nil {
		cfg := *a.pipeline
		a.mu.RUnlock()
		return &cfg, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.pipeline == nil {
		loaded, err := config.Load(a.config.ConfigFile)
		if err != nil {
			return nil, err
		}
		a.pipeline = loaded
	}
	cfg := *a.pipeline
	return &cfg, nil
}

// Client opens the requested sinks and creates a pipeline client. Sinks
// opened before a failure are closed again.
func (a *App) Client(ctx context.Context, cfg *config.Config, sinks application.Sinks) (bodymap.Client, error) {
	opts := []bodymap.Option{bodymap.WithConfig(cfg)}
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if sinks.Store {
		if !cfg.Sinks.Postgres.Enabled() {
			return nil, errors.NewConfigError("postgres", "sinks.postgres.dsn is required with --store", nil)
		}
		store, err := postgres.Open(ctx, cfg.Sinks.Postgres.DSN, cfg.Sinks.Postgres.Table)
		if err != nil {
			return nil, err
		}
		closers = append(closers, store.Close)
		opts = append(opts, bodymap.WithStore(store))
	}

	if sinks.Publish {
		if !cfg.Sinks.Kafka.Enabled() {
			cleanup()
			return nil, errors.NewConfigError("kafka", "sinks.kafka.brokers is required with --publish", nil)
		}
		pub, err := publish.NewKafkaPublisher(cfg.Sinks.Kafka.Brokers, cfg.Sinks.Kafka.Topic)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, func() { _ = pub.Close() })
		opts = append(opts, bodymap.WithPublisher(pub))
	}

	client, err := bodymap.New(opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return client, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom CLI configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithPipelineConfig sets the pipeline configuration (useful for testing).
func WithPipelineConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.pipeline = cfg
		return nil
	}
}
