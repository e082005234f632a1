package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap"
	"github.com/agentstation/bodymap/internal/config"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value.
type Mock struct {
	PipelineConfigFunc func() (*config.Config, error)
	ClientFunc         func(ctx context.Context, cfg *config.Config, sinks Sinks) (bodymap.Client, error)
	LoggerFunc         func() *zerolog.Logger
	OutputFormatFunc   func() string
	QuietFunc          func() bool
	VersionFunc        func() string
	CommitFunc         func() string
	DateFunc           func() string
	BuiltByFunc        func() string
}

var _ Application = (*Mock)(nil)

// PipelineConfig returns the mock configuration or the defaults.
func (m *Mock) PipelineConfig() (*config.Config, error) {
	if m.PipelineConfigFunc != nil {
		return m.PipelineConfigFunc()
	}
	return config.Default(), nil
}

// Client returns a client using the mock function, or a plain client for cfg.
func (m *Mock) Client(ctx context.Context, cfg *config.Config, sinks Sinks) (bodymap.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(ctx, cfg, sinks)
	}
	return bodymap.New(bodymap.WithConfig(cfg))
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "json".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Quiet returns the mock value or false.
func (m *Mock) Quiet() bool {
	if m.QuietFunc != nil {
		return m.QuietFunc()
	}
	return false
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}
