package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	runIDKey
)

// WithLogger stores logger in ctx. A nil logger stores the default one.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithFields returns a context whose logger carries fields on every entry.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	logger := FromContext(ctx).With().Fields(fields).Logger()
	return WithLogger(ctx, &logger)
}

// WithField is WithFields for a single key.
func WithField(ctx context.Context, key string, value any) context.Context {
	return WithFields(ctx, map[string]any{key: value})
}

// WithRunID tags the logger with the ingestion run and remembers the id.
func WithRunID(ctx context.Context, runID string) context.Context {
	ctx = context.WithValue(ctx, runIDKey, runID)
	return WithField(ctx, "run_id", runID)
}

// RunID returns the run id stored by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithSourceFile tags the logger with the raw file being read.
func WithSourceFile(ctx context.Context, name string) context.Context {
	return WithField(ctx, "source_file", name)
}

// WithSourceKind tags the logger with csv or fit.
func WithSourceKind(ctx context.Context, kind string) context.Context {
	return WithField(ctx, "source_kind", kind)
}

// WithOperation tags the logger with the pipeline step.
func WithOperation(ctx context.Context, operation string) context.Context {
	return WithField(ctx, "operation", operation)
}

// WithError attaches err under the "error" key. A nil err leaves ctx as is.
func WithError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	logger := FromContext(ctx).With().Err(err).Logger()
	return WithLogger(ctx, &logger)
}
