// Package logging provides structured logging for bodymap using zerolog.
// Console output is used when stderr is a terminal, JSON otherwise.
//
// Library packages never hold a logger of their own. They read it from the
// context, so a run id or source file attached once shows up on every line:
//
//	ctx := logging.WithLogger(context.Background(), logging.Default())
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithSourceFile(ctx, "Peso 1-2024 Huawei Health.csv")
//	logging.FromContext(ctx).Debug().Int("rows", n).Msg("Parsed file")
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger zerolog.Logger

func init() {
	defaultLogger = NewLoggerFromConfig(EnvConfig())
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger and zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Debug starts a debug event on the default logger.
func Debug() *zerolog.Event {
	return defaultLogger.Debug()
}

// Info starts an info event on the default logger.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a warning event on the default logger.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

// Error starts an error event on the default logger.
func Error() *zerolog.Event {
	return defaultLogger.Error()
}
