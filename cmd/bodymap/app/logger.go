package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap/pkg/logging"
)

// NewLogger creates a configured logger based on the application configuration.
// Log level precedence (highest to lowest):
//  1. --log-level flag (explicit always wins)
//  2. -v/--verbose flag (shortcut for debug)
//  3. -q/--quiet flag (shortcut for warn)
//  4. logging.level from the config file or BODYMAP_LOGGING_LEVEL
//  5. Default (info)
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	logConfig := config.Logging
	logConfig.Level = level
	logConfig.NoColor = logConfig.NoColor || config.NoColor
	logConfig.AddCaller = logConfig.AddCaller || level == "debug" || level == "trace"

	return logging.NewLoggerFromConfig(&logConfig)
}

// determineLogLevel determines the log level using clear precedence rules.
func determineLogLevel(config *Config) string {
	// 1. Explicit --log-level always wins
	if config.LogLevel != "" {
		validated := validateLogLevel(config.LogLevel)
		if validated != config.LogLevel {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", config.LogLevel, validated)
		}
		return validated
	}

	// 2. Conflicting boolean flags resolve to the more restrictive one
	if config.Verbose && config.Quiet {
		fmt.Fprintf(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}

	// 3. Boolean shortcuts
	if config.Verbose {
		return "debug"
	}
	if config.Quiet {
		return "warn"
	}

	// 4. Configured level
	if config.Logging.Level != "" {
		return validateLogLevel(config.Logging.Level)
	}

	// 5. Default
	return "info"
}

// validateLogLevel returns level if valid and "info" otherwise.
func validateLogLevel(level string) string {
	if logging.IsValidLevel(level) {
		return level
	}
	return "info"
}
