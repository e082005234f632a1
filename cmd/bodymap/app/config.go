package app

import (
	"os"

	"github.com/agentstation/bodymap/pkg/logging"
)

// Config holds the CLI configuration: global flags plus the logging
// settings of the pipeline configuration.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// LogLevel is the explicit --log-level value
	LogLevel string

	// Logging comes from the config file and BODYMAP_LOGGING_* variables
	Logging logging.Config
}

// LoadConfig returns the configuration used before flags are parsed.
func LoadConfig() *Config {
	cfg := &Config{Logging: *logging.DefaultConfig()}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
	return cfg
}

// UpdateFromFlags updates config values from parsed command flags.
// Flag values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}
