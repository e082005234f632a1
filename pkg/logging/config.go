package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap/pkg/constants"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the output format (auto, json, console)
	Format string `mapstructure:"format" yaml:"format"`

	// Output is where to write logs (stderr, stdout, discard, or file path)
	Output string `mapstructure:"output" yaml:"output"`

	// TimeFormat for console timestamps (kitchen, rfc3339, unix, or a layout)
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`

	// NoColor disables color output in console mode
	NoColor bool `mapstructure:"no_color" yaml:"no_color"`

	// AddCaller includes file:line in log output
	AddCaller bool `mapstructure:"add_caller" yaml:"add_caller"`

	// Fields are default fields to include in all logs
	Fields map[string]any `mapstructure:"fields" yaml:"fields"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: "kitchen",
		NoColor:    os.Getenv("NO_COLOR") != "",
		Fields:     make(map[string]any),
	}
}

// NewLoggerFromConfig creates a new logger from configuration
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(getWriter(cfg)).
		Level(level).
		With().
		Timestamp().
		Logger()

	if cfg.AddCaller || level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}

	if len(cfg.Fields) > 0 {
		logger = logger.With().Fields(cfg.Fields).Logger()
	}

	return logger
}

// Configure updates the default logger with the given configuration
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

// Environment variables read by EnvConfig.
const (
	EnvLevel      = "BODYMAP_LOG_LEVEL"
	EnvFormat     = "BODYMAP_LOG_FORMAT"
	EnvOutput     = "BODYMAP_LOG_OUTPUT"
	EnvTimeFormat = "BODYMAP_LOG_TIME_FORMAT"
	EnvCaller     = "BODYMAP_LOG_CALLER"
	EnvFields     = "BODYMAP_LOG_FIELDS"
)

// EnvConfig builds a configuration from BODYMAP_LOG_* variables. DEBUG set
// to anything non-empty lowers the default level to debug.
func EnvConfig() *Config {
	level := "info"
	if os.Getenv("DEBUG") != "" {
		level = "debug"
	}
	return &Config{
		Level:      getEnvOrDefault(EnvLevel, level),
		Format:     getEnvOrDefault(EnvFormat, "auto"),
		Output:     getEnvOrDefault(EnvOutput, "stderr"),
		TimeFormat: getEnvOrDefault(EnvTimeFormat, "kitchen"),
		NoColor:    os.Getenv("NO_COLOR") != "",
		AddCaller:  os.Getenv(EnvCaller) == "true",
		Fields:     parseFields(os.Getenv(EnvFields)),
	}
}

// ConfigureFromEnv configures the default logger from the environment.
func ConfigureFromEnv() {
	Configure(EnvConfig())
}

// getWriter creates the appropriate writer based on configuration
func getWriter(cfg *Config) io.Writer {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "discard", "none":
		output = io.Discard
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err != nil {
			output = os.Stderr
		} else {
			output = file
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := output.(*os.File); ok && isTerminal(f) {
			format = "console"
		}
	}

	switch format {
	case "console", "pretty", "text":
		return zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: parseTimeFormat(cfg.TimeFormat),
			NoColor:    cfg.NoColor,
		}
	default:
		return output
	}
}

// isTerminal reports whether f is attached to a terminal
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// parseLevel parses a log level string. Python-style upper case names
// (INFO, WARNING) are accepted as well.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal", "critical":
		return zerolog.FatalLevel
	case "disabled", "none", "off":
		return zerolog.Disabled
	default:
		if l, err := zerolog.ParseLevel(level); err == nil {
			return l
		}
		return zerolog.InfoLevel
	}
}

// IsValidLevel reports whether level names a known log level. The empty
// string counts as info.
func IsValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "", "warn", "warning", "error", "fatal", "critical", "disabled", "none", "off":
		return true
	}
	_, err := zerolog.ParseLevel(level)
	return err == nil
}

// parseTimeFormat parses time format configuration
func parseTimeFormat(format string) string {
	switch strings.ToLower(format) {
	case "kitchen", "":
		return time.Kitchen
	case "rfc3339":
		return time.RFC3339
	case "rfc3339nano":
		return time.RFC3339Nano
	case "unix", "epoch":
		return ""
	case "datetime":
		return time.DateTime
	default:
		if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
			return format
		}
		return time.Kitchen
	}
}

// parseFields parses comma-separated key=value pairs
func parseFields(fields string) map[string]any {
	result := make(map[string]any)
	if fields == "" {
		return result
	}

	for _, field := range strings.Split(fields, ",") {
		key, value, ok := strings.Cut(field, "=")
		if ok {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return result
}

// getEnvOrDefault returns an environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
