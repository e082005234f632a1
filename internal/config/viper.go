package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/bodymap/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// BODYMAP_PROCESSING_TIMEZONE or BODYMAP_SINKS_KAFKA_BROKERS.
const EnvPrefix = "BODYMAP"

// ConfigName is the base name searched for when no file is given.
const ConfigName = "bodymap"

// envFiles are loaded before the environment is read; .env.local wins over
// .env because godotenv never overwrites a variable already set.
var envFiles = []string{".env.local", ".env"}

// Load reads configuration in order of precedence:
//  1. Environment variables (BODYMAP_*)
//  2. .env files
//  3. Config file (file, or bodymap.yaml in ., ./config or $HOME)
//  4. Defaults
//
// An explicitly named file must exist. The result is not validated.
func Load(file string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "reading "+file, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "reading config file", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "decoding configuration", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.fillDefaults()
	return cfg, nil
}

// setDefaults registers every scalar key so that environment variables can
// override it. List and map defaults are applied after decoding.
func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("processing.timezone", def.Processing.Timezone)
	v.SetDefault("processing.timestamp_tolerance_seconds", def.Processing.TimestampToleranceSeconds)
	v.SetDefault("processing.numeric_tolerance", def.Processing.NumericTolerance)
	v.SetDefault("processing.record_id.algorithm", def.Processing.RecordID.Algorithm)
	v.SetDefault("processing.record_id.timestamp_rounding_seconds", def.Processing.RecordID.BucketSeconds)
	v.SetDefault("processing.conflict_resolution.strategy", def.Processing.ConflictResolution.Strategy)
	v.SetDefault("processing.conflict_resolution.default_preference", "")

	v.SetDefault("sources.raw_dir", def.Sources.RawDir)
	v.SetDefault("sources.recursive", def.Sources.Recursive)
	v.SetDefault("sources.checksum", def.Sources.Checksum)

	v.SetDefault("output.dir", def.Output.Dir)
	v.SetDefault("output.files.consolidated_csv", def.Output.Files.ConsolidatedCSV)
	v.SetDefault("output.files.consolidated_json", def.Output.Files.ConsolidatedJSON)
	v.SetDefault("output.files.consolidated_yaml", def.Output.Files.ConsolidatedYAML)
	v.SetDefault("output.files.consolidated_parquet", def.Output.Files.ConsolidatedParquet)
	v.SetDefault("output.files.conflicts", def.Output.Files.Conflicts)
	v.SetDefault("output.files.comparison_summary", def.Output.Files.ComparisonSummary)
	v.SetDefault("output.files.ingestion_log", def.Output.Files.IngestionLog)
	v.SetDefault("output.files.daily_csv", def.Output.Files.DailyCSV)
	v.SetDefault("output.files.provenance", def.Output.Files.Provenance)
	v.SetDefault("output.formats", def.Output.Formats)

	v.SetDefault("sinks.postgres.dsn", "")
	v.SetDefault("sinks.postgres.table", def.Sinks.Postgres.Table)
	v.SetDefault("sinks.kafka.brokers", []string{})
	v.SetDefault("sinks.kafka.topic", "")
	v.SetDefault("sinks.metrics_file", "")

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("logging.time_format", def.Logging.TimeFormat)
	v.SetDefault("logging.no_color", def.Logging.NoColor)
	v.SetDefault("logging.add_caller", def.Logging.AddCaller)
}

func loadEnvFiles() {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Sinks.Postgres.DSN != "" {
		out.Sinks.Postgres.DSN = "<redacted>"
	}
	return &out
}

// YAML renders the configuration with secrets redacted.
func (c *Config) YAML() ([]byte, error) {
	return yaml.MarshalWithOptions(c.Redacted(), yaml.Indent(2), yaml.IndentSequence(false))
}
