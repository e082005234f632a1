package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/reconciler"
)

const sample = `
processing:
  timezone: UTC
  timestamp_tolerance_seconds: 120
  numeric_tolerance: 0.01
  record_id:
    algorithm: sha3-256
    timestamp_rounding_seconds: 300
    include_fields: [timestamp, weight_kg]
  conflict_resolution:
    default_preference: csv
    field_preferences:
      weight_kg: fit
sources:
  raw_dir: exports
  recursive: true
  csv:
    delimiters: [";"]
output:
  dir: out
  formats: [csv, yaml]
  files:
    conflicts: conflicts.json
sinks:
  kafka:
    brokers: [localhost:9092]
    topic: weights
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bodymap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "UTC", cfg.Processing.Timezone)
	assert.Equal(t, 2*time.Minute, cfg.Processing.TimestampTolerance())
	assert.Equal(t, 0.01, cfg.Processing.NumericTolerance)
	assert.Equal(t, identity.Config{
		Algorithm:     "sha3-256",
		BucketSeconds: 300,
		Include:       []identity.Component{identity.ComponentTimestamp, identity.ComponentWeight},
	}, cfg.Processing.IdentityConfig())
	assert.Equal(t, map[string]string{"weight_kg": "fit"}, cfg.Processing.ConflictResolution.FieldPreferences)

	assert.Equal(t, "exports", cfg.Sources.RawDir)
	assert.True(t, cfg.Sources.Recursive)
	assert.Equal(t, []string{";"}, cfg.Sources.CSV.Delimiters)
	assert.NotEmpty(t, cfg.Sources.CSV.Encodings, "unset lists fall back to defaults")
	assert.NotEmpty(t, cfg.Sources.FIT.FieldMappings)

	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, []string{"csv", "yaml"}, cfg.Output.Formats)
	assert.Equal(t, "conflicts.json", cfg.Output.Files.Conflicts)
	assert.Equal(t, output.DefaultFiles().ConsolidatedCSV, cfg.Output.Files.ConsolidatedCSV)

	assert.True(t, cfg.Sinks.Kafka.Enabled())
	assert.False(t, cfg.Sinks.Postgres.Enabled())
	assert.NotEmpty(t, cfg.File)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := Default()
	assert.Equal(t, def.Processing, cfg.Processing)
	assert.Equal(t, def.Sources, cfg.Sources)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Empty(t, cfg.File)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BODYMAP_PROCESSING_TIMEZONE", "Europe/Madrid")
	t.Setenv("BODYMAP_SOURCES_RAW_DIR", "/srv/raw")
	t.Setenv("BODYMAP_SINKS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("BODYMAP_SINKS_POSTGRES_DSN", "postgres://u:p@localhost/db")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", cfg.Processing.Timezone)
	assert.Equal(t, "/srv/raw", cfg.Sources.RawDir)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Sinks.Kafka.Brokers)
	assert.True(t, cfg.Sinks.Postgres.Enabled())

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "u:p@")
	assert.Contains(t, string(out), "<redacted>")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"timezone", func(c *Config) { c.Processing.Timezone = "Mars/Olympus" }},
		{"negative tolerance", func(c *Config) { c.Processing.TimestampToleranceSeconds = -1 }},
		{"numeric tolerance", func(c *Config) { c.Processing.NumericTolerance = -0.5 }},
		{"hash algorithm", func(c *Config) { c.Processing.RecordID.Algorithm = "crc32" }},
		{"preference", func(c *Config) { c.Processing.ConflictResolution.DefaultPreference = "scale" }},
		{"strategy", func(c *Config) { c.Processing.ConflictResolution.Strategy = "coin-flip" }},
		{"source order", func(c *Config) {
			c.Processing.ConflictResolution.Strategy = StrategySourceOrder
			c.Processing.ConflictResolution.SourceOrder = []string{"xml"}
		}},
		{"raw dir", func(c *Config) { c.Sources.RawDir = "" }},
		{"checksum", func(c *Config) { c.Sources.Checksum = "crc32" }},
		{"exclude pattern", func(c *Config) { c.Sources.Exclude = []string{"(unclosed"} }},
		{"delimiter", func(c *Config) { c.Sources.CSV.Delimiters = []string{";;"} }},
		{"fit mapping", func(c *Config) { c.Sources.FIT.FieldMappings = map[string]string{"weight": "mass"} }},
		{"output dir", func(c *Config) { c.Output.Dir = "" }},
		{"formats", func(c *Config) { c.Output.Formats = []string{"parquet"} }},
		{"table", func(c *Config) {
			c.Sinks.Postgres.DSN = "postgres://localhost/db"
			c.Sinks.Postgres.Table = "bad table"
		}},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err), "got %T: %v", err, err)
		})
	}
}

func TestReconcilerOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	opts, err := cfg.Processing.ReconcilerOptions()
	require.NoError(t, err)
	r, err := reconciler.New(opts...)
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC)
	res, err := r.Consolidate(context.Background(), []measurements.RawRecord{
		{Timestamp: at, SourceFile: "a.csv", Kind: measurements.Tabular, Composition: measurements.Composition{WeightKg: measurements.Some(75.5)}},
		{Timestamp: at.Add(90 * time.Second), SourceFile: "a.fit", Kind: measurements.Binary, Composition: measurements.Composition{WeightKg: measurements.Some(76.0)}},
	})
	require.NoError(t, err)
	require.Len(t, res.Measurements, 1, "120s tolerance pairs records 90s apart")

	m := res.Measurements[0]
	assert.Equal(t, measurements.Some(76.0), m.WeightKg, "weight_kg prefers fit")
	require.NotNil(t, m.ChosenSource)
	assert.Equal(t, measurements.Binary, *m.ChosenSource)
}

func TestSourceOrderStrategy(t *testing.T) {
	cfg := Default()
	cfg.Processing.ConflictResolution.Strategy = StrategySourceOrder
	cfg.Processing.ConflictResolution.SourceOrder = []string{"fit", "csv"}
	require.NoError(t, cfg.Validate())

	s, err := cfg.Processing.strategy()
	require.NoError(t, err)
	assert.Equal(t, reconciler.StrategyTypeSourceOrder, s.Type())
	assert.Equal(t, 2.0, s.ResolveConflict(measurements.FieldWeightKg, 1, 2).Value)
}

func TestComparisonOptions(t *testing.T) {
	assert.Len(t, Default().Processing.ComparisonOptions(), 2)
}
