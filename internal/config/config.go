// Package config loads and validates the bodymap configuration.
package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/bodymap/internal/matcher"
	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/internal/sources/binary"
	"github.com/agentstation/bodymap/internal/sources/tabular"
	"github.com/agentstation/bodymap/internal/store/postgres"
	"github.com/agentstation/bodymap/pkg/authority"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/reconciler"
)

// Conflict resolution strategies.
const (
	StrategyFieldAuthority = string(reconciler.StrategyTypeFieldAuthority)
	StrategySourceOrder    = string(reconciler.StrategyTypeSourceOrder)
)

// Config is the full application configuration.
type Config struct {
	Processing Processing     `mapstructure:"processing" yaml:"processing"`
	Sources    Sources        `mapstructure:"sources" yaml:"sources"`
	Output     Output         `mapstructure:"output" yaml:"output"`
	Sinks      Sinks          `mapstructure:"sinks" yaml:"sinks"`
	Logging    logging.Config `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// Processing controls matching, merging and record identity.
type Processing struct {
	Timezone                  string             `mapstructure:"timezone" yaml:"timezone"`
	TimestampToleranceSeconds int                `mapstructure:"timestamp_tolerance_seconds" yaml:"timestamp_tolerance_seconds"`
	NumericTolerance          float64            `mapstructure:"numeric_tolerance" yaml:"numeric_tolerance"`
	RecordID                  identity.Config    `mapstructure:"record_id" yaml:"record_id"`
	ConflictResolution        ConflictResolution `mapstructure:"conflict_resolution" yaml:"conflict_resolution"`
}

// ConflictResolution selects which source wins a conflicting field.
type ConflictResolution struct {
	// Strategy is field-authority or source-order.
	Strategy          string            `mapstructure:"strategy" yaml:"strategy"`
	DefaultPreference string            `mapstructure:"default_preference" yaml:"default_preference"`
	FieldPreferences  map[string]string `mapstructure:"field_preferences" yaml:"field_preferences"`
	// SourceOrder is used by the source-order strategy, highest first.
	SourceOrder []string `mapstructure:"source_order" yaml:"source_order"`
}

// Sources configures where raw exports live and how they are parsed.
type Sources struct {
	RawDir    string `mapstructure:"raw_dir" yaml:"raw_dir"`
	Recursive bool   `mapstructure:"recursive" yaml:"recursive"`
	Checksum  string `mapstructure:"checksum" yaml:"checksum"`
	// Exclude holds glob or regex patterns of files the scan skips.
	Exclude []string       `mapstructure:"exclude" yaml:"exclude"`
	CSV     tabular.Config `mapstructure:"csv" yaml:"csv"`
	FIT     binary.Config  `mapstructure:"fit" yaml:"fit"`
}

// Output configures the artifacts written by a run.
type Output struct {
	Dir     string       `mapstructure:"dir" yaml:"dir"`
	Files   output.Files `mapstructure:"files" yaml:"files"`
	Formats []string     `mapstructure:"formats" yaml:"formats"`
}

// Sinks configures optional destinations besides the output directory.
type Sinks struct {
	Postgres    Postgres `mapstructure:"postgres" yaml:"postgres"`
	Kafka       Kafka    `mapstructure:"kafka" yaml:"kafka"`
	MetricsFile string   `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Postgres configures the measurement store.
type Postgres struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// Enabled reports whether a DSN is configured.
func (p Postgres) Enabled() bool {
	return p.DSN != ""
}

// Kafka configures the measurement publisher.
type Kafka struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// Enabled reports whether brokers are configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Processing: Processing{
			Timezone:                  constants.DefaultTimezone,
			TimestampToleranceSeconds: int(constants.DefaultTimestampTolerance / time.Second),
			NumericTolerance:          constants.DefaultNumericTolerance,
			RecordID:                  identity.DefaultConfig(),
			ConflictResolution: ConflictResolution{
				Strategy:         StrategyFieldAuthority,
				FieldPreferences: map[string]string{},
			},
		},
		Sources: Sources{
			RawDir:   "data/raw",
			Checksum: "sha256",
			CSV:      tabular.DefaultConfig(),
			FIT:      binary.DefaultConfig(),
		},
		Output: Output{
			Dir:     "data/processed",
			Files:   output.DefaultFiles(),
			Formats: []string{output.DatasetCSV, output.DatasetJSON},
		},
		Sinks: Sinks{
			Postgres: Postgres{Table: postgres.DefaultTable},
		},
		Logging: *logging.DefaultConfig(),
	}
}

// fillDefaults sets list and map values left empty by the loaded sources.
func (c *Config) fillDefaults() {
	def := Default()
	if len(c.Processing.RecordID.Include) == 0 {
		c.Processing.RecordID.Include = def.Processing.RecordID.Include
	}
	if c.Processing.ConflictResolution.FieldPreferences == nil {
		c.Processing.ConflictResolution.FieldPreferences = map[string]string{}
	}
	if len(c.Sources.CSV.Encodings) == 0 {
		c.Sources.CSV.Encodings = def.Sources.CSV.Encodings
	}
	if len(c.Sources.CSV.Delimiters) == 0 {
		c.Sources.CSV.Delimiters = def.Sources.CSV.Delimiters
	}
	if len(c.Sources.CSV.ColumnMappings) == 0 {
		c.Sources.CSV.ColumnMappings = def.Sources.CSV.ColumnMappings
	}
	if len(c.Sources.CSV.TimeLayouts) == 0 {
		c.Sources.CSV.TimeLayouts = def.Sources.CSV.TimeLayouts
	}
	if len(c.Sources.FIT.FieldMappings) == 0 {
		c.Sources.FIT.FieldMappings = def.Sources.FIT.FieldMappings
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = def.Output.Formats
	}
	if c.Sinks.Postgres.Table == "" {
		c.Sinks.Postgres.Table = postgres.DefaultTable
	}
}

// Validate checks the configuration. Every problem is a ConfigError.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	p := c.Processing
	if p.TimestampToleranceSeconds < 0 {
		return errors.NewConfigError("processing", fmt.Sprintf("timestamp_tolerance_seconds must not be negative, got %d", p.TimestampToleranceSeconds), nil)
	}
	if math.IsNaN(p.NumericTolerance) || math.IsInf(p.NumericTolerance, 0) || p.NumericTolerance < 0 {
		return errors.NewConfigError("processing", fmt.Sprintf("numeric_tolerance must be a finite non-negative number, got %v", p.NumericTolerance), nil)
	}
	if err := p.RecordID.Validate(); err != nil {
		return err
	}
	if _, err := p.strategy(); err != nil {
		return err
	}

	if c.Sources.RawDir == "" {
		return errors.NewConfigError("sources", "raw_dir is required", nil)
	}
	if c.Sources.Checksum != "" && !slices.Contains(identity.Algorithms(), strings.ToLower(c.Sources.Checksum)) {
		return errors.NewConfigError("sources", fmt.Sprintf("unsupported checksum %q", c.Sources.Checksum), nil)
	}
	if _, err := c.Sources.ExcludeMatcher(); err != nil {
		return err
	}
	if _, err := tabular.New(c.Sources.CSV, nil); err != nil {
		return err
	}
	if _, err := binary.New(c.Sources.FIT, nil); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return errors.NewConfigError("output", "dir is required", nil)
	}
	if err := output.ValidateFormats(c.Output.Formats); err != nil {
		return errors.NewConfigError("output", err.Error(), err)
	}

	if c.Sinks.Postgres.Enabled() {
		if _, err := postgres.New(nil, c.Sinks.Postgres.Table); err != nil {
			return err
		}
	}
	if !logging.IsValidLevel(c.Logging.Level) {
		return errors.NewConfigError("logging", fmt.Sprintf("invalid level %q", c.Logging.Level), nil)
	}
	return nil
}

// ExcludeMatcher compiles the exclude patterns. Matching ignores case.
func (s Sources) ExcludeMatcher() (*matcher.MultiMatcher, error) {
	m, err := matcher.NewMultiMatcher(s.Exclude, matcher.Auto, &matcher.Options{CaseInsensitive: true})
	if err != nil {
		return nil, errors.NewConfigError("sources", "invalid exclude pattern", err)
	}
	return m, nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Processing.Timezone)
	if err != nil {
		return nil, errors.NewConfigError("processing", fmt.Sprintf("invalid timezone %q", c.Processing.Timezone), err)
	}
	return loc, nil
}

// TimestampTolerance returns the matching window.
func (p Processing) TimestampTolerance() time.Duration {
	return time.Duration(p.TimestampToleranceSeconds) * time.Second
}

// IdentityConfig returns the record id configuration.
func (p Processing) IdentityConfig() identity.Config {
	return p.RecordID
}

// strategy builds the conflict resolution strategy.
func (p Processing) strategy() (reconciler.Strategy, error) {
	cr := p.ConflictResolution
	switch cr.Strategy {
	case "", StrategyFieldAuthority:
		auth, err := authority.FromPreferences(cr.FieldPreferences, cr.DefaultPreference)
		if err != nil {
			return nil, err
		}
		return reconciler.NewAuthorityStrategy(auth), nil
	case StrategySourceOrder:
		order := make([]measurements.SourceKind, 0, len(cr.SourceOrder))
		for _, s := range cr.SourceOrder {
			kind, err := measurements.ParseSourceKind(s)
			if err != nil {
				return nil, errors.NewConfigError("conflict_resolution", fmt.Sprintf("invalid source_order entry %q", s), err)
			}
			order = append(order, kind)
		}
		return reconciler.NewSourceOrderStrategy(order...), nil
	default:
		return nil, errors.NewConfigError("conflict_resolution", fmt.Sprintf("unknown strategy %q (supported: %s, %s)", cr.Strategy, StrategyFieldAuthority, StrategySourceOrder), nil)
	}
}

// ReconcilerOptions translates the processing section into reconciler
// options.
func (p Processing) ReconcilerOptions() ([]reconciler.Option, error) {
	gen, err := identity.New(p.RecordID)
	if err != nil {
		return nil, err
	}
	strategy, err := p.strategy()
	if err != nil {
		return nil, err
	}
	return []reconciler.Option{
		reconciler.WithTolerance(p.NumericTolerance),
		reconciler.WithTimestampTolerance(p.TimestampTolerance()),
		reconciler.WithIdentity(gen),
		reconciler.WithStrategy(strategy),
	}, nil
}

// ComparisonOptions translates the processing section into comparison
// options.
func (p Processing) ComparisonOptions() []comparison.Option {
	return []comparison.Option{
		comparison.WithTolerance(p.NumericTolerance),
		comparison.WithTimestampTolerance(p.TimestampTolerance()),
	}
}
