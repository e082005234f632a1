// Package binary parses FIT weight files written by smart scales into raw
// records.
package binary

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/tormoder/fit"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Config controls how FIT messages map onto measurement fields.
type Config struct {
	// FieldMappings maps weight_scale field names to measurement fields.
	FieldMappings map[string]string `mapstructure:"field_mappings" yaml:"field_mappings"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		FieldMappings: map[string]string{
			"weight":              measurements.FieldWeightKg,
			"percent_fat":         measurements.FieldBodyFatPct,
			"percent_hydration":   measurements.FieldBodyWater,
			"bone_mass":           measurements.FieldBoneMassKg,
			"muscle_mass":         measurements.FieldMuscleMassKg,
			"basal_met":           measurements.FieldBMRKcal,
			"metabolic_age":       measurements.FieldMetabolicAge,
			"visceral_fat_rating": measurements.FieldVisceralFatRating,
		},
	}
}

// reading extracts one weight_scale field. Invalid values are NaN.
type reading func(*fit.WeightScaleMsg) float64

var readings = map[string]reading{
	"weight": func(m *fit.WeightScaleMsg) float64 {
		if m.Weight == fit.WeightCalculating {
			return math.NaN()
		}
		return m.GetWeightScaled()
	},
	"percent_fat":         (*fit.WeightScaleMsg).GetPercentFatScaled,
	"percent_hydration":   (*fit.WeightScaleMsg).GetPercentHydrationScaled,
	"visceral_fat_mass":   (*fit.WeightScaleMsg).GetVisceralFatMassScaled,
	"bone_mass":           (*fit.WeightScaleMsg).GetBoneMassScaled,
	"muscle_mass":         (*fit.WeightScaleMsg).GetMuscleMassScaled,
	"basal_met":           (*fit.WeightScaleMsg).GetBasalMetScaled,
	"active_met":          (*fit.WeightScaleMsg).GetActiveMetScaled,
	"metabolic_age":       func(m *fit.WeightScaleMsg) float64 { return byteValue(m.MetabolicAge) },
	"visceral_fat_rating": func(m *fit.WeightScaleMsg) float64 { return byteValue(m.VisceralFatRating) },
	"physique_rating":     func(m *fit.WeightScaleMsg) float64 { return byteValue(m.PhysiqueRating) },
}

// byteValue returns NaN for the FIT uint8 invalid marker.
func byteValue(v uint8) float64 {
	if v == math.MaxUint8 {
		return math.NaN()
	}
	return float64(v)
}

// ReadingNames returns the weight_scale fields that can be mapped.
func ReadingNames() []string {
	names := make([]string, 0, len(readings))
	for name := range readings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// mapping is a resolved entry of Config.FieldMappings.
type mapping struct {
	read  reading
	field measurements.Field
}

// Parser reads FIT weight files.
type Parser struct {
	loc      *time.Location
	mappings []mapping
}

// New creates a parser. Timestamps are presented in loc; a nil loc means UTC.
func New(cfg Config, loc *time.Location) (*Parser, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(cfg.FieldMappings) == 0 {
		cfg = DefaultConfig()
	}

	p := &Parser{loc: loc}
	names := make([]string, 0, len(cfg.FieldMappings))
	for name := range cfg.FieldMappings {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		read, ok := readings[name]
		if !ok {
			return nil, errors.NewConfigError("fit", fmt.Sprintf("unknown weight_scale field %q", name), nil)
		}
		field, ok := measurements.FieldByName(cfg.FieldMappings[name])
		if !ok {
			return nil, errors.NewConfigError("fit", fmt.Sprintf("field %q maps to unknown field %q", name, cfg.FieldMappings[name]), nil)
		}
		p.mappings = append(p.mappings, mapping{read: read, field: field})
	}
	return p, nil
}

// Kind implements sources.Parser.
func (p *Parser) Kind() measurements.SourceKind {
	return measurements.Binary
}

// Parse implements sources.Parser. Messages without a timestamp or weight
// are logged and skipped.
func (p *Parser) Parse(ctx context.Context, path, fileID string) ([]measurements.RawRecord, error) {
	name := filepath.Base(path)
	logger := logging.FromContext(ctx).With().Str("file", name).Logger()

	f, err := os.Open(path) //nolint:gosec // path comes from the scanned raw directory
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	decoded, err := fit.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.WrapParse("fit", path, err)
	}

	wf, err := decoded.Weight()
	if err != nil {
		logger.Warn().Str("type", decoded.Type().String()).Msg("Not a weight file, skipping")
		return []measurements.RawRecord{}, nil
	}

	records := make([]measurements.RawRecord, 0, len(wf.WeightScales))
	for i, msg := range wf.WeightScales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok := p.record(msg)
		if !ok {
			logger.Warn().Int("message", i).Msg("Skipping weight_scale message without timestamp or weight")
			continue
		}
		rec.SourceFile = name
		rec.SourceFileID = fileID
		rec.Kind = measurements.Binary
		records = append(records, rec)
	}

	logger.Info().Int("records", len(records)).Msg("Parsed binary file")
	return records, nil
}

// record converts one message. It reports false when the message has no
// usable timestamp or no weight.
func (p *Parser) record(msg *fit.WeightScaleMsg) (measurements.RawRecord, bool) {
	var rec measurements.RawRecord
	if msg == nil || !validTime(msg.Timestamp) {
		return rec, false
	}
	rec.Timestamp = msg.Timestamp.In(p.loc)

	for _, m := range p.mappings {
		v := measurements.FromFloat(m.read(msg))
		if !v.IsSet() && m.field.Get(rec.Composition).IsSet() {
			continue
		}
		m.field.Set(&rec.Composition, v)
	}
	return rec, rec.WeightKg.IsSet()
}

// validTime reports whether t is a real FIT timestamp. Invalid timestamps
// decode to the zero time or to the FIT epoch.
func validTime(t time.Time) bool {
	return !t.IsZero() && t.Year() > 1989
}
