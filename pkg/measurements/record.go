package measurements

import (
	"fmt"
	"slices"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/bodymap/pkg/errors"
)

// RawRecord is one measurement as read from a single source file, before
// consolidation. Consumers never modify records they receive.
type RawRecord struct {
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Composition  `yaml:",inline"`
	SourceFile   string     `json:"source_file_name" yaml:"source_file_name"`
	SourceFileID string     `json:"source_file_id,omitempty" yaml:"source_file_id,omitempty"`
	Kind         SourceKind `json:"source_type" yaml:"source_type"`
}

// Validate checks the record invariants.
func (r RawRecord) Validate() error {
	if r.Timestamp.IsZero() {
		return errors.NewValidationError("timestamp", r.Timestamp, "timestamp is required")
	}
	if !r.Kind.Valid() {
		return errors.NewValidationError("source_type", r.Kind, fmt.Sprintf("unknown source kind %q", r.Kind))
	}
	if r.SourceFile == "" {
		return errors.NewValidationError("source_file_name", r.SourceFile, "source file name is required")
	}
	for _, f := range Fields {
		if f.Get(r.Composition).IsNaN() {
			return errors.NewValidationError(f.Name, "NaN", "value is NaN")
		}
	}
	return nil
}

// SourceValues keeps the raw per-source values of an audited field.
type SourceValues struct {
	Tabular Value `json:"csv" yaml:"csv"`
	Binary  Value `json:"fit" yaml:"fit"`
}

// Of returns the value reported by kind.
func (s SourceValues) Of(kind SourceKind) Value {
	if kind == Binary {
		return s.Binary
	}
	return s.Tabular
}

// Measurement is the canonical, deduplicated reading produced by
// consolidation.
type Measurement struct {
	RecordID          string    `json:"record_id" yaml:"record_id"`
	Timestamp         time.Time `json:"timestamp" yaml:"timestamp"`
	Composition       `yaml:",inline"`
	SourceFiles       []string               `json:"source_files" yaml:"source_files"`
	SourceKinds       []SourceKind           `json:"source_types" yaml:"source_types"`
	SourceFileIDs     []string               `json:"source_file_ids" yaml:"source_file_ids"`
	ProcessedAt       utc.Time               `json:"ingestion_timestamp" yaml:"ingestion_timestamp"`
	FieldSources      map[string]FieldSource `json:"field_sources" yaml:"field_sources"`
	ConflictingFields []string               `json:"conflicting_fields" yaml:"conflicting_fields"`
	// ChosenSource is the source a preference picked for the first
	// conflicting field in Fields order. When per-field preferences pick
	// different sources for later conflicting fields, only the first is
	// kept here; FieldSources and Audit still describe every field.
	ChosenSource *SourceKind             `json:"chosen_source,omitempty" yaml:"chosen_source,omitempty"`
	Audit        map[string]SourceValues `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// HasConflicts reports whether any field conflicted.
func (m *Measurement) HasConflicts() bool {
	return len(m.ConflictingFields) > 0
}

// HasKind reports whether kind contributed to the measurement.
func (m *Measurement) HasKind(kind SourceKind) bool {
	return slices.Contains(m.SourceKinds, kind)
}

// SourceValue returns the raw value kind reported for an audited field. It
// is absent unless the field conflicted.
func (m *Measurement) SourceValue(field string, kind SourceKind) Value {
	if m.Audit == nil {
		return None()
	}
	sv, ok := m.Audit[field]
	if !ok {
		return None()
	}
	return sv.Of(kind)
}

// WeightTabular returns the tabular weight kept on conflict.
func (m *Measurement) WeightTabular() Value {
	return m.SourceValue(FieldWeightKg, Tabular)
}

// WeightBinary returns the binary weight kept on conflict.
func (m *Measurement) WeightBinary() Value {
	return m.SourceValue(FieldWeightKg, Binary)
}

// BodyFatTabular returns the tabular body fat kept on conflict.
func (m *Measurement) BodyFatTabular() Value {
	return m.SourceValue(FieldBodyFatPct, Tabular)
}

// BodyFatBinary returns the binary body fat kept on conflict.
func (m *Measurement) BodyFatBinary() Value {
	return m.SourceValue(FieldBodyFatPct, Binary)
}
