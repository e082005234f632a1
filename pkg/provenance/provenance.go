// Package provenance reports where the values of canonical measurements
// came from: which fields conflicted, what each source reported, and how
// often each field was merged, taken from one source, or disputed.
package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"github.com/goccy/go-yaml"

	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Conflict describes one measurement with at least one disputed field.
type Conflict struct {
	RecordID     string                               `json:"record_id" yaml:"record_id"`
	Timestamp    time.Time                            `json:"timestamp" yaml:"timestamp"`
	Fields       []string                             `json:"conflicting_fields" yaml:"conflicting_fields"`
	Values       map[string]measurements.SourceValues `json:"values,omitempty" yaml:"values,omitempty"` // audited fields only
	ChosenSource *measurements.SourceKind             `json:"chosen_source,omitempty" yaml:"chosen_source,omitempty"`
	SourceFiles  []string                             `json:"source_files" yaml:"source_files"`
}

// Tally counts how each field's final value was obtained.
type Tally map[measurements.FieldSource]int

// Report summarizes the provenance of a consolidated dataset.
type Report struct {
	GeneratedAt  utc.Time         `json:"generated_at" yaml:"generated_at"`
	Measurements int              `json:"measurements" yaml:"measurements"`
	Conflicts    []Conflict       `json:"conflicts" yaml:"conflicts"`
	FieldSources map[string]Tally `json:"field_sources" yaml:"field_sources"`
}

// GenerateReport builds a report over ms, keeping their order.
func GenerateReport(ms []measurements.Measurement, generatedAt time.Time) *Report {
	report := &Report{
		GeneratedAt:  utc.New(generatedAt),
		Measurements: len(ms),
		Conflicts:    []Conflict{},
		FieldSources: make(map[string]Tally, len(measurements.Fields)),
	}

	for _, m := range ms {
		for field, src := range m.FieldSources {
			tally, ok := report.FieldSources[field]
			if !ok {
				tally = make(Tally)
				report.FieldSources[field] = tally
			}
			tally[src]++
		}

		if !m.HasConflicts() {
			continue
		}
		c := Conflict{
			RecordID:     m.RecordID,
			Timestamp:    m.Timestamp,
			Fields:       slices.Clone(m.ConflictingFields),
			ChosenSource: m.ChosenSource,
			SourceFiles:  slices.Clone(m.SourceFiles),
		}
		for _, field := range m.ConflictingFields {
			if sv, ok := m.Audit[field]; ok {
				if c.Values == nil {
					c.Values = make(map[string]measurements.SourceValues)
				}
				c.Values[field] = sv
			}
		}
		report.Conflicts = append(report.Conflicts, c)
	}

	return report
}

// ConflictCount returns how many measurements disputed field.
func (r *Report) ConflictCount(field string) int {
	return r.FieldSources[field][measurements.Conflict]
}

// String generates a human-readable rendering of the report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")
	sb.WriteString(fmt.Sprintf("Measurements: %d, with conflicts: %d\n\n", r.Measurements, len(r.Conflicts)))

	sb.WriteString("Field sources\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
	for _, f := range measurements.Fields {
		tally, ok := r.FieldSources[f.Name]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-24s csv=%d fit=%d merged=%d conflict=%d\n", f.Name,
			tally[measurements.FromTabular], tally[measurements.FromBinary],
			tally[measurements.Merged], tally[measurements.Conflict]))
	}

	if len(r.Conflicts) > 0 {
		sb.WriteString("\nConflicts\n")
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteString("\n")
		for i, c := range r.Conflicts {
			if i >= 20 { // Limit display
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.Conflicts)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("  %s %s: %s\n", c.Timestamp.Format(time.RFC3339), shortID(c.RecordID), strings.Join(c.Fields, ", ")))
			for _, field := range c.Fields {
				if sv, ok := c.Values[field]; ok {
					sb.WriteString(fmt.Sprintf("    %s: csv=%s fit=%s\n", field, sv.Tabular, sv.Binary))
				}
			}
			if c.ChosenSource != nil {
				sb.WriteString(fmt.Sprintf("    Selected: %s\n", *c.ChosenSource))
			}
		}
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Save writes the report as YAML, creating parent directories.
func (r *Report) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// Load reads a report from a YAML file.
// Returns nil, nil if the file doesn't exist (not an error).
func Load(path string) (*Report, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	// Path is from output configuration, not user input
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &r, nil
}
