package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// Result represents the outcome of a consolidation run.
type Result struct {
	// Measurements sorted by timestamp
	Measurements []measurements.Measurement

	// Metadata
	Metadata ResultMetadata

	// Errors holds invalid records and excluded groups; none of them
	// aborted the run
	Errors []error
}

// ResultMetadata contains metadata about the consolidation run.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Strategy used for conflicts
	Strategy Strategy

	Stats ResultStatistics
}

// ResultStatistics contains statistics about the consolidation run.
type ResultStatistics struct {
	TabularRecords int   `json:"tabular_records" yaml:"tabular_records"`
	BinaryRecords  int   `json:"binary_records" yaml:"binary_records"`
	InvalidRecords int   `json:"invalid_records" yaml:"invalid_records"`
	TabularGroups  int   `json:"tabular_groups" yaml:"tabular_groups"`
	BinaryGroups   int   `json:"binary_groups" yaml:"binary_groups"`
	Matched        int   `json:"matched" yaml:"matched"` // tabular groups that absorbed a binary group
	TabularOnly    int   `json:"tabular_only" yaml:"tabular_only"`
	BinaryOnly     int   `json:"binary_only" yaml:"binary_only"`
	Excluded       int   `json:"excluded" yaml:"excluded"`
	Conflicts      int   `json:"conflicts" yaml:"conflicts"` // measurements with at least one conflicting field
	TotalTimeMs    int64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// IsSuccess returns true if no record or group was dropped.
func (r *Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	msg := fmt.Sprintf("Consolidated %d tabular and %d binary records into %d measurements (%d matched, %d tabular-only, %d binary-only, %d with conflicts)",
		s.TabularRecords, s.BinaryRecords, len(r.Measurements), s.Matched, s.TabularOnly, s.BinaryOnly, s.Conflicts)
	if !r.IsSuccess() {
		msg += fmt.Sprintf("; %d errors", len(r.Errors))
	}
	return msg
}

// NewResult creates a new result with defaults.
func NewResult(start time.Time) *Result {
	return &Result{
		Measurements: []measurements.Measurement{},
		Errors:       []error{},
		Metadata: ResultMetadata{
			StartTime: start,
		},
	}
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize(end time.Time) {
	r.Metadata.EndTime = end
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
	r.Metadata.Stats.TotalTimeMs = r.Metadata.Duration.Milliseconds()
}
