package comparison

import (
	"time"

	"github.com/agentstation/bodymap/pkg/constants"
)

// TimeRange is the earliest and latest instant seen on one side of a pair.
type TimeRange struct {
	Min time.Time `json:"min" yaml:"min"`
	Max time.Time `json:"max" yaml:"max"`
}

func (r *TimeRange) extend(t time.Time) *TimeRange {
	if r == nil {
		return &TimeRange{Min: t, Max: t}
	}
	if t.Before(r.Min) {
		r.Min = t
	}
	if t.After(r.Max) {
		r.Max = t
	}
	return r
}

// Result is the audit of one file pair. A side without a file reports
// "N/A" for its name and id.
type Result struct {
	TabularFile   string         `json:"csv_file_name" yaml:"csv_file_name"`
	BinaryFile    string         `json:"fit_file_name" yaml:"fit_file_name"`
	TabularFileID string         `json:"csv_file_id" yaml:"csv_file_id"`
	BinaryFileID  string         `json:"fit_file_id" yaml:"fit_file_id"`
	Period        *Period        `json:"period,omitempty" yaml:"period,omitempty"`
	TabularOnly   int            `json:"csv_only_count" yaml:"csv_only_count"`
	BinaryOnly    int            `json:"fit_only_count" yaml:"fit_only_count"`
	Both          int            `json:"both_count" yaml:"both_count"`
	Mismatches    map[string]int `json:"mismatches" yaml:"mismatches"`
	TabularRange  *TimeRange     `json:"csv_timestamp_range" yaml:"csv_timestamp_range"`
	BinaryRange   *TimeRange     `json:"fit_timestamp_range" yaml:"fit_timestamp_range"`
	WeightMAE     *float64       `json:"weight_mae" yaml:"weight_mae"`
	// WeightPairs is the number of matched pairs behind WeightMAE.
	WeightPairs int `json:"weight_pairs" yaml:"weight_pairs"`
}

func newResult() *Result {
	return &Result{
		TabularFile:   constants.NotAvailable,
		BinaryFile:    constants.NotAvailable,
		TabularFileID: constants.NotAvailable,
		BinaryFileID:  constants.NotAvailable,
		Mismatches:    make(map[string]int),
	}
}

// Paired reports whether both sides have a file.
func (r *Result) Paired() bool {
	return r.TabularFile != constants.NotAvailable && r.BinaryFile != constants.NotAvailable
}

// TotalMismatches sums the per-field mismatch counts.
func (r *Result) TotalMismatches() int {
	total := 0
	for _, n := range r.Mismatches {
		total += n
	}
	return total
}

// Summary aggregates results across all pairs.
type Summary struct {
	Pairs            int            `json:"pairs" yaml:"pairs"`
	Paired           int            `json:"paired" yaml:"paired"`
	TabularOnlyFiles int            `json:"csv_only_files" yaml:"csv_only_files"`
	BinaryOnlyFiles  int            `json:"fit_only_files" yaml:"fit_only_files"`
	Both             int            `json:"both_count" yaml:"both_count"`
	TabularOnly      int            `json:"csv_only_count" yaml:"csv_only_count"`
	BinaryOnly       int            `json:"fit_only_count" yaml:"fit_only_count"`
	Mismatches       map[string]int `json:"mismatches" yaml:"mismatches"`
	WeightMAE        *float64       `json:"weight_mae" yaml:"weight_mae"`
}

// Summarize totals the results. WeightMAE is the mean over every weight
// difference, not the mean of per-pair means.
func Summarize(results []*Result) Summary {
	s := Summary{Mismatches: make(map[string]int)}
	var weighted float64
	var pairs int

	for _, r := range results {
		if r == nil {
			continue
		}
		s.Pairs++
		switch {
		case r.Paired():
			s.Paired++
		case r.TabularFile != constants.NotAvailable:
			s.TabularOnlyFiles++
		default:
			s.BinaryOnlyFiles++
		}
		s.Both += r.Both
		s.TabularOnly += r.TabularOnly
		s.BinaryOnly += r.BinaryOnly
		for field, n := range r.Mismatches {
			s.Mismatches[field] += n
		}
		if r.WeightMAE != nil && r.WeightPairs > 0 {
			weighted += *r.WeightMAE * float64(r.WeightPairs)
			pairs += r.WeightPairs
		}
	}

	if pairs > 0 {
		mae := weighted / float64(pairs)
		s.WeightMAE = &mae
	}
	return s
}
