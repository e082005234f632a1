// Package daily averages canonical measurements per calendar day.
package daily

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// DateLayout is the rendering of Day.Date.
const DateLayout = time.DateOnly

// Day holds the averages of one calendar day. Each reading is the mean of
// the measurements that reported it, rounded to two decimals; a reading no
// measurement reported stays absent.
type Day struct {
	Date                     string `json:"date" yaml:"date"`
	measurements.Composition `yaml:",inline"`
	RecordCount              int                       `json:"record_count" yaml:"record_count"`
	SourceKinds              []measurements.SourceKind `json:"source_types" yaml:"source_types"`
}

type accumulator struct {
	sums   map[string]float64
	counts map[string]int
	kinds  []measurements.SourceKind
	n      int
}

// Aggregate groups measurements by calendar day in loc and averages every
// present reading. A nil loc uses each measurement's own zone. The result
// is sorted by date.
func Aggregate(ms []measurements.Measurement, loc *time.Location) []Day {
	byDate := make(map[string]*accumulator)
	for _, m := range ms {
		ts := m.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		date := ts.Format(DateLayout)

		acc, ok := byDate[date]
		if !ok {
			acc = &accumulator{sums: make(map[string]float64), counts: make(map[string]int)}
			byDate[date] = acc
		}
		acc.n++
		acc.kinds = append(acc.kinds, m.SourceKinds...)
		for _, f := range measurements.Fields {
			if v, ok := f.Get(m.Composition).Get(); ok {
				acc.sums[f.Name] += v
				acc.counts[f.Name]++
			}
		}
	}

	days := make([]Day, 0, len(byDate))
	for date, acc := range byDate {
		day := Day{
			Date:        date,
			RecordCount: acc.n,
			SourceKinds: measurements.SortKinds(acc.kinds),
		}
		for _, f := range measurements.Fields {
			if n := acc.counts[f.Name]; n > 0 {
				f.Set(&day.Composition, measurements.Some(Round(acc.sums[f.Name]/float64(n), 2)))
			}
		}
		days = append(days, day)
	}

	// ISO dates sort lexically.
	slices.SortFunc(days, func(a, b Day) int {
		return strings.Compare(a.Date, b.Date)
	})
	return days
}

// Round rounds v to places decimals, halves to even.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.RoundToEven(v*p) / p
}
