// Package comparison audits how well the tabular and binary exports agree,
// one file pair at a time. It never feeds the canonical dataset.
package comparison

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/matching"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Reporter compares same-period tabular and binary files.
type Reporter struct {
	tolerance          float64
	timestampTolerance time.Duration
}

// Option configures a Reporter.
type Option func(*Reporter) error

// WithTolerance sets the numeric tolerance above which a field mismatches.
func WithTolerance(tolerance float64) Option {
	return func(r *Reporter) error {
		if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
			return errors.NewConfigError("comparison", fmt.Sprintf("numeric tolerance must be a finite non-negative number, got %v", tolerance), nil)
		}
		r.tolerance = tolerance
		return nil
	}
}

// WithTimestampTolerance sets the window within which two records match.
func WithTimestampTolerance(tolerance time.Duration) Option {
	return func(r *Reporter) error {
		if tolerance < 0 {
			return errors.NewConfigError("comparison", fmt.Sprintf("timestamp tolerance must not be negative, got %s", tolerance), nil)
		}
		r.timestampTolerance = tolerance
		return nil
	}
}

// New creates a Reporter. Defaults match the reconciler's.
func New(opts ...Option) (*Reporter, error) {
	r := &Reporter{
		tolerance:          constants.DefaultNumericTolerance,
		timestampTolerance: constants.DefaultTimestampTolerance,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// fileRecords is every record of one source file, in input order.
type fileRecords struct {
	name    string
	records []measurements.RawRecord
}

// byFile groups records by source file in first-seen order.
func byFile(records []measurements.RawRecord) []*fileRecords {
	var files []*fileRecords
	index := make(map[string]*fileRecords)
	for _, rec := range records {
		f, ok := index[rec.SourceFile]
		if !ok {
			f = &fileRecords{name: rec.SourceFile}
			index[rec.SourceFile] = f
			files = append(files, f)
		}
		f.records = append(f.records, rec)
	}
	return files
}

// byPeriod maps each parseable file to its period. When several files share
// a period the last one wins.
func byPeriod(ctx context.Context, files []*fileRecords) (map[Period]*fileRecords, []Period) {
	logger := logging.FromContext(ctx)
	periods := make(map[Period]*fileRecords)
	var order []Period
	for _, f := range files {
		p, err := ParsePeriod(f.name)
		if err != nil {
			logger.Debug().Err(err).Str("file", f.name).Msg("File name has no period, leaving unpaired")
			continue
		}
		if _, seen := periods[p]; !seen {
			order = append(order, p)
		}
		periods[p] = f
	}
	return periods, order
}

type pair struct {
	period  *Period
	tabular []measurements.RawRecord
	binary  []measurements.RawRecord
}

// pairs matches files by period. Paired files come first in tabular
// first-seen period order, then unpaired binary files, then unpaired
// tabular files.
func pairs(ctx context.Context, tabular, binary []measurements.RawRecord) []pair {
	tabFiles := byFile(tabular)
	binFiles := byFile(binary)
	tabByPeriod, tabOrder := byPeriod(ctx, tabFiles)
	binByPeriod, _ := byPeriod(ctx, binFiles)

	var out []pair
	pairedTab := make(map[string]bool)
	pairedBin := make(map[string]bool)

	for _, p := range tabOrder {
		b, ok := binByPeriod[p]
		if !ok {
			continue
		}
		t := tabByPeriod[p]
		period := p
		out = append(out, pair{period: &period, tabular: t.records, binary: b.records})
		pairedTab[t.name] = true
		pairedBin[b.name] = true
	}

	for _, f := range binFiles {
		if !pairedBin[f.name] {
			out = append(out, pair{binary: f.records})
		}
	}
	for _, f := range tabFiles {
		if !pairedTab[f.name] {
			out = append(out, pair{tabular: f.records})
		}
	}
	return out
}

// Compare returns one result per file pair. Empty input yields an empty
// slice. Records are only read.
func (r *Reporter) Compare(ctx context.Context, tabular, binary []measurements.RawRecord) []*Result {
	logger := logging.FromContext(ctx)
	logger.Info().
		Int("tabular_records", len(tabular)).
		Int("binary_records", len(binary)).
		Msg("Comparing records")

	ps := pairs(ctx, tabular, binary)
	results := make([]*Result, 0, len(ps))
	for _, p := range ps {
		results = append(results, r.comparePair(p))
	}

	logger.Info().Int("pairs", len(results)).Msg("Compared file pairs")
	return results
}

// comparePair matches each tabular record to the first binary record
// within tolerance, in binary input order. A binary record may be matched
// by several tabular records.
func (r *Reporter) comparePair(p pair) *Result {
	res := newResult()
	res.Period = p.period

	if len(p.tabular) > 0 {
		res.TabularFile = p.tabular[0].SourceFile
		res.TabularFileID = orNotAvailable(p.tabular[0].SourceFileID)
	}
	if len(p.binary) > 0 {
		res.BinaryFile = p.binary[0].SourceFile
		res.BinaryFileID = orNotAvailable(p.binary[0].SourceFileID)
	}
	for _, rec := range p.tabular {
		res.TabularRange = res.TabularRange.extend(rec.Timestamp)
	}
	for _, rec := range p.binary {
		res.BinaryRange = res.BinaryRange.extend(rec.Timestamp)
	}

	matched := make([]bool, len(p.binary))
	var weightDiffs []float64
	compared := measurements.ComparedFields()

	for _, t := range p.tabular {
		idx := -1
		for i, b := range p.binary {
			if matching.Match(t.Timestamp, b.Timestamp, r.timestampTolerance) {
				idx = i
				break
			}
		}
		if idx < 0 {
			res.TabularOnly++
			continue
		}

		b := p.binary[idx]
		matched[idx] = true
		res.Both++

		for _, f := range compared {
			tv, tok := f.Get(t.Composition).Get()
			bv, bok := f.Get(b.Composition).Get()
			if !tok || !bok {
				continue
			}
			diff := math.Abs(tv - bv)
			if f.Name == measurements.FieldWeightKg {
				weightDiffs = append(weightDiffs, diff)
			}
			if diff > r.tolerance {
				res.Mismatches[f.Name]++
			}
		}
	}

	for _, m := range matched {
		if !m {
			res.BinaryOnly++
		}
	}

	if len(weightDiffs) > 0 {
		var sum float64
		for _, d := range weightDiffs {
			sum += d
		}
		mae := sum / float64(len(weightDiffs))
		res.WeightMAE = &mae
		res.WeightPairs = len(weightDiffs)
	}

	return res
}

func orNotAvailable(s string) string {
	if s == "" {
		return constants.NotAvailable
	}
	return s
}
