// Package reconciler consolidates raw tabular and binary measurements into
// one canonical, deduplicated series. Records of the two sources that
// describe the same weigh-in are matched by instant, merged field by field,
// and every disagreement is recorded with its provenance.
package reconciler

import (
	"context"
	"slices"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/matching"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Reconciler is the main interface for consolidating raw records.
type Reconciler interface {
	// Consolidate merges raw records into canonical measurements sorted by
	// timestamp. Groups that cannot be merged are excluded and reported in
	// Result.Errors; the run fails only when every candidate is excluded.
	Consolidate(ctx context.Context, records []measurements.RawRecord) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	strategy           Strategy
	merger             *Merger
	identity           *identity.Generator
	timestampTolerance time.Duration
	clock              func() time.Time
}

// New creates a new Reconciler with options. Invalid options are reported
// as configuration errors before any record is seen.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &reconciler{
		strategy:           options.strategy,
		merger:             NewMerger(options.tolerance, options.strategy),
		identity:           options.identity,
		timestampTolerance: options.timestampTolerance,
		clock:              options.clock,
	}, nil
}

// candidate is one group of records destined to become a measurement.
type candidate struct {
	tabular []measurements.RawRecord
	binary  []measurements.RawRecord
}

// Consolidate performs consolidation step by step.
func (r *reconciler) Consolidate(ctx context.Context, records []measurements.RawRecord) (*Result, error) {
	logger := logging.FromContext(ctx)
	now := r.clock()
	result := NewResult(now)
	result.Metadata.Strategy = r.strategy

	// Step 1: Validate, partition and group
	c := newCollector(records, logger)
	result.Errors = append(result.Errors, c.invalid...)

	stats := &result.Metadata.Stats
	stats.TabularRecords = c.counts[measurements.Tabular]
	stats.BinaryRecords = c.counts[measurements.Binary]
	stats.InvalidRecords = len(c.invalid)
	stats.TabularGroups = len(c.tabular)
	stats.BinaryGroups = len(c.binary)

	logger.Info().
		Int("tabular_records", stats.TabularRecords).
		Int("binary_records", stats.BinaryRecords).
		Int("invalid_records", stats.InvalidRecords).
		Msg("Consolidating records")

	// Step 2: Pair groups
	candidates, err := r.pair(ctx, c, stats)
	if err != nil {
		return nil, err
	}

	// Step 3: Merge each candidate
	processedAt := utc.New(now)
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := r.build(cand, processedAt)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("Excluding group from consolidation")
			stats.Excluded++
			result.Errors = append(result.Errors, err)
			continue
		}
		if m.HasConflicts() {
			stats.Conflicts++
			logger.Debug().
				Str("record_id", m.RecordID).
				Strs("fields", m.ConflictingFields).
				Msg("Conflicting fields")
		}
		result.Measurements = append(result.Measurements, m)
	}

	if len(records) > 0 && len(result.Measurements) == 0 {
		msg := "no measurement survived merge"
		if len(candidates) == 0 {
			msg = "no valid input records"
		}
		return nil, errors.NewConsolidationError(msg, len(candidates), result.Errors)
	}

	// Step 4: Order by timestamp, ties keep candidate order
	slices.SortStableFunc(result.Measurements, func(a, b measurements.Measurement) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	result.Finalize(r.clock())
	logger.Info().
		Int("measurements", len(result.Measurements)).
		Int("excluded", stats.Excluded).
		Int("conflicts", stats.Conflicts).
		Msg("Consolidation complete")

	return result, nil
}

// pair walks tabular groups in ascending instant order; each absorbs every
// binary group within tolerance that no earlier tabular group claimed.
// Unclaimed binary groups become binary-only candidates.
func (r *reconciler) pair(ctx context.Context, c *collector, stats *ResultStatistics) ([]candidate, error) {
	claimed := make([]bool, len(c.binary))
	candidates := make([]candidate, 0, len(c.tabular)+len(c.binary))

	for _, g := range c.tabular {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		absorbed := c.claim(g, claimed, r.timestampTolerance, matching.Match)
		if len(absorbed) > 0 {
			stats.Matched++
			if len(absorbed) > 1 {
				logEvent(c.logger.Debug(), g, absorbed).Msg("Tabular group absorbed several binary groups")
			}
		} else {
			stats.TabularOnly++
		}
		candidates = append(candidates, candidate{tabular: g.records, binary: flatten(absorbed)})
	}

	for i, g := range c.binary {
		if claimed[i] {
			continue
		}
		stats.BinaryOnly++
		candidates = append(candidates, candidate{binary: g.records})
	}

	return candidates, nil
}

func logEvent(e *zerolog.Event, g *group, absorbed []*group) *zerolog.Event {
	times := make([]time.Time, len(absorbed))
	for i, b := range absorbed {
		times[i] = b.at
	}
	return e.Time("timestamp", g.at).Times("binary_timestamps", times)
}

// build merges one candidate into a measurement. The first record of each
// side represents it; lineage lists carry every contributing record.
func (r *reconciler) build(cand candidate, processedAt utc.Time) (measurements.Measurement, error) {
	all := make([]measurements.RawRecord, 0, len(cand.tabular)+len(cand.binary))
	all = append(all, cand.tabular...)
	all = append(all, cand.binary...)

	var tabular, binary measurements.Composition
	if len(cand.tabular) > 0 {
		tabular = cand.tabular[0].Composition
	}
	if len(cand.binary) > 0 {
		binary = cand.binary[0].Composition
	}

	m := measurements.Measurement{
		Timestamp:     all[0].Timestamp,
		SourceFiles:   make([]string, 0, len(all)),
		SourceFileIDs: make([]string, 0, len(all)),
		ProcessedAt:   processedAt,
	}
	kinds := make([]measurements.SourceKind, 0, len(all))
	for _, rec := range all {
		m.SourceFiles = append(m.SourceFiles, rec.SourceFile)
		m.SourceFileIDs = append(m.SourceFileIDs, rec.SourceFileID)
		kinds = append(kinds, rec.Kind)
	}
	m.SourceKinds = measurements.SortKinds(kinds)

	merged := r.merger.Merge(tabular, binary)
	weight, ok := merged.Composition.WeightKg.Get()
	if !ok {
		return measurements.Measurement{}, errors.NewMergeError(
			m.Timestamp.Format(time.RFC3339), m.SourceFiles, errors.ErrMissingWeight)
	}

	m.Composition = merged.Composition
	m.FieldSources = merged.FieldSources
	m.ConflictingFields = merged.Conflicts
	m.ChosenSource = merged.Chosen
	m.Audit = merged.Audit
	m.RecordID = r.identity.Generate(m.Timestamp, weight, m.SourceKinds)

	return m, nil
}
