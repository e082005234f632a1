package reconciler

import (
	"cmp"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// instant keys a group by exact instant regardless of zone.
type instant struct {
	sec  int64
	nsec int
}

func instantOf(t time.Time) instant {
	return instant{sec: t.Unix(), nsec: t.Nanosecond()}
}

// group is every record of one kind sharing an identical instant.
type group struct {
	at      time.Time
	records []measurements.RawRecord
}

// collector partitions validated records by kind and groups them by instant.
type collector struct {
	tabular []*group
	binary  []*group
	invalid []error
	counts  map[measurements.SourceKind]int
	logger  *zerolog.Logger
}

// newCollector validates and groups records. The input slice is not
// modified; records are ordered by compareRecords first so the
// representative of each group does not depend on arrival order.
func newCollector(records []measurements.RawRecord, logger *zerolog.Logger) *collector {
	c := &collector{
		counts: make(map[measurements.SourceKind]int),
		logger: logger,
	}

	ordered := make([]measurements.RawRecord, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			c.logger.Warn().
				Err(err).
				Str("source_file", r.SourceFile).
				Msg("Skipping invalid record")
			c.invalid = append(c.invalid, err)
			continue
		}
		ordered = append(ordered, r)
	}
	slices.SortStableFunc(ordered, compareRecords)

	index := map[measurements.SourceKind]map[instant]*group{
		measurements.Tabular: {},
		measurements.Binary:  {},
	}
	for _, r := range ordered {
		c.counts[r.Kind]++
		key := instantOf(r.Timestamp)
		g, ok := index[r.Kind][key]
		if !ok {
			g = &group{at: r.Timestamp}
			index[r.Kind][key] = g
			if r.Kind == measurements.Tabular {
				c.tabular = append(c.tabular, g)
			} else {
				c.binary = append(c.binary, g)
			}
		}
		g.records = append(g.records, r)
	}

	return c
}

// compareRecords is a total order over records, so that rows of one file
// sharing an instant still sort the same way whatever order they arrive in.
func compareRecords(a, b measurements.RawRecord) int {
	if c := cmp.Or(
		a.Timestamp.Compare(b.Timestamp),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.SourceFile, b.SourceFile),
		cmp.Compare(a.SourceFileID, b.SourceFileID),
	); c != 0 {
		return c
	}
	for _, f := range measurements.Fields {
		if c := compareValues(f.Get(a.Composition), f.Get(b.Composition)); c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders present values ascending, then absent ones, so a
// group's first record carries as many values as its rows allow.
func compareValues(a, b measurements.Value) int {
	av, aok := a.Get()
	bv, bok := b.Get()
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	return cmp.Compare(av, bv)
}

// claim returns the unclaimed binary groups within tolerance of g and marks
// them claimed.
func (c *collector) claim(g *group, claimed []bool, tolerance time.Duration, match func(a, b time.Time, tol time.Duration) bool) []*group {
	var out []*group
	for i, b := range c.binary {
		if claimed[i] || !match(g.at, b.at, tolerance) {
			continue
		}
		claimed[i] = true
		out = append(out, b)
	}
	return out
}

func flatten(groups []*group) []measurements.RawRecord {
	var out []measurements.RawRecord
	for _, g := range groups {
		out = append(out, g.records...)
	}
	return out
}
