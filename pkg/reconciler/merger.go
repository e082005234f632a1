package reconciler

import (
	"math"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// FieldMerge is the outcome of merging one field.
type FieldMerge struct {
	Value    measurements.Value
	Source   measurements.FieldSource
	Conflict bool
	// Chosen is the kind a preference picked when Conflict is set.
	Chosen *measurements.SourceKind
	Reason string
}

// Merged is the outcome of merging every field of one group.
type Merged struct {
	Composition  measurements.Composition
	FieldSources map[string]measurements.FieldSource
	Conflicts    []string
	Audit        map[string]measurements.SourceValues
	// Chosen is the kind picked for the first conflicting field that a
	// preference resolved, in field table order.
	Chosen *measurements.SourceKind
}

// Merger merges the readings of the two sources field by field.
type Merger struct {
	tolerance float64
	strategy  Strategy
}

// NewMerger creates a Merger. A nil strategy resolves every conflict to the
// tabular value.
func NewMerger(tolerance float64, strategy Strategy) *Merger {
	if strategy == nil {
		strategy = NewAuthorityStrategy(nil)
	}
	return &Merger{tolerance: tolerance, strategy: strategy}
}

// Field merges one field. Absent on both sides yields an absent merged
// value; one side present yields that value; agreement within tolerance
// keeps the tabular value; anything else is a conflict settled by the
// strategy.
func (m *Merger) Field(field measurements.Field, tabular, binary measurements.Value) FieldMerge {
	tv, tok := tabular.Get()
	bv, bok := binary.Get()

	switch {
	case !tok && !bok:
		return FieldMerge{Source: measurements.Merged}
	case !bok:
		return FieldMerge{Value: tabular, Source: measurements.FromTabular}
	case !tok:
		return FieldMerge{Value: binary, Source: measurements.FromBinary}
	}

	tolerance := m.tolerance
	if field.Tolerance != nil {
		tolerance = *field.Tolerance
	}
	if math.Abs(tv-bv) <= tolerance {
		return FieldMerge{Value: tabular, Source: measurements.Merged}
	}

	res := m.strategy.ResolveConflict(field.Name, tv, bv)
	return FieldMerge{
		Value:    measurements.Some(res.Value),
		Source:   measurements.Conflict,
		Conflict: true,
		Chosen:   res.Chosen,
		Reason:   res.Reason,
	}
}

// Merge runs Field over the whole field table. Either side may be the zero
// Composition when that source did not contribute.
func (m *Merger) Merge(tabular, binary measurements.Composition) Merged {
	out := Merged{
		FieldSources: make(map[string]measurements.FieldSource, len(measurements.Fields)),
		Conflicts:    []string{},
	}

	for _, f := range measurements.Fields {
		tv, bv := f.Get(tabular), f.Get(binary)
		fm := m.Field(f, tv, bv)

		f.Set(&out.Composition, fm.Value)
		out.FieldSources[f.Name] = fm.Source
		if !fm.Conflict {
			continue
		}

		out.Conflicts = append(out.Conflicts, f.Name)
		if out.Chosen == nil && fm.Chosen != nil {
			out.Chosen = fm.Chosen
		}
		if f.Audited {
			if out.Audit == nil {
				out.Audit = make(map[string]measurements.SourceValues)
			}
			out.Audit[f.Name] = measurements.SourceValues{Tabular: tv, Binary: bv}
		}
	}

	return out
}
