package measurements

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentstation/bodymap/pkg/errors"
)

// SourceKind identifies which export channel produced a record.
type SourceKind string

const (
	// Tabular is the CSV export.
	Tabular SourceKind = "csv"
	// Binary is the FIT activity-file export.
	Binary SourceKind = "fit"
)

// Kinds lists the known source kinds in canonical order.
var Kinds = []SourceKind{Tabular, Binary}

// String returns the wire value of the kind.
func (k SourceKind) String() string {
	return string(k)
}

// Valid reports whether k is a known kind.
func (k SourceKind) Valid() bool {
	return k == Tabular || k == Binary
}

// Other returns the opposite kind.
func (k SourceKind) Other() SourceKind {
	if k == Tabular {
		return Binary
	}
	return Tabular
}

// ParseSourceKind accepts the wire values (csv, fit) as well as the
// descriptive names (tabular, binary).
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "tabular":
		return Tabular, nil
	case "fit", "binary":
		return Binary, nil
	default:
		return "", errors.NewValidationError("source_kind", s, fmt.Sprintf("unknown source kind %q", s))
	}
}

// SortKinds returns a sorted, de-duplicated copy of kinds.
func SortKinds(kinds []SourceKind) []SourceKind {
	out := slices.Clone(kinds)
	slices.Sort(out)
	return slices.Compact(out)
}

// JoinKinds sorts kinds lexicographically and joins them with sep.
func JoinKinds(kinds []SourceKind, sep string) string {
	sorted := SortKinds(kinds)
	parts := make([]string, len(sorted))
	for i, k := range sorted {
		parts[i] = string(k)
	}
	return strings.Join(parts, sep)
}

// FieldSource is the provenance tag recording which source(s) produced a
// field's final value.
type FieldSource string

const (
	// FromTabular marks a value only the tabular source reported.
	FromTabular FieldSource = "csv"
	// FromBinary marks a value only the binary source reported.
	FromBinary FieldSource = "fit"
	// Merged marks agreement (or absence on both sides).
	Merged FieldSource = "merged"
	// Conflict marks values that differ beyond tolerance.
	Conflict FieldSource = "conflict"
)

// SingleOrigin returns the tag for a value that came from kind alone.
func SingleOrigin(kind SourceKind) FieldSource {
	if kind == Binary {
		return FromBinary
	}
	return FromTabular
}
