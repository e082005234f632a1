// Package authority holds the conflict-resolution preference table: which
// source wins for a field when the tabular and binary readings disagree.
package authority

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Authority determines which source is preferred for each field
type Authority interface {
	// Find returns the preference for a specific field, or nil when the
	// field has no entry and no default applies
	Find(field string) *Field

	// List returns all configured field preferences
	List() []Field

	// Default returns the fallback preference, if one is set
	Default() (measurements.SourceKind, bool)
}

// Field defines source preference for a field or field pattern
type Field struct {
	Path     string                  `json:"path" yaml:"path"`         // e.g., "weight_kg", "fat_*"
	Source   measurements.SourceKind `json:"source" yaml:"source"`     // Which source is preferred
	Priority int                     `json:"priority" yaml:"priority"` // Priority (higher = more authoritative)
}

type authorities struct {
	fields []Field
	def    *measurements.SourceKind
}

// Option configures an Authority
type Option func(*authorities)

// WithField adds a preference for a field path or pattern
func WithField(path string, source measurements.SourceKind) Option {
	return func(a *authorities) {
		a.fields = append(a.fields, Field{Path: path, Source: source})
	}
}

// WithFields adds preferences with explicit priorities
func WithFields(fields ...Field) Option {
	return func(a *authorities) {
		a.fields = append(a.fields, fields...)
	}
}

// WithDefault sets the fallback preference for fields without an entry
func WithDefault(source measurements.SourceKind) Option {
	return func(a *authorities) {
		a.def = &source
	}
}

// New creates an Authority. With no options, no field has a preference and
// conflicts fall back to the tabular value.
func New(opts ...Option) Authority {
	a := &authorities{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FromPreferences builds an Authority from configuration values, e.g.
// {"weight_kg": "fit"} with default "csv". An empty default means none.
// Unknown sources are rejected as configuration errors.
func FromPreferences(fields map[string]string, def string) (Authority, error) {
	var opts []Option

	// Deterministic order so that List is stable across runs.
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		kind, err := measurements.ParseSourceKind(fields[p])
		if err != nil {
			return nil, errors.NewConfigError("conflict_resolution", fmt.Sprintf("field %q: invalid preference %q", p, fields[p]), err)
		}
		opts = append(opts, WithField(p, kind))
	}

	if def != "" {
		kind, err := measurements.ParseSourceKind(def)
		if err != nil {
			return nil, errors.NewConfigError("conflict_resolution", fmt.Sprintf("invalid default preference %q", def), err)
		}
		opts = append(opts, WithDefault(kind))
	}

	return New(opts...), nil
}

// Find returns the preference for a field. The default preference is
// reported as a Field with the queried path and zero priority.
func (a *authorities) Find(field string) *Field {
	if f := ByField(field, a.fields); f != nil {
		return f
	}
	if a.def != nil {
		return &Field{Path: field, Source: *a.def}
	}
	return nil
}

// List returns all configured field preferences
func (a *authorities) List() []Field {
	return slices.Clone(a.fields)
}

// Default returns the fallback preference
func (a *authorities) Default() (measurements.SourceKind, bool) {
	if a.def == nil {
		return "", false
	}
	return *a.def, true
}

// ByField returns the best preference for a given field name
func ByField(field string, authorities []Field) *Field {
	var bestMatch *Field
	var bestPriority int
	var bestMatchLength int

	for i, auth := range authorities {
		if MatchesPattern(field, auth.Path) {
			// 1) priority, 2) pattern specificity (length), 3) order
			patternLength := len(auth.Path)
			if bestMatch == nil || auth.Priority > bestPriority ||
				(auth.Priority == bestPriority && patternLength > bestMatchLength) {
				bestMatch = &authorities[i]
				bestPriority = auth.Priority
				bestMatchLength = patternLength
			}
		}
	}

	return bestMatch
}

// MatchesPattern checks if a field name matches a pattern (supports * wildcards)
func MatchesPattern(field, pattern string) bool {
	if field == pattern {
		return true
	}

	// Simple wildcard at the end
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(field) >= len(prefix) && field[:len(prefix)] == prefix
	}

	matched, err := filepath.Match(pattern, field)
	if err != nil {
		return false
	}
	return matched
}

// FilterBySource returns only the preferences that pick source
func FilterBySource(authorities []Field, source measurements.SourceKind) []Field {
	var filtered []Field
	for _, auth := range authorities {
		if auth.Source == source {
			filtered = append(filtered, auth)
		}
	}
	return filtered
}
