package reconciler

import (
	"fmt"
	"strings"

	"github.com/agentstation/bodymap/pkg/authority"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// StrategyType represents the type of conflict resolution strategy.
type StrategyType string

// String returns the string representation of a strategy type.
func (s StrategyType) String() string {
	return string(s)
}

// Name returns the name of the strategy type.
func (s StrategyType) Name() string {
	words := strings.Split(s.String(), "-")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

const (
	// StrategyTypeFieldAuthority resolves conflicts through the field preference table.
	StrategyTypeFieldAuthority StrategyType = "field-authority"
	// StrategyTypeSourceOrder resolves conflicts through a fixed source order.
	StrategyTypeSourceOrder StrategyType = "source-order"
)

// Resolution is the outcome of resolving one conflicting field.
type Resolution struct {
	Value float64
	// Chosen is set when a preference picked the value.
	Chosen *measurements.SourceKind
	Reason string
}

// Strategy decides which value to keep when both sources report a field
// and the values differ beyond tolerance. The field stays flagged as a
// conflict whatever the strategy returns.
type Strategy interface {
	// Type returns the strategy type
	Type() StrategyType

	// Description returns a human-readable description
	Description() string

	// ResolveConflict picks the value to keep for field
	ResolveConflict(field string, tabular, binary float64) Resolution
}

// baseStrategy provides common strategy functionality.
type baseStrategy struct {
	typ         StrategyType
	description string
}

// Type returns the strategy type.
func (s *baseStrategy) Type() StrategyType {
	return s.typ
}

// Description returns a human-readable description.
func (s *baseStrategy) Description() string {
	return s.description
}

func pick(kind measurements.SourceKind, tabular, binary float64) float64 {
	if kind == measurements.Binary {
		return binary
	}
	return tabular
}

// AuthorityStrategy uses the field preference table, then its default,
// then the tabular value.
type AuthorityStrategy struct {
	baseStrategy
	authorities authority.Authority
}

// NewAuthorityStrategy creates a new authority-based strategy.
func NewAuthorityStrategy(authorities authority.Authority) Strategy {
	return &AuthorityStrategy{
		baseStrategy: baseStrategy{
			typ:         StrategyTypeFieldAuthority,
			description: "Resolves conflicts using per-field source preferences",
		},
		authorities: authorities,
	}
}

// ResolveConflict uses the preference table to resolve a conflict.
func (s *AuthorityStrategy) ResolveConflict(field string, tabular, binary float64) Resolution {
	if s.authorities != nil {
		if pref := s.authorities.Find(field); pref != nil && pref.Source.Valid() {
			kind := pref.Source
			return Resolution{
				Value:  pick(kind, tabular, binary),
				Chosen: &kind,
				Reason: fmt.Sprintf("preferred source %s (pattern %q)", kind, pref.Path),
			}
		}
	}
	return Resolution{
		Value:  tabular,
		Reason: "no preference, using tabular value",
	}
}

// SourceOrderStrategy resolves conflicts using a fixed source precedence order.
type SourceOrderStrategy struct {
	baseStrategy
	order []measurements.SourceKind // First element = highest priority
}

// NewSourceOrderStrategy creates a strategy that always prefers the first
// kind in order. An empty order means tabular first.
func NewSourceOrderStrategy(order ...measurements.SourceKind) Strategy {
	if len(order) == 0 {
		order = []measurements.SourceKind{measurements.Tabular, measurements.Binary}
	}
	return &SourceOrderStrategy{
		baseStrategy: baseStrategy{
			typ:         StrategyTypeSourceOrder,
			description: fmt.Sprintf("Resolves conflicts using source priority order: %v", order),
		},
		order: order,
	}
}

// ResolveConflict returns the value of the highest priority kind.
func (s *SourceOrderStrategy) ResolveConflict(_ string, tabular, binary float64) Resolution {
	for _, kind := range s.order {
		if kind.Valid() {
			k := kind
			return Resolution{
				Value:  pick(k, tabular, binary),
				Chosen: &k,
				Reason: fmt.Sprintf("selected by source priority order (%s)", k),
			}
		}
	}
	return Resolution{Value: tabular, Reason: "no valid source in order, using tabular value"}
}
