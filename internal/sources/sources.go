// Package sources wires the built-in parsers into a registry.
package sources

import (
	"time"

	"github.com/agentstation/bodymap/internal/sources/binary"
	"github.com/agentstation/bodymap/internal/sources/tabular"
	"github.com/agentstation/bodymap/pkg/sources"
)

// Extensions handled by the built-in parsers.
const (
	ExtTabular = ".csv"
	ExtBinary  = ".fit"
)

// NewRegistry creates a registry with the tabular and binary parsers
// configured for loc.
func NewRegistry(csvCfg tabular.Config, fitCfg binary.Config, loc *time.Location) (*sources.Registry, error) {
	csvParser, err := tabular.New(csvCfg, loc)
	if err != nil {
		return nil, err
	}
	fitParser, err := binary.New(fitCfg, loc)
	if err != nil {
		return nil, err
	}

	reg := sources.NewRegistry()
	reg.Set(ExtTabular, csvParser)
	reg.Set(ExtBinary, fitParser)
	return reg, nil
}
