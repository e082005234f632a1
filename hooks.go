package bodymap

import (
	"sync"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/provenance"
)

// Hook function types for pipeline events
type (
	// MeasurementHook is called for every measurement a build produces
	MeasurementHook func(m measurements.Measurement)

	// ConflictHook is called for every measurement carrying conflicts
	ConflictHook func(c provenance.Conflict)

	// FileHook is called once per ingested file
	FileHook func(e ingest.Event)
)

// hooks manages event callbacks
type hooks struct {
	mu            sync.RWMutex
	onMeasurement []MeasurementHook
	onConflict    []ConflictHook
	onFile        []FileHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnMeasurement registers a callback for built measurements
func (c *client) OnMeasurement(fn MeasurementHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onMeasurement = append(c.hooks.onMeasurement, fn)
}

// OnConflict registers a callback for conflicting measurements
func (c *client) OnConflict(fn ConflictHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onConflict = append(c.hooks.onConflict, fn)
}

// OnFile registers a callback for ingested files
func (c *client) OnFile(fn FileHook) {
	c.hooks.mu.Lock()
	defer c.hooks.mu.Unlock()
	c.hooks.onFile = append(c.hooks.onFile, fn)
}

func (h *hooks) triggerFiles(events []ingest.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range events {
		for _, fn := range h.onFile {
			fn(e)
		}
	}
}

// triggerBuild reports measurements in timestamp order, then conflicts in
// the same order.
func (h *hooks) triggerBuild(ms []measurements.Measurement, report *provenance.Report) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range ms {
		for _, fn := range h.onMeasurement {
			fn(m)
		}
	}
	for _, c := range report.Conflicts {
		for _, fn := range h.onConflict {
			fn(c)
		}
	}
}
