package bodymap

import (
	"context"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/provenance"
	"github.com/agentstation/bodymap/pkg/reconciler"
)

// BuildResult is the outcome of a build.
type BuildResult struct {
	RunID         string
	Batch         *ingest.Batch
	Consolidation *reconciler.Result
	Provenance    *provenance.Report
	// Artifacts lists every file written, in write order.
	Artifacts []string
	Stored    int
	Published int
}

// Measurements returns the consolidated measurements.
func (r *BuildResult) Measurements() []measurements.Measurement {
	if r == nil || r.Consolidation == nil {
		return nil
	}
	return r.Consolidation.Measurements
}

// Build scans, consolidates and writes the dataset.
func (c *client) Build(ctx context.Context) (*BuildResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.build(withRun(ctx, batch.RunID), batch)
	if err != nil {
		return nil, err
	}
	if err := c.flushMetrics(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// build runs every stage after the scan.
func (c *client) build(ctx context.Context, batch *ingest.Batch) (*BuildResult, error) {
	logger := logging.FromContext(ctx)
	result := &BuildResult{RunID: batch.RunID, Batch: batch}
	c.observe(func() { c.options.metrics.ObserveBatch(batch) })

	// Step 1: Consolidate
	res, err := c.reconciler.Consolidate(ctx, batch.Records)
	if err != nil {
		return nil, err
	}
	result.Consolidation = res
	c.observe(func() { c.options.metrics.ObserveConsolidation(res) })
	for _, e := range res.Errors {
		logger.Debug().Err(e).Msg("Dropped during consolidation")
	}

	// Step 2: Write artifacts
	paths, err := c.writer.WriteConsolidated(ctx, res.Measurements, c.cfg.Output.Formats)
	if err != nil {
		return nil, err
	}
	result.Artifacts = append(result.Artifacts, paths...)

	path, err := c.writer.WriteConflicts(ctx, res.Measurements)
	if err != nil {
		return nil, err
	}
	if path != "" {
		result.Artifacts = append(result.Artifacts, path)
	}

	result.Provenance = provenance.GenerateReport(res.Measurements, c.options.clock())
	path, err = c.writer.WriteProvenance(ctx, result.Provenance)
	if err != nil {
		return nil, err
	}
	result.Artifacts = append(result.Artifacts, path)

	// Step 3: Sinks
	if err := c.sink(ctx, result); err != nil {
		return nil, err
	}

	c.hooks.triggerBuild(res.Measurements, result.Provenance)
	logger.Info().Msg(res.Summary())
	return result, nil
}

// sink stores and publishes the dataset.
func (c *client) sink(ctx context.Context, result *BuildResult) error {
	ms := result.Measurements()
	if len(ms) == 0 {
		return nil
	}
	if s := c.options.store; s != nil {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
		n, err := s.Upsert(ctx, ms)
		if err != nil {
			return err
		}
		result.Stored = n
	}
	if p := c.options.publisher; p != nil {
		n, err := p.Publish(ctx, result.RunID, ms)
		if err != nil {
			return err
		}
		result.Published = n
	}
	return nil
}

// observe runs fn when metrics are enabled.
func (c *client) observe(fn func()) {
	if c.options.metrics != nil {
		fn()
	}
}

// flushMetrics stamps the run and writes the metrics file.
func (c *client) flushMetrics(ctx context.Context) error {
	m := c.options.metrics
	if m == nil {
		return nil
	}
	m.MarkRun(c.options.clock())
	path := c.cfg.Sinks.MetricsFile
	if path == "" {
		return nil
	}
	if err := m.WriteTextfile(path); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().Str("path", path).Msg("Wrote metrics")
	return nil
}
