package bodymap

import (
	"context"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// CompareResult is the outcome of a comparison.
type CompareResult struct {
	RunID    string
	Batch    *ingest.Batch
	Results  []*comparison.Result
	Summary  comparison.Summary
	Artifact string
}

// Compare scans the raw directory and compares sources per period.
func (c *client) Compare(ctx context.Context) (*CompareResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	result, err := c.compare(withRun(ctx, batch.RunID), batch)
	if err != nil {
		return nil, err
	}
	if err := c.flushMetrics(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) compare(ctx context.Context, batch *ingest.Batch) (*CompareResult, error) {
	results := c.comparer.Compare(ctx, batch.ByKind(measurements.Tabular), batch.ByKind(measurements.Binary))
	c.observe(func() { c.options.metrics.ObserveComparison(results) })

	path, err := c.writer.WriteComparison(ctx, results)
	if err != nil {
		return nil, err
	}
	return &CompareResult{
		RunID:    batch.RunID,
		Batch:    batch,
		Results:  results,
		Summary:  comparison.Summarize(results),
		Artifact: path,
	}, nil
}
