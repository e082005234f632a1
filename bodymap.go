// Package bodymap consolidates body-composition exports from a smart scale
// into one canonical, deduplicated dataset.
//
// A Client ties the pieces together: it scans a raw directory of tabular
// (.csv) and binary (.fit) exports, pairs records that describe the same
// weigh-in, merges them field by field with provenance, and writes the
// dataset plus its audit artifacts. Optional sinks store the measurements
// in PostgreSQL, publish them to Kafka and export run metrics.
//
// Example usage:
//
//	cfg, err := config.Load("bodymap.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bm, err := bodymap.New(bodymap.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bm.Close()
//
//	bm.OnConflict(func(c provenance.Conflict) {
//	    log.Printf("conflict in %v at %s", c.Fields, c.Timestamp)
//	})
//
//	result, err := bm.Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Consolidation.Summary())
package bodymap

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/bodymap/internal/config"
	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/internal/matcher"
	"github.com/agentstation/bodymap/internal/metrics"
	"github.com/agentstation/bodymap/internal/output"
	internalsources "github.com/agentstation/bodymap/internal/sources"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/reconciler"
	"github.com/agentstation/bodymap/pkg/sources"
)

// Client runs the consolidation pipeline.
type Client interface {
	// Build scans the raw directory, consolidates and writes the dataset.
	Build(ctx context.Context) (*BuildResult, error)

	// Compare scans the raw directory and compares the tabular and binary
	// exports of each period.
	Compare(ctx context.Context) (*CompareResult, error)

	// Daily averages a consolidated dataset per local day. An empty path
	// reads the dataset written by Build.
	Daily(ctx context.Context, path string) (*DailyResult, error)

	// Run performs Build, Compare and Daily over a single scan.
	Run(ctx context.Context) (*RunResult, error)

	// Watch runs once, then polls the raw directory every interval and runs
	// again only when its files changed, until ctx is done.
	Watch(ctx context.Context, interval time.Duration) error

	// OnMeasurement registers a callback for every built measurement
	OnMeasurement(MeasurementHook)

	// OnConflict registers a callback for every measurement with conflicts
	OnConflict(ConflictHook)

	// OnFile registers a callback for every ingested file
	OnFile(FileHook)

	// Close releases the sinks.
	Close() error
}

// client is the default implementation of Client.
type client struct {
	mu      sync.Mutex // serializes runs
	options *options
	cfg     *config.Config
	loc     *time.Location

	registry   *sources.Registry
	exclude    *matcher.MultiMatcher
	reconciler reconciler.Reconciler
	comparer   *comparison.Reporter
	writer     *output.Writer

	hooks *hooks
}

var _ Client = (*client)(nil)

// New validates the configuration and builds every pipeline component.
// Configuration problems surface here, before any file is read.
func New(opts ...Option) (Client, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry, err := internalsources.NewRegistry(cfg.Sources.CSV, cfg.Sources.FIT, loc)
	if err != nil {
		return nil, err
	}

	exclude, err := cfg.Sources.ExcludeMatcher()
	if err != nil {
		return nil, err
	}

	ropts, err := cfg.Processing.ReconcilerOptions()
	if err != nil {
		return nil, err
	}
	ropts = append(ropts, reconciler.WithClock(o.clock))
	rec, err := reconciler.New(ropts...)
	if err != nil {
		return nil, err
	}

	comparer, err := comparison.New(cfg.Processing.ComparisonOptions()...)
	if err != nil {
		return nil, err
	}

	writer, err := output.NewWriter(cfg.Output.Dir, cfg.Output.Files)
	if err != nil {
		return nil, err
	}

	if o.metrics == nil && cfg.Sinks.MetricsFile != "" {
		o.metrics = metrics.New()
	}

	return &client{
		options:    o,
		cfg:        cfg,
		loc:        loc,
		registry:   registry,
		exclude:    exclude,
		reconciler: rec,
		comparer:   comparer,
		writer:     writer,
		hooks:      newHooks(),
	}, nil
}

// scanner returns a scanner over the configured raw directory.
func (c *client) scanner() *ingest.Scanner {
	opts := []ingest.Option{
		ingest.WithRecursive(c.cfg.Sources.Recursive),
		ingest.WithChecksum(c.cfg.Sources.Checksum),
		ingest.WithExclude(c.exclude),
		ingest.WithClock(c.options.clock),
	}
	if c.options.runID != "" {
		opts = append(opts, ingest.WithRunID(c.options.runID))
	}
	return ingest.NewScanner(c.registry, opts...)
}

// scan ingests the raw directory.
func (c *client) scan(ctx context.Context) (*ingest.Batch, error) {
	batch, err := c.scanner().Scan(ctx, c.cfg.Sources.RawDir)
	if err != nil {
		return nil, err
	}
	c.hooks.triggerFiles(batch.Events)
	if _, err := c.writer.WriteIngestionLog(ctx, batch.Events); err != nil {
		return nil, err
	}
	return batch, nil
}

// Close releases the sinks.
func (c *client) Close() error {
	if c.options.store != nil {
		c.options.store.Close()
	}
	if c.options.publisher != nil {
		return c.options.publisher.Close()
	}
	return nil
}

// withRun attaches the run id to the context logger.
func withRun(ctx context.Context, runID string) context.Context {
	return logging.WithRunID(ctx, runID)
}
