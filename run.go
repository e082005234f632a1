package bodymap

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
)

// RunResult is the outcome of a full run.
type RunResult struct {
	Build   *BuildResult
	Compare *CompareResult
	Daily   *DailyResult
}

// Run builds, compares and aggregates over a single scan.
func (c *client) Run(ctx context.Context) (*RunResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	ctx = withRun(ctx, batch.RunID)

	build, err := c.build(ctx, batch)
	if err != nil {
		return nil, err
	}
	cmp, err := c.compare(ctx, batch)
	if err != nil {
		return nil, err
	}
	days, err := c.daily(ctx, build.Measurements())
	if err != nil {
		return nil, err
	}
	if err := c.flushMetrics(ctx); err != nil {
		return nil, err
	}
	return &RunResult{Build: build, Compare: cmp, Daily: days}, nil
}

// Watch runs immediately and then checks the raw directory on every tick,
// running again only when its fingerprint changed. A failed run is logged
// and retried on the next tick; only cancellation stops the loop.
func (c *client) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return &errors.ValidationError{
			Field:   "interval",
			Value:   interval,
			Message: "watch interval must be positive",
		}
	}
	logger := logging.FromContext(ctx)
	scanner := c.scanner()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		fingerprint, err := scanner.Fingerprint(c.cfg.Sources.RawDir)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("Checking raw directory failed")
		case fingerprint == last:
			logger.Debug().Str("fingerprint", fingerprint).Msg("Raw directory unchanged")
		default:
			if _, err := c.Run(ctx); err != nil {
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				logger.Error().Err(err).Msg("Run failed")
			} else {
				last = fingerprint
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
