package bodymap

import (
	"context"
	"time"

	"github.com/agentstation/bodymap/internal/config"
	"github.com/agentstation/bodymap/internal/metrics"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Store persists canonical measurements.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, ms []measurements.Measurement) (int, error)
	Close()
}

// Publisher sends canonical measurements downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, ms []measurements.Measurement) (int, error)
	Close() error
}

// options holds the Client configuration.
type options struct {
	config    *config.Config
	clock     func() time.Time
	runID     string
	store     Store
	publisher Publisher
	metrics   *metrics.Recorder
}

func newOptions(opts ...Option) (*options, error) {
	o := &options{clock: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.config == nil {
		o.config = config.Default()
	}
	return o, nil
}

// Option is a function that configures a Client.
type Option func(*options) error

// WithConfig sets the configuration. Without it the defaults are used.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.NewConfigError("bodymap", "config cannot be nil", nil)
		}
		o.config = cfg
		return nil
	}
}

// WithClock overrides the source of processing timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		if clock == nil {
			return errors.NewConfigError("bodymap", "clock cannot be nil", nil)
		}
		o.clock = clock
		return nil
	}
}

// WithRunID fixes the run identifier instead of generating one per run.
func WithRunID(id string) Option {
	return func(o *options) error {
		o.runID = id
		return nil
	}
}

// WithStore stores every built dataset.
func WithStore(s Store) Option {
	return func(o *options) error {
		o.store = s
		return nil
	}
}

// WithPublisher publishes every built dataset.
func WithPublisher(p Publisher) Option {
	return func(o *options) error {
		o.publisher = p
		return nil
	}
}

// WithMetrics records run metrics into r. They are written to the
// configured metrics file, if any.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) error {
		o.metrics = r
		return nil
	}
}
