package reconciler

import (
	"fmt"
	"math"
	"time"

	"github.com/agentstation/bodymap/pkg/authority"
	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
)

// Options configures a reconciler.
type options struct {
	strategy           Strategy
	customStrategy     bool
	authorities        authority.Authority
	tolerance          float64
	timestampTolerance time.Duration
	identity           *identity.Generator
	clock              func() time.Time
}

func defaultOptions() *options {
	authorities := authority.New()
	return &options{
		strategy:           NewAuthorityStrategy(authorities),
		authorities:        authorities,
		tolerance:          constants.DefaultNumericTolerance,
		timestampTolerance: constants.DefaultTimestampTolerance,
		clock:              time.Now,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.identity == nil {
		gen, err := identity.New(identity.DefaultConfig())
		if err != nil {
			return nil, err
		}
		options.identity = gen
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithTolerance sets the numeric tolerance under which two readings agree.
func WithTolerance(tolerance float64) Option {
	return func(r *options) error {
		if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
			return errors.NewConfigError("reconciler", fmt.Sprintf("numeric tolerance must be a finite non-negative number, got %v", tolerance), nil)
		}
		r.tolerance = tolerance
		return nil
	}
}

// WithTimestampTolerance sets how far apart two instants may be and still
// describe the same weigh-in.
func WithTimestampTolerance(tolerance time.Duration) Option {
	return func(r *options) error {
		if tolerance < 0 {
			return errors.NewConfigError("reconciler", fmt.Sprintf("timestamp tolerance must not be negative, got %s", tolerance), nil)
		}
		r.timestampTolerance = tolerance
		return nil
	}
}

// WithStrategy sets the conflict resolution strategy.
func WithStrategy(strategy Strategy) Option {
	return func(r *options) error {
		if strategy == nil {
			return errors.NewConfigError("reconciler", "strategy cannot be nil", nil)
		}
		r.strategy = strategy
		r.customStrategy = true
		return nil
	}
}

// WithAuthority sets the field preference table. Unless a strategy was
// set explicitly, conflicts are resolved through it.
func WithAuthority(authorities authority.Authority) Option {
	return func(r *options) error {
		if authorities == nil {
			return errors.NewConfigError("reconciler", "authority cannot be nil", nil)
		}
		r.authorities = authorities
		if !r.customStrategy {
			r.strategy = NewAuthorityStrategy(authorities)
		}
		return nil
	}
}

// WithIdentity sets the record id generator.
func WithIdentity(gen *identity.Generator) Option {
	return func(r *options) error {
		if gen == nil {
			return errors.NewConfigError("reconciler", "identity generator cannot be nil", nil)
		}
		r.identity = gen
		return nil
	}
}

// WithClock overrides the source of processing timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *options) error {
		if clock == nil {
			return errors.NewConfigError("reconciler", "clock cannot be nil", nil)
		}
		r.clock = clock
		return nil
	}
}
