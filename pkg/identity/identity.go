// Package identity derives deterministic record identifiers for canonical
// measurements, so that re-running consolidation over the same inputs yields
// the same ids.
package identity

import (
	"crypto/md5"  //nolint:gosec // selectable for compatibility with existing ids
	"crypto/sha1" //nolint:gosec // selectable for compatibility with existing ids
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Component names a fragment that can be part of the identity.
type Component string

const (
	// ComponentTimestamp is the bucketed measurement instant.
	ComponentTimestamp Component = "timestamp"
	// ComponentWeight is the primary weight with three decimals.
	ComponentWeight Component = "weight_kg"
	// ComponentSourceKinds is the sorted, comma-joined kind set.
	ComponentSourceKinds Component = "source_types"
)

// Separator joins fragments before hashing.
const Separator = "|"

// timestampLayout renders the bucketed instant with an explicit offset,
// never "Z", so UTC ids read "+00:00".
const timestampLayout = "2006-01-02T15:04:05-07:00"

var algorithms = map[string]func() hash.Hash{
	"md5":         md5.New,
	"sha1":        sha1.New,
	"sha224":      sha256.New224,
	"sha256":      sha256.New,
	"sha384":      sha512.New384,
	"sha512":      sha512.New,
	"sha3-256":    sha3.New256,
	"sha3-512":    sha3.New512,
	"blake2b-256": unkeyed(blake2b.New256),
	"blake2b-512": unkeyed(blake2b.New512),
}

// unkeyed adapts a keyed constructor to a plain one. It panics on error,
// which only happens for keys longer than 64 bytes.
func unkeyed(newHash func(key []byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := newHash(nil)
		if err != nil {
			panic("identity: unkeyed hash: " + err.Error())
		}
		return h
	}
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Config selects how identifiers are built.
type Config struct {
	Algorithm     string      `json:"algorithm" yaml:"algorithm" mapstructure:"algorithm"`
	BucketSeconds int         `json:"timestamp_rounding_seconds" yaml:"timestamp_rounding_seconds" mapstructure:"timestamp_rounding_seconds"`
	Include       []Component `json:"include_fields" yaml:"include_fields" mapstructure:"include_fields"`
}

// DefaultConfig hashes all three components with sha256 over one-minute
// buckets.
func DefaultConfig() Config {
	return Config{
		Algorithm:     constants.DefaultHashAlgorithm,
		BucketSeconds: constants.DefaultBucketSeconds,
		Include:       []Component{ComponentTimestamp, ComponentWeight, ComponentSourceKinds},
	}
}

// Validate reports configuration problems as *errors.ConfigError.
func (c Config) Validate() error {
	if _, ok := algorithms[strings.ToLower(c.Algorithm)]; !ok {
		return errors.NewConfigError("record_id", fmt.Sprintf("unsupported hash algorithm %q (supported: %s)", c.Algorithm, strings.Join(Algorithms(), ", ")), nil)
	}
	if c.BucketSeconds <= 0 {
		return errors.NewConfigError("record_id", fmt.Sprintf("timestamp rounding must be positive, got %d", c.BucketSeconds), nil)
	}
	if len(c.Include) == 0 {
		return errors.NewConfigError("record_id", "include_fields must not be empty", nil)
	}
	for _, comp := range c.Include {
		switch comp {
		case ComponentTimestamp, ComponentWeight, ComponentSourceKinds:
		default:
			return errors.NewConfigError("record_id", fmt.Sprintf("unknown include field %q", comp), nil)
		}
	}
	return nil
}

func (c Config) includes(comp Component) bool {
	return slices.Contains(c.Include, comp)
}

// Generator builds record identifiers. It is safe for concurrent use.
type Generator struct {
	cfg     Config
	newHash func() hash.Hash
}

// New validates cfg and returns a Generator.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Include = slices.Clone(cfg.Include)
	return &Generator{
		cfg:     cfg,
		newHash: algorithms[strings.ToLower(cfg.Algorithm)],
	}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate returns the lowercase hex digest identifying a measurement.
// Fragments appear in fixed order (timestamp, weight, kinds) for the
// components the configuration includes.
func (g *Generator) Generate(ts time.Time, weight float64, kinds []measurements.SourceKind) string {
	h := g.newHash()
	_, _ = io.WriteString(h, g.Key(ts, weight, kinds))
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns the pre-hash string for the given inputs.
func (g *Generator) Key(ts time.Time, weight float64, kinds []measurements.SourceKind) string {
	fragments := make([]string, 0, 3)
	if g.cfg.includes(ComponentTimestamp) {
		bucket := Truncate(ts, time.Duration(g.cfg.BucketSeconds)*time.Second)
		fragments = append(fragments, bucket.Format(timestampLayout))
	}
	if g.cfg.includes(ComponentWeight) {
		fragments = append(fragments, fmt.Sprintf("%.3f", weight))
	}
	if g.cfg.includes(ComponentSourceKinds) {
		fragments = append(fragments, measurements.JoinKinds(kinds, ","))
	}
	return strings.Join(fragments, Separator)
}

// Truncate floors ts to a multiple of bucket measured from the Unix epoch,
// keeping the zone of ts. Instants before 1970 floor toward the past.
// Sub-second buckets are treated as one second.
func Truncate(ts time.Time, bucket time.Duration) time.Time {
	size := int64(bucket / time.Second)
	if size <= 0 {
		size = 1
	}
	secs := ts.Unix()
	floored := secs / size * size
	if secs%size < 0 {
		floored -= size
	}
	return time.Unix(floored, 0).In(ts.Location())
}

// FileDigest hashes the content of r with the named algorithm.
func FileDigest(r io.Reader, algorithm string) (string, error) {
	newHash, ok := algorithms[strings.ToLower(algorithm)]
	if !ok {
		return "", errors.NewConfigError("checksum", fmt.Sprintf("unsupported hash algorithm %q", algorithm), nil)
	}
	h := newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.WrapIO("read", "", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
