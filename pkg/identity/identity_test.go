package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

var both = []measurements.SourceKind{measurements.Tabular, measurements.Binary}

func mustNew(t *testing.T, cfg Config) *Generator {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func TestGenerateKnownDigests(t *testing.T) {
	ts := time.Date(2025, 3, 1, 7, 30, 42, 0, time.UTC)

	tests := []struct {
		algorithm string
		want      string
	}{
		{"sha256", "fab306ce98fb3bdca33187914ffa594151b5a6f934d3ff4eb88c7b1dd1b0cae9"},
		{"md5", "d2e526532e208875f3d90e48992159cf"},
		{"sha3-256", "a9316eeddd32df6ecb3a8e490d42365f93dbe2219440db91e1a0bdc39e4d22d4"},
		{"blake2b-256", "c657a2ecbf2a552fd6e12273ec44d75a6bf5f41e89e215261b998b1254a435a4"},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Algorithm = tt.algorithm
			g := mustNew(t, cfg)
			assert.Equal(t, "2025-03-01T07:30:00+00:00|75.500|csv,fit", g.Key(ts, 75.5, both))
			assert.Equal(t, tt.want, g.Generate(ts, 75.5, both))
		})
	}
}

func TestGenerateProperties(t *testing.T) {
	g := mustNew(t, DefaultConfig())
	ts := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, g.Generate(ts, 80.1, both), g.Generate(ts, 80.1, both))
	})

	t.Run("kind order independent", func(t *testing.T) {
		reversed := []measurements.SourceKind{measurements.Binary, measurements.Tabular}
		assert.Equal(t, g.Generate(ts, 80.1, both), g.Generate(ts, 80.1, reversed))
	})

	t.Run("same bucket", func(t *testing.T) {
		assert.Equal(t, g.Generate(ts, 80.1, both), g.Generate(ts.Add(59*time.Second), 80.1, both))
	})

	t.Run("next bucket", func(t *testing.T) {
		assert.NotEqual(t, g.Generate(ts, 80.1, both), g.Generate(ts.Add(60*time.Second), 80.1, both))
	})

	t.Run("weight beyond three decimals is ignored", func(t *testing.T) {
		assert.Equal(t, g.Generate(ts, 80.1, both), g.Generate(ts, 80.10004, both))
	})

	t.Run("kind set changes id", func(t *testing.T) {
		assert.NotEqual(t, g.Generate(ts, 80.1, both), g.Generate(ts, 80.1, both[:1]))
	})

	t.Run("lowercase hex", func(t *testing.T) {
		id := g.Generate(ts, 80.1, both)
		assert.Len(t, id, 64)
		assert.Equal(t, strings.ToLower(id), id)
	})
}

func TestKeyRespectsIncludeList(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 30, 15, 0, time.FixedZone("CLT", -3*3600))

	g := mustNew(t, Config{Algorithm: "sha256", BucketSeconds: 60, Include: []Component{ComponentSourceKinds, ComponentTimestamp}})
	assert.Equal(t, "2025-03-01T10:30:00-03:00|csv,fit", g.Key(ts, 70, both))

	g = mustNew(t, Config{Algorithm: "sha256", BucketSeconds: 3600, Include: []Component{ComponentWeight}})
	assert.Equal(t, "70.000", g.Key(ts, 70, both))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     time.Time
		bucket time.Duration
		want   time.Time
	}{
		{"floors within minute", time.Date(2025, 1, 1, 10, 30, 59, 0, time.UTC), time.Minute, time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"boundary stays", time.Date(2025, 1, 1, 10, 31, 0, 0, time.UTC), time.Minute, time.Date(2025, 1, 1, 10, 31, 0, 0, time.UTC)},
		{"sub-second dropped", time.Date(2025, 1, 1, 10, 30, 0, 999, time.UTC), time.Minute, time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"before epoch floors to past", time.Date(1969, 12, 31, 23, 59, 30, 0, time.UTC), time.Minute, time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC)},
		{"before epoch on boundary", time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC), time.Minute, time.Date(1969, 12, 31, 23, 59, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.bucket)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	clt := time.FixedZone("CLT", -3*3600)
	got := Truncate(time.Date(2025, 1, 1, 7, 0, 30, 0, clt), time.Minute)
	assert.Equal(t, clt, got.Location())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown algorithm", func(c *Config) { c.Algorithm = "crc32" }},
		{"zero bucket", func(c *Config) { c.BucketSeconds = 0 }},
		{"negative bucket", func(c *Config) { c.BucketSeconds = -60 }},
		{"empty include", func(c *Config) { c.Include = nil }},
		{"unknown include", func(c *Config) { c.Include = []Component{"body_fat_pct"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
		})
	}

	for _, alg := range Algorithms() {
		cfg := DefaultConfig()
		cfg.Algorithm = alg
		_, err := New(cfg)
		assert.NoError(t, err, alg)
	}
	cfg := DefaultConfig()
	cfg.Algorithm = "SHA256"
	assert.NoError(t, cfg.Validate())
}

func TestFileDigest(t *testing.T) {
	sum, err := FileDigest(strings.NewReader("2025-03-01T07:30:00+00:00|75.500|csv,fit"), "sha256")
	require.NoError(t, err)
	assert.Equal(t, "fab306ce98fb3bdca33187914ffa594151b5a6f934d3ff4eb88c7b1dd1b0cae9", sum)

	_, err = FileDigest(strings.NewReader(""), "whirlpool")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestGenerateBlake2bReusesFactory(t *testing.T) {
	for _, algorithm := range []string{"blake2b-256", "blake2b-512"} {
		t.Run(algorithm, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Algorithm = algorithm
			g := mustNew(t, cfg)
			ts := time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC)

			first := g.Generate(ts, 75.5, both)
			assert.NotEmpty(t, first)
			assert.Equal(t, first, g.Generate(ts, 75.5, both))
			assert.NotEqual(t, first, g.Generate(ts, 75.6, both))
		})
	}
}
