package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/internal/matcher"
	"github.com/agentstation/bodymap/internal/sources/tabular"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/sources"
)

type failingParser struct{}

func (failingParser) Kind() measurements.SourceKind { return measurements.Binary }

func (failingParser) Parse(_ context.Context, path, _ string) ([]measurements.RawRecord, error) {
	return nil, errors.NewParseError("fit", path, "corrupt header", nil)
}

const csvBody = "date,weight_kg\n2025-03-01 07:30,75.5\n2025-03-02 07:31,75.2\n"

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a-scale.csv":          csvBody,
		"b-watch.fit":          "garbage",
		"c-notes.txt":          "hello",
		"nested/d-scale.csv":   csvBody,
		"nested/deeper/e.json": "{}",
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func registry(t *testing.T) *sources.Registry {
	t.Helper()
	csvParser, err := tabular.New(tabular.DefaultConfig(), time.UTC)
	require.NoError(t, err)
	reg := sources.NewRegistry()
	reg.Set(".csv", csvParser)
	reg.Set(".fit", failingParser{})
	return reg
}

func TestScan(t *testing.T) {
	ctx, logs := logging.ContextForTest(t)
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	s := NewScanner(registry(t), WithRunID("run-1"), WithClock(func() time.Time { return now }))

	batch, err := s.Scan(ctx, fixture(t))
	require.NoError(t, err)

	assert.Equal(t, "run-1", batch.RunID)
	require.Len(t, batch.Events, 3)

	csvEvent := batch.Events[0]
	assert.Equal(t, "a-scale.csv", csvEvent.File)
	assert.Equal(t, StatusSuccess, csvEvent.Status)
	assert.Equal(t, 2, csvEvent.Records)
	assert.Equal(t, measurements.Tabular, csvEvent.Kind)
	assert.Equal(t, "run-1", csvEvent.RunID)
	assert.Equal(t, "parse", csvEvent.Action)
	assert.True(t, csvEvent.Timestamp.Time.Equal(now))
	want, err := identity.FileDigest(bytes.NewReader([]byte(csvBody)), "sha256")
	require.NoError(t, err)
	assert.Equal(t, want, csvEvent.Checksum)

	fitEvent := batch.Events[1]
	assert.Equal(t, StatusError, fitEvent.Status)
	assert.Contains(t, fitEvent.Error, "corrupt header")
	assert.Zero(t, fitEvent.Records)

	txtEvent := batch.Events[2]
	assert.Equal(t, StatusSkipped, txtEvent.Status)
	assert.Equal(t, ReasonUnsupported, txtEvent.Reason)
	assert.Empty(t, txtEvent.Checksum)

	assert.Len(t, batch.Records, 2)
	assert.Len(t, batch.ByKind(measurements.Tabular), 2)
	assert.Empty(t, batch.ByKind(measurements.Binary))
	assert.Equal(t, 1, batch.Count(StatusError))
	assert.Equal(t, "a-scale.csv", batch.Records[0].SourceFileID)

	logs.AssertContains(t, "Failed to parse file")
	logs.AssertContains(t, "run-1")
}

func TestScanRecursive(t *testing.T) {
	ctx, _ := logging.ContextForTest(t)
	s := NewScanner(registry(t), WithRecursive(true), WithChecksum(""))

	batch, err := s.Scan(ctx, fixture(t))
	require.NoError(t, err)

	require.Len(t, batch.Events, 5)
	files := make([]string, 0, len(batch.Events))
	for _, e := range batch.Events {
		files = append(files, e.File)
		assert.Empty(t, e.Checksum)
	}
	assert.Equal(t, []string{"a-scale.csv", "b-watch.fit", "c-notes.txt", "nested/d-scale.csv", "nested/deeper/e.json"}, files)
	assert.Len(t, batch.Records, 4)
	assert.NotEmpty(t, batch.RunID)
}

func TestScanExclude(t *testing.T) {
	ctx, _ := logging.ContextForTest(t)
	exclude, err := matcher.NewMultiMatcher([]string{"*.fit", "^nested/"}, matcher.Auto, nil)
	require.NoError(t, err)
	s := NewScanner(registry(t), WithRecursive(true), WithExclude(exclude))

	batch, err := s.Scan(ctx, fixture(t))
	require.NoError(t, err)

	require.Len(t, batch.Events, 5)
	reasons := make(map[string]string, len(batch.Events))
	for _, e := range batch.Events {
		reasons[e.File] = e.Reason
	}
	assert.Equal(t, ReasonExcluded, reasons["b-watch.fit"])
	assert.Equal(t, ReasonExcluded, reasons["nested/d-scale.csv"])
	assert.Equal(t, ReasonExcluded, reasons["nested/deeper/e.json"])
	assert.Equal(t, ReasonUnsupported, reasons["c-notes.txt"])
	assert.Len(t, batch.Records, 2)
	assert.Zero(t, batch.Count(StatusError))
}

func TestScanMissingDirectory(t *testing.T) {
	ctx, _ := logging.ContextForTest(t)
	_, err := NewScanner(registry(t)).Scan(ctx, filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.IsNotFound(err))

	file := filepath.Join(t.TempDir(), "file.csv")
	require.NoError(t, os.WriteFile(file, []byte(csvBody), 0o600))
	_, err = NewScanner(registry(t)).Scan(ctx, file)
	assert.True(t, errors.IsValidationError(err))
}

func TestScanCancelled(t *testing.T) {
	ctx, _ := logging.ContextForTest(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := NewScanner(registry(t)).Scan(ctx, fixture(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprint(t *testing.T) {
	dir := fixture(t)
	exclude, err := matcher.NewMultiMatcher([]string{"*.fit"}, matcher.Auto, nil)
	require.NoError(t, err)
	s := NewScanner(registry(t), WithExclude(exclude))

	first, err := s.Fingerprint(dir)
	require.NoError(t, err)
	again, err := s.Fingerprint(dir)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	tests := []struct {
		name    string
		file    string
		body    string
		changed bool
	}{
		{"unsupported file", "z-notes.txt", "later", false},
		{"excluded file", "b-watch.fit", "rewritten garbage", false},
		{"non-recursive subdirectory", "nested/f-scale.csv", csvBody, false},
		{"rewritten export", "a-scale.csv", csvBody + "2025-03-03 07:30,75.0\n", true},
		{"new export", "g-scale.csv", csvBody, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(tt.file)), []byte(tt.body), 0o600))
			got, err := s.Fingerprint(dir)
			require.NoError(t, err)
			if tt.changed {
				assert.NotEqual(t, first, got)
			} else {
				assert.Equal(t, first, got)
			}
			first = got
		})
	}

	_, err = s.Fingerprint(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
