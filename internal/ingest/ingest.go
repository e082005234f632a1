// Package ingest walks a directory of raw exports, dispatches every file to
// the parser registered for its extension and records one event per file.
//
// A bad file never aborts the scan: it is logged, recorded as an error event
// and the remaining files are still read.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/bodymap/internal/matcher"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/identity"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/sources"
)

// Status is the outcome of ingesting one file.
type Status string

// Ingestion outcomes.
const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Skip reasons.
const (
	// ReasonUnsupported is recorded for files no parser handles.
	ReasonUnsupported = "unsupported_format"
	// ReasonExcluded is recorded for files matching an exclude pattern.
	ReasonExcluded = "excluded"
)

// Event records what happened to one file.
type Event struct {
	RunID     string                  `json:"run_id"`
	Timestamp utc.Time                `json:"timestamp"`
	File      string                  `json:"file"`
	Action    string                  `json:"action"`
	Kind      measurements.SourceKind `json:"source_type,omitempty"`
	Status    Status                  `json:"status"`
	Records   int                     `json:"records"`
	Checksum  string                  `json:"checksum,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Batch is the result of one scan.
type Batch struct {
	RunID   string
	Records []measurements.RawRecord
	Events  []Event
}

// ByKind returns the records of one source kind, in scan order.
func (b *Batch) ByKind(kind measurements.SourceKind) []measurements.RawRecord {
	var out []measurements.RawRecord
	for _, r := range b.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of events with the given status.
func (b *Batch) Count(status Status) int {
	n := 0
	for _, e := range b.Events {
		if e.Status == status {
			n++
		}
	}
	return n
}

// Scanner reads raw directories.
type Scanner struct {
	registry  *sources.Registry
	recursive bool
	checksum  string
	exclude   *matcher.MultiMatcher
	clock     func() time.Time
	newRunID  func() string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRecursive descends into subdirectories.
func WithRecursive(recursive bool) Option {
	return func(s *Scanner) {
		s.recursive = recursive
	}
}

// WithChecksum sets the digest algorithm for file checksums. An empty name
// disables checksums.
func WithChecksum(algorithm string) Option {
	return func(s *Scanner) {
		s.checksum = algorithm
	}
}

// WithExclude skips files matching any of the patterns.
func WithExclude(m *matcher.MultiMatcher) Option {
	return func(s *Scanner) {
		s.exclude = m
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Scanner) {
		s.clock = clock
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *Scanner) {
		s.newRunID = func() string { return id }
	}
}

// NewScanner creates a scanner dispatching through registry.
func NewScanner(registry *sources.Registry, opts ...Option) *Scanner {
	s := &Scanner{
		registry: registry,
		checksum: "sha256",
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan ingests every regular file under dir in lexical order.
func (s *Scanner) Scan(ctx context.Context, dir string) (*Batch, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("raw directory", dir)
		}
		return nil, errors.WrapIO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("raw_dir", dir, "not a directory")
	}

	batch := &Batch{RunID: s.newRunID()}
	ctx = logging.WithRunID(ctx, batch.RunID)
	logger := logging.FromContext(ctx)
	logger.Info().Str("dir", dir).Msg("Scanning raw directory")

	files, err := s.files(dir)
	if err != nil {
		return nil, err
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event, records := s.ingest(ctx, dir, rel)
		event.RunID = batch.RunID
		batch.Events = append(batch.Events, event)
		batch.Records = append(batch.Records, records...)
	}

	logger.Info().
		Int("files", len(files)).
		Int("records", len(batch.Records)).
		Int("errors", batch.Count(StatusError)).
		Int("skipped", batch.Count(StatusSkipped)).
		Msg("Scan complete")
	return batch, nil
}

// Fingerprint digests the path, size and modification time of every file a
// scan of dir would parse. Two equal fingerprints mean a rescan would read
// the same bytes, unless a file was rewritten in place within the
// filesystem's timestamp resolution.
func (s *Scanner) Fingerprint(dir string) (string, error) {
	files, err := s.files(dir)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, rel := range files {
		if _, ok := s.exclude.Match(rel); ok {
			continue
		}
		if _, ok := s.registry.For(rel); !ok {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return "", errors.WrapIO("stat", rel, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", rel, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// files lists regular files below dir as slash-separated relative paths.
func (s *Scanner) files(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.WrapIO("walk", dir, err)
	}
	return files, nil
}

// ingest parses one file. The relative path doubles as the file identifier.
func (s *Scanner) ingest(ctx context.Context, dir, rel string) (Event, []measurements.RawRecord) {
	path := filepath.Join(dir, filepath.FromSlash(rel))
	event := Event{
		Timestamp: utc.New(s.clock()),
		File:      rel,
		Action:    "parse",
	}
	ctx = logging.WithSourceFile(ctx, rel)
	logger := logging.FromContext(ctx)

	if pattern, ok := s.exclude.Match(rel); ok {
		event.Status = StatusSkipped
		event.Reason = ReasonExcluded
		logger.Debug().Str("pattern", pattern).Msg("Skipping excluded file")
		return event, nil
	}

	parser, ok := s.registry.For(rel)
	if !ok {
		event.Status = StatusSkipped
		event.Reason = ReasonUnsupported
		logger.Debug().Msg("Skipping unsupported file")
		return event, nil
	}
	event.Kind = parser.Kind()

	if s.checksum != "" {
		sum, err := checksum(path, s.checksum)
		if err != nil {
			logger.Warn().Err(err).Msg("Checksum failed")
		}
		event.Checksum = sum
	}

	records, err := parser.Parse(ctx, path, rel)
	if err != nil {
		event.Status = StatusError
		event.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to parse file")
		return event, nil
	}

	event.Status = StatusSuccess
	event.Records = len(records)
	return event, records
}

func checksum(path, algorithm string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the scanned raw directory
	if err != nil {
		return "", errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()
	return identity.FileDigest(f, algorithm)
}
