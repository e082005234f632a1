package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger is a trace-level JSON logger writing to memory.
type TestLogger struct {
	*zerolog.Logger
	Buffer *bytes.Buffer
}

// NewTestLogger returns a capturing logger. The global level is lowered to
// trace until the test ends.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	return &TestLogger{Logger: &logger, Buffer: buf}
}

// ContextForTest returns a context carrying a fresh capturing logger.
func ContextForTest(t testing.TB) (context.Context, *TestLogger) {
	t.Helper()
	tl := NewTestLogger(t)
	return WithLogger(context.Background(), tl.Logger), tl
}

// CaptureLoggingForTest swaps the default logger for a capturing one until
// the test ends.
func CaptureLoggingForTest(t testing.TB) *TestLogger {
	t.Helper()
	prev := *Default()
	tl := NewTestLogger(t)
	SetDefault(*tl.Logger)
	t.Cleanup(func() { SetDefault(prev) })
	return tl
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// Output returns everything logged so far.
func (tl *TestLogger) Output() string {
	return tl.Buffer.String()
}

// Lines returns one string per log entry.
func (tl *TestLogger) Lines() []string {
	out := strings.TrimSpace(tl.Output())
	if out == "" {
		return []string{}
	}
	return strings.Split(out, "\n")
}

// Count returns the number of entries.
func (tl *TestLogger) Count() int {
	return len(tl.Lines())
}

// Entries decodes every entry. Lines that are not JSON are skipped.
func (tl *TestLogger) Entries() []map[string]any {
	var entries []map[string]any
	for _, line := range tl.Lines() {
		var e map[string]any
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// WithMessage returns the entries whose message is msg.
func (tl *TestLogger) WithMessage(msg string) []map[string]any {
	var out []map[string]any
	for _, e := range tl.Entries() {
		if e[zerolog.MessageFieldName] == msg {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether substr appears anywhere in the output.
func (tl *TestLogger) Contains(substr string) bool {
	return strings.Contains(tl.Output(), substr)
}

// ContainsAll reports whether every substring appears in the output.
func (tl *TestLogger) ContainsAll(substrs ...string) bool {
	out := tl.Output()
	for _, s := range substrs {
		if !strings.Contains(out, s) {
			return false
		}
	}
	return true
}

// AssertContains fails the test when substr was not logged.
func (tl *TestLogger) AssertContains(t testing.TB, substr string) {
	t.Helper()
	if !tl.Contains(substr) {
		t.Errorf("log output does not contain %q\noutput:\n%s", substr, tl.Output())
	}
}
