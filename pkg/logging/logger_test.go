package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/bodymap/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message in output, got: %s", output)
	}
	if !strings.Contains(output, "error message") {
		t.Errorf("Expected error message in output, got: %s", output)
	}
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithRunID(ctx, "run-123")
	ctx = logging.WithSourceFile(ctx, "Peso 1-2024 Huawei Health.csv")

	logging.FromContext(ctx).Info().Msg("parsed file")

	testLogger.AssertContains(t, "run-123")
	testLogger.AssertContains(t, "Peso 1-2024 Huawei Health.csv")
	testLogger.AssertContains(t, "parsed file")

	if got := logging.RunID(ctx); got != "run-123" {
		t.Errorf("RunID() = %q, want run-123", got)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is handled on purpose
	if logging.FromContext(nil) != logging.Default() {
		t.Error("expected default logger for nil context")
	}
	if logging.FromContext(context.Background()) != logging.Default() {
		t.Error("expected default logger for empty context")
	}
}

func TestCaptureLoggingForTest(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)
	logging.Info().Str("field", "weight_kg").Msg("captured")

	if !tl.ContainsAll("captured", "weight_kg") {
		t.Errorf("expected captured output, got %s", tl.Output())
	}
	if tl.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", tl.Count())
	}
}

func TestTestLoggerEntries(t *testing.T) {
	ctx, tl := logging.ContextForTest(t)
	ctx = logging.WithSourceKind(ctx, "csv")

	logging.FromContext(ctx).Warn().Int("line", 7).Msg("Skipping row")
	logging.FromContext(ctx).Info().Msg("Parsed file")

	rows := tl.WithMessage("Skipping row")
	if len(rows) != 1 {
		t.Fatalf("expected 1 skipped row entry, got %d", len(rows))
	}
	if rows[0]["source_kind"] != "csv" {
		t.Errorf("source_kind = %v, want csv", rows[0]["source_kind"])
	}
	if rows[0]["line"] != float64(7) {
		t.Errorf("line = %v, want 7", rows[0]["line"])
	}
	if len(tl.Entries()) != 2 {
		t.Errorf("expected 2 entries, got %d", len(tl.Entries()))
	}
}

func TestEnvConfig(t *testing.T) {
	t.Setenv(logging.EnvLevel, "warn")
	t.Setenv(logging.EnvFormat, "json")
	t.Setenv(logging.EnvFields, "app=bodymap, host = scale")

	cfg := logging.EnvConfig()
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Fields["app"] != "bodymap" || cfg.Fields["host"] != "scale" {
		t.Errorf("unexpected fields: %v", cfg.Fields)
	}
}
