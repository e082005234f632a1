package alerts

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/internal/output"
)

func TestAlertString(t *testing.T) {
	tests := []struct {
		name  string
		alert *Alert
		want  string
	}{
		{"success", NewSuccess("Configuration valid"), "✓ Configuration valid"},
		{"error", NewError("Configuration invalid").WithError(errors.New("bad timezone")), "✗ Configuration invalid: bad timezone"},
		{"warning", NewWarning("No records"), "! No records"},
		{"info", NewInfo("Run started"), "- Run started"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alert.String())
		})
	}
}

func TestWriterTable(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, output.FormatTable, false)
	require.NoError(t, w.Write(NewSuccess("Built 3 measurements").WithDetails("conflicts: 1")))
	assert.Equal(t, "✓ Built 3 measurements\n   conflicts: 1\n", buf.String())
}

func TestWriterColor(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, output.FormatTable, true)
	require.NoError(t, w.Write(NewError("failed")))
	assert.Equal(t, "\033[31m✗ failed\033[0m\n", buf.String())
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, output.FormatJSON, false)
	require.NoError(t, w.Write(NewError("invalid").WithError(errors.New("boom"))))
	assert.Contains(t, buf.String(), `"level": "error"`)
	assert.Contains(t, buf.String(), `"error": "boom"`)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "unknown(9)", Level(9).String())
}
