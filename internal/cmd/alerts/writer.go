package alerts

import (
	"fmt"
	"io"

	"github.com/agentstation/bodymap/internal/output"
)

// Writer writes alerts in a console format.
type Writer struct {
	w        io.Writer
	format   output.Format
	useColor bool
}

// NewWriter creates a writer. Structured formats (json, yaml) are rendered
// through the output formatters; anything else prints a status line.
func NewWriter(w io.Writer, format output.Format, useColor bool) *Writer {
	return &Writer{w: w, format: format, useColor: useColor}
}

type alertData struct {
	Level   string   `json:"level" yaml:"level"`
	Message string   `json:"message" yaml:"message"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
	Error   string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Write writes a single alert.
func (aw *Writer) Write(a *Alert) error {
	switch aw.format {
	case output.FormatJSON, output.FormatYAML:
		data := alertData{Level: a.Level.String(), Message: a.Message, Details: a.Details}
		if a.Err != nil {
			data.Error = a.Err.Error()
		}
		return output.NewFormatter(aw.format).Format(aw.w, data)
	}

	line := a.String()
	if aw.useColor {
		line = a.Level.Color() + line + resetColor
	}
	if _, err := fmt.Fprintln(aw.w, line); err != nil {
		return err
	}
	for _, d := range a.Details {
		if _, err := fmt.Fprintf(aw.w, "   %s\n", d); err != nil {
			return err
		}
	}
	return nil
}
