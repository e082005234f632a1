package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/bodymap/pkg/measurements"
)

type stubParser struct {
	kind measurements.SourceKind
}

func (s stubParser) Kind() measurements.SourceKind { return s.kind }

func (s stubParser) Parse(context.Context, string, string) ([]measurements.RawRecord, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Set("csv", stubParser{kind: measurements.Tabular})
	reg.Set(".FIT", stubParser{kind: measurements.Binary})

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{".csv", ".fit"}, reg.Extensions())

	tests := []struct {
		name string
		file string
		want measurements.SourceKind
		ok   bool
	}{
		{"lower csv", "export.csv", measurements.Tabular, true},
		{"upper csv", "EXPORT.CSV", measurements.Tabular, true},
		{"fit", "2025-03-01-07-30-00.fit", measurements.Binary, true},
		{"nested path", "raw/march/scale.fit", measurements.Binary, true},
		{"unknown", "notes.txt", "", false},
		{"no extension", "README", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := reg.For(tt.file)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, p.Kind())
			}
		})
	}

	reg.Delete(".csv")
	_, ok := reg.Get("csv")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}
