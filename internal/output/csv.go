package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/bodymap/pkg/daily"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Lineage and audit columns of the consolidated CSV. List and map columns
// hold JSON.
const (
	colRecordID          = "record_id"
	colTimestamp         = "timestamp"
	colSourceFiles       = "source_files"
	colSourceTypes       = "source_types"
	colSourceFileIDs     = "source_file_ids"
	colIngestion         = "ingestion_timestamp"
	colFieldSources      = "field_sources"
	colConflictingFields = "conflicting_fields"
	colChosenSource      = "chosen_source"
	colDate              = "date"
	colRecordCount       = "record_count"
)

// auditColumn names the column holding one source's value of an audited
// field, for example weight_kg_csv.
func auditColumn(field string, kind measurements.SourceKind) string {
	return field + "_" + kind.String()
}

// MeasurementsHeader returns the consolidated CSV columns in order.
func MeasurementsHeader() []string {
	header := []string{colRecordID, colTimestamp}
	header = append(header, measurements.FieldNames()...)
	header = append(header,
		colSourceFiles, colSourceTypes, colSourceFileIDs, colIngestion,
		colFieldSources, colConflictingFields, colChosenSource,
	)
	for _, f := range measurements.Fields {
		if f.Audited {
			header = append(header, auditColumn(f.Name, measurements.Tabular), auditColumn(f.Name, measurements.Binary))
		}
	}
	return header
}

// WriteMeasurementsCSV writes ms as the consolidated CSV.
func WriteMeasurementsCSV(w io.Writer, ms []measurements.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MeasurementsHeader()); err != nil {
		return err
	}

	for i := range ms {
		m := &ms[i]
		row := []string{m.RecordID, formatTime(m.Timestamp)}
		for _, f := range measurements.Fields {
			row = append(row, f.Get(m.Composition).String())
		}

		chosen := ""
		if m.ChosenSource != nil {
			chosen = m.ChosenSource.String()
		}
		row = append(row,
			jsonCell(nonNil(m.SourceFiles)),
			jsonCell(nonNil(m.SourceKinds)),
			jsonCell(nonNil(m.SourceFileIDs)),
			formatTime(m.ProcessedAt.Time),
			jsonCell(nonNilMap(m.FieldSources)),
			jsonCell(nonNil(m.ConflictingFields)),
			chosen,
		)
		for _, f := range measurements.Fields {
			if f.Audited {
				row = append(row,
					m.SourceValue(f.Name, measurements.Tabular).String(),
					m.SourceValue(f.Name, measurements.Binary).String(),
				)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadMeasurementsCSV reads a consolidated CSV. Unknown columns are
// ignored; missing columns leave their values absent.
func ReadMeasurementsCSV(r io.Reader) ([]measurements.Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []measurements.Measurement{}, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.TrimSpace(h)] = i
	}
	if _, ok := cols[colTimestamp]; !ok {
		return nil, errors.NewValidationError(colTimestamp, nil, "missing timestamp column")
	}
	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]measurements.Measurement, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		var m measurements.Measurement
		m.RecordID = get(row, colRecordID)

		ts, err := time.Parse(time.RFC3339Nano, get(row, colTimestamp))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		m.Timestamp = ts

		for _, f := range measurements.Fields {
			v, err := parseCell(get(row, f.Name))
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.Name, err)
			}
			f.Set(&m.Composition, v)
		}

		if s := get(row, colIngestion); s != "" {
			at, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.ProcessedAt = utc.New(at)
		}

		for _, c := range []struct {
			name string
			dst  any
		}{
			{colSourceFiles, &m.SourceFiles},
			{colSourceTypes, &m.SourceKinds},
			{colSourceFileIDs, &m.SourceFileIDs},
			{colFieldSources, &m.FieldSources},
			{colConflictingFields, &m.ConflictingFields},
		} {
			if s := get(row, c.name); s != "" {
				if err := json.Unmarshal([]byte(s), c.dst); err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, c.name, err)
				}
			}
		}

		if s := get(row, colChosenSource); s != "" {
			kind, err := measurements.ParseSourceKind(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.ChosenSource = &kind
		}

		for _, f := range measurements.Fields {
			if !f.Audited {
				continue
			}
			tab, err := parseCell(get(row, auditColumn(f.Name, measurements.Tabular)))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			bin, err := parseCell(get(row, auditColumn(f.Name, measurements.Binary)))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if tab.IsSet() || bin.IsSet() {
				if m.Audit == nil {
					m.Audit = make(map[string]measurements.SourceValues)
				}
				m.Audit[f.Name] = measurements.SourceValues{Tabular: tab, Binary: bin}
			}
		}

		out = append(out, m)
	}
	return out, nil
}

// DailyHeader returns the daily CSV columns in order.
func DailyHeader() []string {
	header := []string{colDate}
	header = append(header, measurements.FieldNames()...)
	return append(header, colRecordCount, colSourceTypes)
}

// WriteDailyCSV writes daily averages. Source kinds are joined with commas.
func WriteDailyCSV(w io.Writer, days []daily.Day) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DailyHeader()); err != nil {
		return err
	}
	for _, d := range days {
		row := []string{d.Date}
		for _, f := range measurements.Fields {
			row = append(row, f.Get(d.Composition).String())
		}
		row = append(row, strconv.Itoa(d.RecordCount), measurements.JoinKinds(d.SourceKinds, ","))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseCell(s string) (measurements.Value, error) {
	if s == "" {
		return measurements.None(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return measurements.None(), err
	}
	return measurements.FromFloat(v), nil
}

func jsonCell(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}
