package output

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/daily"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/provenance"
)

const timeLayout = "2006-01-02 15:04:05 -07:00"

// MeasurementsToTableData converts measurements to table format. The wide
// form carries every field; the narrow one the headline readings.
func MeasurementsToTableData(ms []measurements.Measurement, wide bool) Data {
	fields := []string{measurements.FieldWeightKg, measurements.FieldBodyFatPct}
	if wide {
		fields = measurements.FieldNames()
	}

	headers := []string{"Record", "Timestamp"}
	align := []Align{AlignLeft, AlignLeft}
	for _, f := range fields {
		headers = append(headers, Title(f))
		align = append(align, AlignRight)
	}
	headers = append(headers, "Sources", "Conflicts")
	align = append(align, AlignLeft, AlignLeft)

	rows := make([][]string, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		row := []string{shortID(m.RecordID), m.Timestamp.Format(timeLayout)}
		for _, name := range fields {
			f, _ := measurements.FieldByName(name)
			row = append(row, dash(f.Get(m.Composition).String()))
		}
		row = append(row,
			measurements.JoinKinds(m.SourceKinds, ","),
			dash(strings.Join(m.ConflictingFields, ",")),
		)
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// ComparisonToTableData converts comparison results to table format.
func ComparisonToTableData(results []*comparison.Result) Data {
	headers := []string{"Period", "CSV File", "FIT File", "Both", "CSV Only", "FIT Only", "Mismatches", "Weight MAE"}
	rows := make([][]string, 0, len(results)+1)
	for _, r := range results {
		period := "-"
		if r.Period != nil {
			period = r.Period.String()
		}
		rows = append(rows, []string{
			period,
			r.TabularFile,
			r.BinaryFile,
			strconv.Itoa(r.Both),
			strconv.Itoa(r.TabularOnly),
			strconv.Itoa(r.BinaryOnly),
			formatMismatches(r.Mismatches),
			formatMAE(r.WeightMAE),
		})
	}

	s := comparison.Summarize(results)
	rows = append(rows, []string{
		"Total",
		fmt.Sprintf("%d pairs", s.Pairs),
		fmt.Sprintf("%d paired", s.Paired),
		strconv.Itoa(s.Both),
		strconv.Itoa(s.TabularOnly),
		strconv.Itoa(s.BinaryOnly),
		formatMismatches(s.Mismatches),
		formatMAE(s.WeightMAE),
	})

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignLeft, AlignRight},
	}
}

// DailyToTableData converts daily averages to table format.
func DailyToTableData(days []daily.Day, wide bool) Data {
	fields := []string{measurements.FieldWeightKg, measurements.FieldBodyFatPct, measurements.FieldMuscleMassKg}
	if wide {
		fields = measurements.FieldNames()
	}

	headers := []string{"Date"}
	for _, f := range fields {
		headers = append(headers, Title(f))
	}
	headers = append(headers, "Records", "Sources")

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		row := []string{d.Date}
		for _, name := range fields {
			f, _ := measurements.FieldByName(name)
			row = append(row, dash(f.Get(d.Composition).String()))
		}
		row = append(row, strconv.Itoa(d.RecordCount), measurements.JoinKinds(d.SourceKinds, ","))
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// ConflictsToTableData lists every conflicting field with both source
// values and the value that was kept.
func ConflictsToTableData(report *provenance.Report) Data {
	headers := []string{"Record", "Timestamp", "Field", "CSV", "FIT", "Chosen"}
	var rows [][]string
	for _, c := range report.Conflicts {
		for i, field := range c.Fields {
			id, ts := "", ""
			if i == 0 {
				id, ts = shortID(c.RecordID), c.Timestamp.Format(timeLayout)
			}
			v := c.Values[field]
			chosen := "-"
			if c.ChosenSource != nil {
				chosen = c.ChosenSource.String()
			}
			rows = append(rows, []string{id, ts, field, dash(v.Tabular.String()), dash(v.Binary.String()), chosen})
		}
	}
	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
}

// EventsToTableData converts ingestion events to table format.
func EventsToTableData(events []ingest.Event) Data {
	headers := []string{"File", "Type", "Status", "Records", "Detail"}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		detail := e.Reason
		if e.Error != "" {
			detail = e.Error
		}
		rows = append(rows, []string{
			e.File,
			dash(e.Kind.String()),
			string(e.Status),
			strconv.Itoa(e.Records),
			dash(detail),
		})
	}
	return Data{Headers: headers, Rows: rows}
}

func formatMismatches(m map[string]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func formatMAE(mae *float64) string {
	if mae == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f kg", *mae)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatTime renders t the way artifacts carry timestamps.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
