package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/daily"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/provenance"
)

var santiago = time.FixedZone("-03", -3*60*60)

func sample() []measurements.Measurement {
	fit := measurements.Binary
	processed := utc.New(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	return []measurements.Measurement{
		{
			RecordID:  "fab306ce98fb3bdca33187914ffa594151b5a6f934d3ff4eb88c7b1dd1b0cae9",
			Timestamp: time.Date(2025, 3, 1, 7, 30, 0, 0, santiago),
			Composition: measurements.Composition{
				WeightKg:   measurements.Some(75.6),
				BodyFatPct: measurements.Some(18.2),
				BoneMassKg: measurements.Some(3.1),
			},
			SourceFiles:   []string{"scale.csv", "scale.fit"},
			SourceKinds:   []measurements.SourceKind{measurements.Tabular, measurements.Binary},
			SourceFileIDs: []string{"scale.csv", "scale.fit"},
			ProcessedAt:   processed,
			FieldSources: map[string]measurements.FieldSource{
				measurements.FieldWeightKg:   measurements.Conflict,
				measurements.FieldBodyFatPct: measurements.Merged,
				measurements.FieldBoneMassKg: measurements.FromBinary,
			},
			ConflictingFields: []string{measurements.FieldWeightKg},
			ChosenSource:      &fit,
			Audit: map[string]measurements.SourceValues{
				measurements.FieldWeightKg: {Tabular: measurements.Some(75.5), Binary: measurements.Some(75.6)},
			},
		},
		{
			RecordID:  "0123456789abcdef",
			Timestamp: time.Date(2025, 3, 2, 7, 0, 0, 0, santiago),
			Composition: measurements.Composition{
				WeightKg: measurements.Some(75.2),
			},
			SourceFiles:       []string{"scale.csv"},
			SourceKinds:       []measurements.SourceKind{measurements.Tabular},
			SourceFileIDs:     []string{"scale.csv"},
			ProcessedAt:       processed,
			FieldSources:      map[string]measurements.FieldSource{measurements.FieldWeightKg: measurements.FromTabular},
			ConflictingFields: []string{},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"wide", FormatWide, false},
		{"", "", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestFormatters(t *testing.T) {
	ms := sample()

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, MeasurementsToTableData(ms, false)))
	out := buf.String()
	assert.Contains(t, out, "fab306ce98fb")
	assert.NotContains(t, out, "fab306ce98fb3")
	assert.Contains(t, out, "75.6")
	assert.Contains(t, out, "csv,fit")
	assert.Contains(t, strings.ToLower(out), "weight kg")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, ms))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Nil(t, decoded[1]["body_fat_pct"])
	assert.Equal(t, "fit", decoded[0]["chosen_source"])

	buf.Reset()
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, ms))
	assert.Contains(t, buf.String(), "record_id: fab306ce")

	// Structs without a dedicated table go through reflection.
	buf.Reset()
	events := []ingest.Event{{File: "scale.csv", Status: ingest.StatusSuccess, Records: 2}}
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, events))
	assert.Contains(t, buf.String(), "scale.csv")
	assert.Contains(t, buf.String(), "success")
}

func TestMeasurementsToTableDataWide(t *testing.T) {
	data := MeasurementsToTableData(sample(), true)
	assert.Len(t, data.Headers, 2+len(measurements.Fields)+2)
	assert.Equal(t, "Weight Kg", data.Headers[2])
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "-", data.Rows[1][3])
	assert.Equal(t, "weight_kg", data.Rows[0][len(data.Rows[0])-1])
	assert.Equal(t, "-", data.Rows[1][len(data.Rows[1])-1])
}

func TestComparisonToTableData(t *testing.T) {
	mae := 0.1
	results := []*comparison.Result{
		{
			TabularFile: "scale_2025-03.csv", BinaryFile: "watch_2025-03.fit",
			Period: &comparison.Period{Month: 3, Year: 2025},
			Both:   4, TabularOnly: 1,
			Mismatches:  map[string]int{"weight_kg": 2, "body_fat_pct": 1},
			WeightMAE:   &mae,
			WeightPairs: 4,
		},
	}
	data := ComparisonToTableData(results)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "3-2025", data.Rows[0][0])
	assert.Equal(t, "body_fat_pct=1, weight_kg=2", data.Rows[0][6])
	assert.Equal(t, "0.100 kg", data.Rows[0][7])
	assert.Equal(t, "Total", data.Rows[1][0])
}

func TestConflictsToTableData(t *testing.T) {
	report := provenance.GenerateReport(sample(), time.Now())
	data := ConflictsToTableData(report)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []string{"fab306ce98fb", "2025-03-01 07:30:00 -03:00", "weight_kg", "75.5", "75.6", "fit"}, data.Rows[0])
}

func TestMeasurementsCSV(t *testing.T) {
	ms := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteMeasurementsCSV(&buf, ms))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(MeasurementsHeader(), ","), lines[0])
	assert.Contains(t, lines[1], `"[""scale.csv"",""scale.fit""]"`)
	assert.Contains(t, lines[1], "2025-03-01T07:30:00-03:00")
	assert.True(t, strings.HasSuffix(lines[1], ",75.5,75.6,,"))
	assert.Contains(t, lines[2], ",[],")

	got, err := ReadMeasurementsCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ms[0].RecordID, got[0].RecordID)
	assert.True(t, ms[0].Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, ms[0].Composition, got[0].Composition)
	assert.Equal(t, ms[0].SourceKinds, got[0].SourceKinds)
	assert.Equal(t, ms[0].FieldSources, got[0].FieldSources)
	assert.Equal(t, ms[0].Audit, got[0].Audit)
	require.NotNil(t, got[0].ChosenSource)
	assert.Equal(t, measurements.Binary, *got[0].ChosenSource)
	assert.Nil(t, got[1].ChosenSource)
	assert.Nil(t, got[1].Audit)
	assert.True(t, ms[1].ProcessedAt.Time.Equal(got[1].ProcessedAt.Time))
}

func TestMeasurementsParquet(t *testing.T) {
	ms := sample()

	var buf bytes.Buffer
	require.NoError(t, WriteMeasurementsParquet(&buf, ms))

	got, err := ReadMeasurementsParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range ms {
		assert.Equal(t, ms[i].RecordID, got[i].RecordID)
		assert.True(t, ms[i].Timestamp.Equal(got[i].Timestamp))
		_, wantOffset := ms[i].Timestamp.Zone()
		_, gotOffset := got[i].Timestamp.Zone()
		assert.Equal(t, wantOffset, gotOffset)
		assert.Equal(t, ms[i].Composition, got[i].Composition)
		assert.Equal(t, ms[i].SourceFiles, got[i].SourceFiles)
		assert.Equal(t, ms[i].SourceKinds, got[i].SourceKinds)
		assert.Equal(t, ms[i].SourceFileIDs, got[i].SourceFileIDs)
		assert.Equal(t, ms[i].FieldSources, got[i].FieldSources)
		assert.Equal(t, ms[i].ConflictingFields, got[i].ConflictingFields)
		assert.Equal(t, ms[i].Audit, got[i].Audit)
		assert.True(t, ms[i].ProcessedAt.Time.Equal(got[i].ProcessedAt.Time))
	}
	require.NotNil(t, got[0].ChosenSource)
	assert.Equal(t, measurements.Binary, *got[0].ChosenSource)
	assert.Nil(t, got[1].ChosenSource)
}

func TestParquetColumnsCoverFieldTable(t *testing.T) {
	for _, f := range measurements.Fields {
		assert.Contains(t, numericColumns, f.Name)
		if f.Audited {
			assert.Contains(t, numericColumns, auditColumn(f.Name, measurements.Tabular))
			assert.Contains(t, numericColumns, auditColumn(f.Name, measurements.Binary))
		}
	}
}

func TestReadMeasurementsCSVErrors(t *testing.T) {
	_, err := ReadMeasurementsCSV(strings.NewReader("weight_kg\n75.5\n"))
	assert.True(t, errors.IsValidationError(err))

	_, err = ReadMeasurementsCSV(strings.NewReader("timestamp,weight_kg\nyesterday,75.5\n"))
	assert.Error(t, err)

	ms, err := ReadMeasurementsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestWriter(t *testing.T) {
	ctx, _ := logging.ContextForTest(t)
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(dir, Files{DailyCSV: "daily.csv"})
	require.NoError(t, err)
	assert.Equal(t, "daily.csv", w.Files().DailyCSV)
	assert.Equal(t, DefaultFiles().Conflicts, w.Files().Conflicts)

	ms := sample()

	paths, err := w.WriteConsolidated(ctx, ms, []string{"csv", "json", "yaml", "parquet"})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		assert.FileExists(t, p)
		got, err := ReadConsolidated(p)
		require.NoError(t, err, p)
		require.Len(t, got, 2, p)
		assert.Equal(t, ms[0].RecordID, got[0].RecordID, p)
		assert.Equal(t, ms[0].WeightKg, got[0].WeightKg, p)
		assert.False(t, got[1].BodyFatPct.IsSet(), p)
	}

	_, err = w.WriteConsolidated(ctx, ms, []string{"xlsx"})
	assert.True(t, errors.IsValidationError(err))

	paths, err = w.WriteConsolidated(ctx, nil, []string{"csv"})
	require.NoError(t, err)
	assert.Empty(t, paths)

	path, err := w.WriteConflicts(ctx, ms)
	require.NoError(t, err)
	var conflicts []measurements.Measurement
	readJSON(t, path, &conflicts)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ms[0].RecordID, conflicts[0].RecordID)

	path, err = w.WriteConflicts(ctx, ms[1:])
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = w.WriteComparison(ctx, nil)
	require.NoError(t, err)
	var summary map[string]any
	readJSON(t, path, &summary)
	assert.EqualValues(t, 0, summary["total_pairs"])
	assert.Equal(t, []any{}, summary["pairs"])

	events := []ingest.Event{
		{RunID: "r", File: "scale.csv", Status: ingest.StatusSuccess, Records: 2},
		{RunID: "r", File: "notes.txt", Status: ingest.StatusSkipped, Reason: ingest.ReasonUnsupported},
	}
	path, err = w.WriteIngestionLog(ctx, events)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"reason":"unsupported_format"`)

	days := daily.Aggregate(ms, nil)
	path, err = w.WriteDaily(ctx, days)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "daily.csv"), path)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(DailyHeader(), ",")))
	assert.Contains(t, string(data), "2025-03-01,75.6,18.2")

	path, err = w.WriteProvenance(ctx, provenance.GenerateReport(ms, time.Now()))
	require.NoError(t, err)
	report, err := provenance.Load(path)
	require.NoError(t, err)
	assert.Len(t, report.Conflicts, 1)
}

func TestReadConsolidatedMissing(t *testing.T) {
	_, err := ReadConsolidated(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.IsNotFound(err))
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestRender(t *testing.T) {
	table := Data{Headers: []string{"date", "weight_kg"}, Rows: [][]string{{"2025-03-01", "70.5"}}}
	raw := map[string]float64{"weight_kg": 70.5}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, table, raw))
	assert.JSONEq(t, `{"weight_kg": 70.5}`, buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, FormatWide, table, raw))
	assert.Contains(t, buf.String(), "2025-03-01")
}
