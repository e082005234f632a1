package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"github.com/parquet-go/parquet-go"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// parquetRow is one consolidated measurement in the Parquet dataset. Column
// names match the consolidated CSV; list and map columns are native Parquet
// types instead of JSON text. Timestamps are stored as UTC instants with the
// original UTC offset alongside.
type parquetRow struct {
	RecordID        string    `parquet:"record_id"`
	Timestamp       time.Time `parquet:"timestamp,timestamp(nanosecond)"`
	TimestampOffset int32     `parquet:"timestamp_offset_seconds"`

	WeightKg             *float64 `parquet:"weight_kg,optional"`
	BodyFatPct           *float64 `parquet:"body_fat_pct,optional"`
	FatMassKg            *float64 `parquet:"fat_mass_kg,optional"`
	FatFreePct           *float64 `parquet:"fat_free_pct,optional"`
	FatFreeMassKg        *float64 `parquet:"fat_free_mass_kg,optional"`
	SkeletalMusclePct    *float64 `parquet:"skeletal_muscle_pct,optional"`
	SkeletalMuscleMassKg *float64 `parquet:"skeletal_muscle_mass_kg,optional"`
	MusclePct            *float64 `parquet:"muscle_pct,optional"`
	MuscleMassKg         *float64 `parquet:"muscle_mass_kg,optional"`
	BoneMassKg           *float64 `parquet:"bone_mass_kg,optional"`
	BodyWater            *float64 `parquet:"body_water,optional"`
	BMRKcal              *float64 `parquet:"bmr_kcal,optional"`
	MetabolicAge         *float64 `parquet:"metabolic_age,optional"`
	VisceralFatRating    *float64 `parquet:"visceral_fat_rating,optional"`

	SourceFiles        []string          `parquet:"source_files,list"`
	SourceTypes        []string          `parquet:"source_types,list"`
	SourceFileIDs      []string          `parquet:"source_file_ids,list"`
	IngestionTimestamp time.Time         `parquet:"ingestion_timestamp,timestamp(nanosecond)"`
	FieldSources       map[string]string `parquet:"field_sources"`
	ConflictingFields  []string          `parquet:"conflicting_fields,list"`
	ChosenSource       *string           `parquet:"chosen_source,optional"`

	WeightKgCSV   *float64 `parquet:"weight_kg_csv,optional"`
	WeightKgFIT   *float64 `parquet:"weight_kg_fit,optional"`
	BodyFatPctCSV *float64 `parquet:"body_fat_pct_csv,optional"`
	BodyFatPctFIT *float64 `parquet:"body_fat_pct_fit,optional"`
}

// numericColumns maps a column name to the index of its *float64 field.
var numericColumns = func() map[string]int {
	cols := make(map[string]int)
	t := reflect.TypeOf(parquetRow{})
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Type != reflect.TypeOf((*float64)(nil)) {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("parquet"), ",")
		cols[name] = i
	}
	return cols
}()

// numericColumn returns the field behind a numeric column. Every entry of
// measurements.Fields and every audit column has one.
func (r *parquetRow) numericColumn(name string) **float64 {
	i, ok := numericColumns[name]
	if !ok {
		panic(fmt.Sprintf("output: no parquet column for %q", name))
	}
	return reflect.ValueOf(r).Elem().Field(i).Addr().Interface().(**float64)
}

// WriteMeasurementsParquet writes ms as a Parquet file.
func WriteMeasurementsParquet(w io.Writer, ms []measurements.Measurement) error {
	rows := make([]parquetRow, len(ms))
	for i := range ms {
		rows[i] = toParquetRow(&ms[i])
	}
	pw := parquet.NewGenericWriter[parquetRow](w)
	if _, err := pw.Write(rows); err != nil {
		return err
	}
	return pw.Close()
}

// ReadMeasurementsParquet reads a dataset written by WriteMeasurementsParquet.
func ReadMeasurementsParquet(r io.ReaderAt, size int64) ([]measurements.Measurement, error) {
	rows, err := parquet.Read[parquetRow](r, size)
	if err != nil {
		return nil, err
	}
	out := make([]measurements.Measurement, 0, len(rows))
	for i := range rows {
		m, err := fromParquetRow(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func toParquetRow(m *measurements.Measurement) parquetRow {
	_, offset := m.Timestamp.Zone()
	row := parquetRow{
		RecordID:           m.RecordID,
		Timestamp:          m.Timestamp.UTC(),
		TimestampOffset:    int32(offset), //nolint:gosec // UTC offsets fit in int32
		SourceFiles:        nonNil(m.SourceFiles),
		SourceFileIDs:      nonNil(m.SourceFileIDs),
		IngestionTimestamp: m.ProcessedAt.Time.UTC(),
		FieldSources:       make(map[string]string, len(m.FieldSources)),
		ConflictingFields:  nonNil(m.ConflictingFields),
	}
	for _, f := range measurements.Fields {
		*row.numericColumn(f.Name) = f.Get(m.Composition).Ptr()
		if f.Audited {
			*row.numericColumn(auditColumn(f.Name, measurements.Tabular)) = m.SourceValue(f.Name, measurements.Tabular).Ptr()
			*row.numericColumn(auditColumn(f.Name, measurements.Binary)) = m.SourceValue(f.Name, measurements.Binary).Ptr()
		}
	}
	row.SourceTypes = make([]string, len(m.SourceKinds))
	for i, k := range m.SourceKinds {
		row.SourceTypes[i] = k.String()
	}
	for field, src := range m.FieldSources {
		row.FieldSources[field] = string(src)
	}
	if m.ChosenSource != nil {
		s := m.ChosenSource.String()
		row.ChosenSource = &s
	}
	return row
}

func fromParquetRow(row *parquetRow) (measurements.Measurement, error) {
	m := measurements.Measurement{
		RecordID:          row.RecordID,
		Timestamp:         row.Timestamp.In(time.FixedZone("", int(row.TimestampOffset))),
		SourceFiles:       row.SourceFiles,
		SourceFileIDs:     row.SourceFileIDs,
		ConflictingFields: nonNil(row.ConflictingFields),
	}
	if !row.IngestionTimestamp.IsZero() {
		m.ProcessedAt = utc.New(row.IngestionTimestamp)
	}

	for _, f := range measurements.Fields {
		f.Set(&m.Composition, measurements.FromPtr(*row.numericColumn(f.Name)))
		if !f.Audited {
			continue
		}
		tab := measurements.FromPtr(*row.numericColumn(auditColumn(f.Name, measurements.Tabular)))
		bin := measurements.FromPtr(*row.numericColumn(auditColumn(f.Name, measurements.Binary)))
		if tab.IsSet() || bin.IsSet() {
			if m.Audit == nil {
				m.Audit = make(map[string]measurements.SourceValues)
			}
			m.Audit[f.Name] = measurements.SourceValues{Tabular: tab, Binary: bin}
		}
	}

	for _, s := range row.SourceTypes {
		kind, err := measurements.ParseSourceKind(s)
		if err != nil {
			return m, err
		}
		m.SourceKinds = append(m.SourceKinds, kind)
	}
	if len(row.FieldSources) > 0 {
		m.FieldSources = make(map[string]measurements.FieldSource, len(row.FieldSources))
		for field, src := range row.FieldSources {
			m.FieldSources[field] = measurements.FieldSource(src)
		}
	}
	if row.ChosenSource != nil {
		kind, err := measurements.ParseSourceKind(*row.ChosenSource)
		if err != nil {
			return m, err
		}
		m.ChosenSource = &kind
	}
	return m, nil
}
