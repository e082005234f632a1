package comparison

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/measurements"
)

var t0 = time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC)

func rec(kind measurements.SourceKind, file string, at time.Time, weight float64) measurements.RawRecord {
	return measurements.RawRecord{
		Timestamp:    at,
		Composition:  measurements.Composition{WeightKg: measurements.Some(weight)},
		SourceFile:   file,
		SourceFileID: "drive-" + file,
		Kind:         kind,
	}
}

func reporter(t *testing.T, opts ...Option) *Reporter {
	t.Helper()
	r, err := New(opts...)
	require.NoError(t, err)
	return r
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		want    Period
		wantErr bool
	}{
		{"Peso 3-2025 Huawei Health.csv", Period{Month: 3, Year: 2025}, false},
		{"Peso 12-2024 Huawei Health.fit", Period{Month: 12, Year: 2024}, false},
		{"Peso  07-2025", Period{Month: 7, Year: 2025}, false},
		{"export.csv", Period{}, true},
		{"Peso marzo-2025.csv", Period{}, true},
		{"Peso 3_2025 Huawei.csv", Period{}, true},
		{"Peso 3-2025-1 Huawei.csv", Period{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "3-2025", Period{Month: 3, Year: 2025}.String())
}

func TestCompareEmpty(t *testing.T) {
	results := reporter(t).Compare(context.Background(), nil, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

// Two tabular records, one matched, one not, and one binary record.
func TestCompareScenario(t *testing.T) {
	tabular := []measurements.RawRecord{
		rec(measurements.Tabular, "Peso 3-2025 Huawei Health.csv", t0, 75.5),
		rec(measurements.Tabular, "Peso 3-2025 Huawei Health.csv", t0.Add(24*time.Hour), 75.2),
	}
	binary := []measurements.RawRecord{
		rec(measurements.Binary, "Peso 3-2025 Huawei Health.fit", t0.Add(10*time.Second), 75.6),
	}

	results := reporter(t).Compare(context.Background(), tabular, binary)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, 1, res.Both)
	assert.Equal(t, 1, res.TabularOnly)
	assert.Equal(t, 0, res.BinaryOnly)
	assert.Equal(t, 1, res.Mismatches[measurements.FieldWeightKg])
	require.NotNil(t, res.WeightMAE)
	assert.InDelta(t, 0.1, *res.WeightMAE, 1e-9)
	assert.Equal(t, 1, res.WeightPairs)
	assert.Equal(t, &Period{Month: 3, Year: 2025}, res.Period)
	assert.Equal(t, "drive-Peso 3-2025 Huawei Health.csv", res.TabularFileID)

	require.NotNil(t, res.TabularRange)
	assert.Equal(t, t0, res.TabularRange.Min)
	assert.Equal(t, t0.Add(24*time.Hour), res.TabularRange.Max)
	require.NotNil(t, res.BinaryRange)
	assert.Equal(t, t0.Add(10*time.Second), res.BinaryRange.Min)
	assert.True(t, res.Paired())
}

func TestCompareFirstMatchNotBestMatch(t *testing.T) {
	tabular := []measurements.RawRecord{
		rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80),
	}
	binary := []measurements.RawRecord{
		rec(measurements.Binary, "Peso 3-2025 a.fit", t0.Add(50*time.Second), 81),
		rec(measurements.Binary, "Peso 3-2025 a.fit", t0, 80),
	}

	res := reporter(t).Compare(context.Background(), tabular, binary)[0]
	assert.Equal(t, 1, res.Both)
	assert.Equal(t, 1, res.BinaryOnly)
	// The first binary record in input order is taken even though the second is exact.
	assert.Equal(t, 1, res.Mismatches[measurements.FieldWeightKg])
}

func TestCompareBinaryRecordMatchedTwice(t *testing.T) {
	tabular := []measurements.RawRecord{
		rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80),
		rec(measurements.Tabular, "Peso 3-2025 a.csv", t0.Add(30*time.Second), 80),
	}
	binary := []measurements.RawRecord{
		rec(measurements.Binary, "Peso 3-2025 a.fit", t0.Add(15*time.Second), 80),
	}

	res := reporter(t).Compare(context.Background(), tabular, binary)[0]
	assert.Equal(t, 2, res.Both)
	assert.Equal(t, 0, res.TabularOnly)
	assert.Equal(t, 0, res.BinaryOnly)
	assert.Empty(t, res.Mismatches)
	require.NotNil(t, res.WeightMAE)
	assert.Equal(t, 0.0, *res.WeightMAE)
}

func TestCompareFieldMismatches(t *testing.T) {
	tr := rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80)
	tr.BodyFatPct = measurements.Some(20)
	tr.FatMassKg = measurements.Some(16)
	tr.BMRKcal = measurements.Some(1600)
	br := rec(measurements.Binary, "Peso 3-2025 a.fit", t0, 80)
	br.BodyFatPct = measurements.Some(21)
	br.FatFreePct = measurements.Some(79)
	br.BMRKcal = measurements.Some(1700)

	res := reporter(t).Compare(context.Background(), []measurements.RawRecord{tr}, []measurements.RawRecord{br})[0]
	// Fat mass and fat-free % are present on one side only; BMR is not audited.
	assert.Equal(t, map[string]int{measurements.FieldBodyFatPct: 1}, res.Mismatches)
}

func TestCompareMissingWeightSkipsMAE(t *testing.T) {
	tr := rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80)
	tr.WeightKg = measurements.None()
	br := rec(measurements.Binary, "Peso 3-2025 a.fit", t0, 80)

	res := reporter(t).Compare(context.Background(), []measurements.RawRecord{tr}, []measurements.RawRecord{br})[0]
	assert.Equal(t, 1, res.Both)
	assert.Nil(t, res.WeightMAE)
	assert.Zero(t, res.WeightPairs)
}

func TestComparePairing(t *testing.T) {
	tabular := []measurements.RawRecord{
		rec(measurements.Tabular, "Peso 3-2025 Huawei.csv", t0, 80),
		rec(measurements.Tabular, "Peso 4-2025 Huawei.csv", t0.AddDate(0, 1, 0), 80),
		rec(measurements.Tabular, "export.csv", t0, 80),
		rec(measurements.Tabular, "Peso 5-2025 first.csv", t0.AddDate(0, 2, 0), 80),
		rec(measurements.Tabular, "Peso 5-2025 second.csv", t0.AddDate(0, 2, 0), 80),
	}
	binary := []measurements.RawRecord{
		rec(measurements.Binary, "Peso 4-2025 Huawei.fit", t0.AddDate(0, 1, 0), 80),
		rec(measurements.Binary, "Peso 6-2025 Huawei.fit", t0.AddDate(0, 3, 0), 80),
		rec(measurements.Binary, "Peso 5-2025 Huawei.fit", t0.AddDate(0, 2, 0), 80),
	}

	results := reporter(t).Compare(context.Background(), tabular, binary)

	type row struct{ tab, bin string }
	var got []row
	for _, r := range results {
		got = append(got, row{r.TabularFile, r.BinaryFile})
	}

	na := constants.NotAvailable
	assert.Equal(t, []row{
		{"Peso 4-2025 Huawei.csv", "Peso 4-2025 Huawei.fit"},
		// The last tabular file of a period is the one paired.
		{"Peso 5-2025 second.csv", "Peso 5-2025 Huawei.fit"},
		{na, "Peso 6-2025 Huawei.fit"},
		{"Peso 3-2025 Huawei.csv", na},
		{"export.csv", na},
		{"Peso 5-2025 first.csv", na},
	}, got)

	unpaired := results[2]
	assert.Equal(t, na, unpaired.TabularFileID)
	assert.Nil(t, unpaired.TabularRange)
	assert.Equal(t, 1, unpaired.BinaryOnly)
	assert.Nil(t, unpaired.WeightMAE)

	tabOnly := results[3]
	assert.Equal(t, 1, tabOnly.TabularOnly)
	assert.Equal(t, na, tabOnly.BinaryFileID)
}

func TestCompareDoesNotModifyInput(t *testing.T) {
	tabular := []measurements.RawRecord{rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80)}
	binary := []measurements.RawRecord{rec(measurements.Binary, "Peso 3-2025 a.fit", t0, 81)}
	tabBefore, binBefore := slices.Clone(tabular), slices.Clone(binary)

	reporter(t).Compare(context.Background(), tabular, binary)
	assert.Equal(t, tabBefore, tabular)
	assert.Equal(t, binBefore, binary)
}

func TestReporterOptions(t *testing.T) {
	_, err := New(WithTolerance(-1))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	_, err = New(WithTimestampTolerance(-time.Second))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	r := reporter(t, WithTolerance(0.5), WithTimestampTolerance(0))
	res := r.Compare(context.Background(),
		[]measurements.RawRecord{rec(measurements.Tabular, "Peso 3-2025 a.csv", t0, 80)},
		[]measurements.RawRecord{rec(measurements.Binary, "Peso 3-2025 a.fit", t0.Add(time.Second), 80.3)},
	)[0]
	assert.Equal(t, 0, res.Both)
	assert.Equal(t, 1, res.TabularOnly)
	assert.Equal(t, 1, res.BinaryOnly)
}

func TestSummarize(t *testing.T) {
	one, two := 0.2, 0.5
	results := []*Result{
		{TabularFile: "a.csv", BinaryFile: "a.fit", Both: 3, Mismatches: map[string]int{"weight_kg": 2}, WeightMAE: &one, WeightPairs: 3},
		{TabularFile: "b.csv", BinaryFile: "b.fit", Both: 1, BinaryOnly: 2, Mismatches: map[string]int{"weight_kg": 1, "body_fat_pct": 1}, WeightMAE: &two, WeightPairs: 1},
		{TabularFile: constants.NotAvailable, BinaryFile: "c.fit", BinaryOnly: 4, Mismatches: map[string]int{}},
		{TabularFile: "d.csv", BinaryFile: constants.NotAvailable, TabularOnly: 5, Mismatches: map[string]int{}},
		nil,
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.Pairs)
	assert.Equal(t, 2, s.Paired)
	assert.Equal(t, 1, s.TabularOnlyFiles)
	assert.Equal(t, 1, s.BinaryOnlyFiles)
	assert.Equal(t, 4, s.Both)
	assert.Equal(t, 6, s.BinaryOnly)
	assert.Equal(t, 5, s.TabularOnly)
	assert.Equal(t, map[string]int{"weight_kg": 3, "body_fat_pct": 1}, s.Mismatches)
	require.NotNil(t, s.WeightMAE)
	assert.InDelta(t, (0.2*3+0.5)/4, *s.WeightMAE, 1e-9)
	assert.Equal(t, 2, results[0].TotalMismatches())

	assert.Nil(t, Summarize(nil).WeightMAE)
}
