package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/bodymap/internal/ingest"
	"github.com/agentstation/bodymap/pkg/comparison"
	"github.com/agentstation/bodymap/pkg/constants"
	"github.com/agentstation/bodymap/pkg/daily"
	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
	"github.com/agentstation/bodymap/pkg/provenance"
)

// Dataset formats for the consolidated measurements.
const (
	DatasetCSV     = "csv"
	DatasetJSON    = "json"
	DatasetYAML    = "yaml"
	DatasetParquet = "parquet"
)

// DatasetFormats lists the supported dataset formats.
var DatasetFormats = []string{DatasetCSV, DatasetJSON, DatasetYAML, DatasetParquet}

// ValidateFormats checks that every dataset format is supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if !slices.Contains(DatasetFormats, strings.ToLower(f)) {
			return errors.NewValidationError("formats", f, "must be one of: "+strings.Join(DatasetFormats, ", "))
		}
	}
	return nil
}

// Files names the artifacts of a run inside the output directory.
type Files struct {
	ConsolidatedCSV     string `mapstructure:"consolidated_csv" yaml:"consolidated_csv"`
	ConsolidatedJSON    string `mapstructure:"consolidated_json" yaml:"consolidated_json"`
	ConsolidatedYAML    string `mapstructure:"consolidated_yaml" yaml:"consolidated_yaml"`
	ConsolidatedParquet string `mapstructure:"consolidated_parquet" yaml:"consolidated_parquet"`
	Conflicts           string `mapstructure:"conflicts" yaml:"conflicts"`
	ComparisonSummary   string `mapstructure:"comparison_summary" yaml:"comparison_summary"`
	IngestionLog        string `mapstructure:"ingestion_log" yaml:"ingestion_log"`
	DailyCSV            string `mapstructure:"daily_csv" yaml:"daily_csv"`
	Provenance          string `mapstructure:"provenance" yaml:"provenance"`
}

// DefaultFiles returns the default artifact names.
func DefaultFiles() Files {
	return Files{
		ConsolidatedCSV:     constants.ConsolidatedCSV,
		ConsolidatedJSON:    constants.ConsolidatedJSON,
		ConsolidatedYAML:    constants.ConsolidatedYAML,
		ConsolidatedParquet: constants.ConsolidatedParquet,
		Conflicts:           constants.ConflictsFile,
		ComparisonSummary:   constants.ComparisonSummary,
		IngestionLog:        constants.IngestionLog,
		DailyCSV:            constants.DailyCSV,
		Provenance:          constants.ProvenanceFile,
	}
}

// withDefaults fills unset names.
func (f Files) withDefaults() Files {
	def := DefaultFiles()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&f.ConsolidatedCSV, def.ConsolidatedCSV)
	fill(&f.ConsolidatedJSON, def.ConsolidatedJSON)
	fill(&f.ConsolidatedYAML, def.ConsolidatedYAML)
	fill(&f.ConsolidatedParquet, def.ConsolidatedParquet)
	fill(&f.Conflicts, def.Conflicts)
	fill(&f.ComparisonSummary, def.ComparisonSummary)
	fill(&f.IngestionLog, def.IngestionLog)
	fill(&f.DailyCSV, def.DailyCSV)
	fill(&f.Provenance, def.Provenance)
	return f
}

// Writer writes run artifacts below one directory.
type Writer struct {
	dir   string
	files Files
}

// NewWriter creates dir if needed.
func NewWriter(dir string, files Files) (*Writer, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	return &Writer{dir: dir, files: files.withDefaults()}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Files returns the artifact names in use.
func (w *Writer) Files() Files {
	return w.files
}

// Path returns the location of an artifact.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteConsolidated writes the dataset in every requested format and
// returns the written paths. Nothing is written for an empty dataset.
func (w *Writer) WriteConsolidated(ctx context.Context, ms []measurements.Measurement, formats []string) ([]string, error) {
	logger := logging.FromContext(ctx)
	if err := ValidateFormats(formats); err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		logger.Warn().Msg("No measurements to write")
		return nil, nil
	}

	var paths []string
	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch strings.ToLower(format) {
		case DatasetCSV:
			path = w.Path(w.files.ConsolidatedCSV)
			err = writeFile(path, func(out io.Writer) error { return WriteMeasurementsCSV(out, ms) })
		case DatasetJSON:
			path = w.Path(w.files.ConsolidatedJSON)
			err = writeJSON(path, ms)
		case DatasetYAML:
			path = w.Path(w.files.ConsolidatedYAML)
			err = writeFile(path, func(out io.Writer) error { return (&YAMLFormatter{}).Format(out, ms) })
		case DatasetParquet:
			path = w.Path(w.files.ConsolidatedParquet)
			err = writeFile(path, func(out io.Writer) error { return WriteMeasurementsParquet(out, ms) })
		}
		if err != nil {
			return paths, err
		}
		logger.Info().Str("path", path).Int("measurements", len(ms)).Msg("Wrote consolidated dataset")
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteConflicts writes the measurements that carry conflicts as JSON. It
// returns an empty path when there is nothing to write.
func (w *Writer) WriteConflicts(ctx context.Context, ms []measurements.Measurement) (string, error) {
	logger := logging.FromContext(ctx)
	var conflicts []measurements.Measurement
	for _, m := range ms {
		if m.HasConflicts() {
			conflicts = append(conflicts, m)
		}
	}
	if len(conflicts) == 0 {
		logger.Info().Msg("No conflicts to write")
		return "", nil
	}

	path := w.Path(w.files.Conflicts)
	if err := writeJSON(path, conflicts); err != nil {
		return "", err
	}
	logger.Info().Str("path", path).Int("conflicts", len(conflicts)).Msg("Wrote conflicts")
	return path, nil
}

// comparisonFile is the on-disk layout of the comparison summary.
type comparisonFile struct {
	TotalPairs int                  `json:"total_pairs"`
	Summary    comparison.Summary   `json:"summary"`
	Pairs      []*comparison.Result `json:"pairs"`
}

// WriteComparison writes the comparison summary as JSON.
func (w *Writer) WriteComparison(ctx context.Context, results []*comparison.Result) (string, error) {
	if results == nil {
		results = []*comparison.Result{}
	}
	path := w.Path(w.files.ComparisonSummary)
	err := writeJSON(path, comparisonFile{
		TotalPairs: len(results),
		Summary:    comparison.Summarize(results),
		Pairs:      results,
	})
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info().Str("path", path).Int("pairs", len(results)).Msg("Wrote comparison summary")
	return path, nil
}

// WriteIngestionLog writes one JSON object per event.
func (w *Writer) WriteIngestionLog(ctx context.Context, events []ingest.Event) (string, error) {
	path := w.Path(w.files.IngestionLog)
	err := writeFile(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info().Str("path", path).Int("events", len(events)).Msg("Wrote ingestion log")
	return path, nil
}

// WriteDaily writes the daily averages as CSV.
func (w *Writer) WriteDaily(ctx context.Context, days []daily.Day) (string, error) {
	path := w.Path(w.files.DailyCSV)
	if err := writeFile(path, func(out io.Writer) error { return WriteDailyCSV(out, days) }); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info().Str("path", path).Int("days", len(days)).Msg("Wrote daily averages")
	return path, nil
}

// WriteProvenance saves the provenance report as YAML.
func (w *Writer) WriteProvenance(ctx context.Context, report *provenance.Report) (string, error) {
	path := w.Path(w.files.Provenance)
	if err := report.Save(path); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info().Str("path", path).Int("conflicts", len(report.Conflicts)).Msg("Wrote provenance report")
	return path, nil
}

// ReadConsolidated loads a dataset previously written by WriteConsolidated.
// The format follows the file extension.
func ReadConsolidated(path string) ([]measurements.Measurement, error) {
	f, err := os.Open(path) //nolint:gosec // user supplied input path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("dataset", path)
		}
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	var ms []measurements.Measurement
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = errors.WrapParse("json", path, json.NewDecoder(bufio.NewReader(f)).Decode(&ms))
	case ".yaml", ".yml":
		err = errors.WrapParse("yaml", path, yaml.NewDecoder(bufio.NewReader(f)).Decode(&ms))
	case ".parquet":
		info, statErr := f.Stat()
		if statErr != nil {
			return nil, errors.WrapIO("stat", path, statErr)
		}
		ms, err = ReadMeasurementsParquet(f, info.Size())
		if err != nil {
			err = errors.WrapParse("parquet", path, err)
		}
	default:
		ms, err = ReadMeasurementsCSV(bufio.NewReader(f))
		if err != nil {
			err = errors.WrapParse("csv", path, err)
		}
	}
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(out io.Writer) error {
		return (&JSONFormatter{Indent: "  "}).Format(out, v)
	})
}

// writeFile creates path and streams fn's output into it.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, constants.FilePermissions) //nolint:gosec // artifact path under the output directory
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	buf := bufio.NewWriter(f)
	if err := fn(buf); err != nil {
		_ = f.Close()
		return errors.WrapIO("write", path, err)
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return errors.WrapIO("write", path, err)
	}
	return errors.WrapIO("close", path, f.Close())
}
