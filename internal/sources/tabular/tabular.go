// Package tabular parses delimited text exports of a body composition
// scale into raw records.
//
// Exports differ by vendor and locale, so the parser sniffs the character
// encoding and the delimiter, renames headers through a column mapping and
// accepts comma decimal separators. Naive timestamps are localized in the
// configured zone.
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// Column names with a meaning beyond the measurement fields.
const (
	ColumnDate      = "date"
	ColumnTime      = "time"
	ColumnTimestamp = "timestamp"
)

// Config controls how tabular files are decoded.
type Config struct {
	// Encodings are tried in order; the first that decodes the file wins.
	Encodings []string `mapstructure:"encodings" yaml:"encodings"`

	// Delimiters are tried in order against the header line.
	Delimiters []string `mapstructure:"delimiters" yaml:"delimiters"`

	// ColumnMappings renames source headers to canonical column names.
	ColumnMappings map[string]string `mapstructure:"column_mappings" yaml:"column_mappings"`

	// TimeLayouts are the accepted date and timestamp layouts.
	TimeLayouts []string `mapstructure:"time_layouts" yaml:"time_layouts"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Encodings:  []string{"utf-8", "utf-8-sig", "utf-16", "windows-1252"},
		Delimiters: []string{",", ";", "\t", "|"},
		ColumnMappings: map[string]string{
			"Date":                  ColumnDate,
			"Time":                  ColumnTime,
			"Weight":                measurements.FieldWeightKg,
			"Weight (kg)":           measurements.FieldWeightKg,
			"Body Fat":              measurements.FieldBodyFatPct,
			"Body Fat (%)":          measurements.FieldBodyFatPct,
			"Fat Mass (kg)":         measurements.FieldFatMassKg,
			"Fat-free Mass (kg)":    measurements.FieldFatFreeMassKg,
			"Skeletal Muscle (%)":   measurements.FieldSkeletalMusclePct,
			"Muscle Mass (kg)":      measurements.FieldMuscleMassKg,
			"Bone Mass (kg)":        measurements.FieldBoneMassKg,
			"Body Water (%)":        measurements.FieldBodyWater,
			"BMR (kcal)":            measurements.FieldBMRKcal,
			"Metabolic Age":         measurements.FieldMetabolicAge,
			"Visceral Fat":          measurements.FieldVisceralFatRating,
			"Fecha":                 ColumnDate,
			"Hora":                  ColumnTime,
			"Peso":                  measurements.FieldWeightKg,
			"Peso (kg)":             measurements.FieldWeightKg,
			"Grasa corporal (%)":    measurements.FieldBodyFatPct,
			"Masa muscular (kg)":    measurements.FieldMuscleMassKg,
			"Masa ósea (kg)":        measurements.FieldBoneMassKg,
			"Agua corporal (%)":     measurements.FieldBodyWater,
			"Grasa visceral":        measurements.FieldVisceralFatRating,
			"Edad metabólica":       measurements.FieldMetabolicAge,
			"Metabolismo basal":     measurements.FieldBMRKcal,
			"Músculo esquelético":   measurements.FieldSkeletalMusclePct,
			"Masa libre de grasa":   measurements.FieldFatFreeMassKg,
			"Porcentaje de grasa":   measurements.FieldBodyFatPct,
			"Masa grasa (kg)":       measurements.FieldFatMassKg,
			"Sin grasa (%)":         measurements.FieldFatFreePct,
			"Músculo esquelético %": measurements.FieldSkeletalMusclePct,
		},
		TimeLayouts: []string{
			time.RFC3339,
			"2006-01-02 15:04:05Z07:00",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04",
			"2006-01-02 15:04",
			"2006-01-02 3:04:05 PM",
			"2006-01-02 3:04 PM",
			"2006-01-02",
			"2006/01/02 15:04:05",
			"2006/01/02 15:04",
			"2006/01/02",
			"01/02/2006 15:04:05",
			"01/02/2006 15:04",
			"01/02/2006",
			"02.01.2006 15:04:05",
			"02.01.2006 15:04",
			"02.01.2006",
		},
	}
}

// namedEncoding is a resolved entry of Config.Encodings.
type namedEncoding struct {
	name   string
	enc    encoding.Encoding
	strict bool // reject invalid UTF-8 instead of substituting
}

// Parser reads tabular exports.
type Parser struct {
	cfg       Config
	loc       *time.Location
	encodings []namedEncoding
	delims    []rune
	mappings  map[string]string // keyed by lower-cased header
}

// New creates a parser. Naive timestamps are read in loc; a nil loc means UTC.
func New(cfg Config, loc *time.Location) (*Parser, error) {
	if loc == nil {
		loc = time.UTC
	}
	def := DefaultConfig()
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = def.Encodings
	}
	if len(cfg.Delimiters) == 0 {
		cfg.Delimiters = def.Delimiters
	}
	if len(cfg.TimeLayouts) == 0 {
		cfg.TimeLayouts = def.TimeLayouts
	}

	p := &Parser{cfg: cfg, loc: loc, mappings: make(map[string]string, len(cfg.ColumnMappings))}
	for _, name := range cfg.Encodings {
		ne, err := lookupEncoding(name)
		if err != nil {
			return nil, errors.NewConfigError("csv", err.Error(), err)
		}
		p.encodings = append(p.encodings, ne)
	}
	for _, d := range cfg.Delimiters {
		if utf8.RuneCountInString(d) != 1 {
			return nil, errors.NewConfigError("csv", fmt.Sprintf("delimiter %q must be a single character", d), nil)
		}
		r, _ := utf8.DecodeRuneInString(d)
		p.delims = append(p.delims, r)
	}
	for from, to := range cfg.ColumnMappings {
		if !knownColumn(to) {
			return nil, errors.NewConfigError("csv", fmt.Sprintf("column %q maps to unknown column %q", from, to), nil)
		}
		p.mappings[strings.ToLower(strings.TrimSpace(from))] = to
	}
	return p, nil
}

// Kind implements sources.Parser.
func (p *Parser) Kind() measurements.SourceKind {
	return measurements.Tabular
}

// Parse implements sources.Parser. Rows that cannot be read are logged and
// skipped; only an unreadable file is an error.
func (p *Parser) Parse(ctx context.Context, path, fileID string) ([]measurements.RawRecord, error) {
	name := filepath.Base(path)
	logger := logging.FromContext(ctx).With().Str("file", name).Logger()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the scanned raw directory
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	text, encName := p.decode(data)
	if encName == "" {
		logger.Warn().Msg("Encoding detection failed, using utf-8")
	} else {
		logger.Debug().Str("encoding", encName).Msg("Detected encoding")
	}

	delim := p.sniffDelimiter(text)
	logger.Debug().Str("delimiter", string(delim)).Msg("Detected delimiter")

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParseError("csv", path, "no header row", nil)
	}

	cols := p.columns(rows[0])
	_, hasDate := cols[ColumnDate]
	_, hasTimestamp := cols[ColumnTimestamp]
	if !hasDate && !hasTimestamp {
		logger.Warn().Strs("columns", rows[0]).Msg("No date or timestamp column found, skipping file")
		return []measurements.RawRecord{}, nil
	}

	records := make([]measurements.RawRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		rec, err := p.record(cols, row)
		if err != nil {
			logger.Warn().Err(errors.NewParseError("csv", name, err.Error(), err).AtLine(i + 2)).Msg("Skipping row")
			continue
		}
		rec.SourceFile = name
		rec.SourceFileID = fileID
		rec.Kind = measurements.Tabular
		records = append(records, rec)
	}

	logger.Info().Int("records", len(records)).Msg("Parsed tabular file")
	return records, nil
}

// decode converts data to UTF-8 using the first configured encoding that
// accepts it. The returned name is empty when every encoding failed and the
// bytes were decoded as lossy UTF-8.
func (p *Parser) decode(data []byte) ([]byte, string) {
	for _, ne := range p.encodings {
		if ne.strict && !utf8.Valid(data) {
			continue
		}
		out, err := ne.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		return trimBOM(out), ne.name
	}
	out, _ := unicode.UTF8.NewDecoder().Bytes(data)
	return trimBOM(out), ""
}

// sniffDelimiter returns the first configured delimiter present on the
// header line, or a comma.
func (p *Parser) sniffDelimiter(text []byte) rune {
	header, _, _ := bytes.Cut(text, []byte("\n"))
	for _, d := range p.delims {
		if bytes.ContainsRune(header, d) {
			return d
		}
	}
	return ','
}

// columns maps canonical column names to their index. Mappings match
// headers case-insensitively. Headers without a mapping keep their trimmed
// name; the first occurrence of a name wins.
func (p *Parser) columns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if mapped, ok := p.mappings[strings.ToLower(h)]; ok {
			h = mapped
		}
		if _, seen := cols[h]; !seen {
			cols[h] = i
		}
	}
	return cols
}

// record builds one record from a data row.
func (p *Parser) record(cols map[string]int, row []string) (measurements.RawRecord, error) {
	var rec measurements.RawRecord

	var raw string
	if i, ok := cols[ColumnDate]; ok {
		raw = cell(row, i)
		if j, ok := cols[ColumnTime]; ok {
			if t := cell(row, j); t != "" {
				raw += " " + t
			}
		}
	} else {
		raw = cell(row, cols[ColumnTimestamp])
	}
	ts, err := p.parseTime(raw)
	if err != nil {
		return rec, err
	}
	rec.Timestamp = ts

	for _, f := range measurements.Fields {
		if i, ok := cols[f.Name]; ok {
			f.Set(&rec.Composition, ParseNumber(cell(row, i)))
		}
	}
	return rec, nil
}

// parseTime parses value with the configured layouts. Values carrying an
// offset are converted into the parser's zone; naive values are read in it.
func (p *Parser) parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.NewValidationError(ColumnTimestamp, value, "empty date")
	}
	for _, layout := range p.cfg.TimeLayouts {
		if t, err := time.ParseInLocation(layout, value, p.loc); err == nil {
			return t.In(p.loc), nil
		}
	}
	return time.Time{}, errors.NewValidationError(ColumnTimestamp, value, fmt.Sprintf("unrecognized date %q", value))
}

// ParseNumber reads a numeric cell. A comma is accepted as the decimal
// separator; blank or unparseable cells are absent.
func ParseNumber(s string) measurements.Value {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return measurements.None()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return measurements.None()
	}
	return measurements.FromFloat(v)
}

func lookupEncoding(name string) (namedEncoding, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	switch key {
	case "utf-8", "utf8":
		return namedEncoding{name: name, enc: unicode.UTF8, strict: true}, nil
	case "utf-8-sig", "utf8-sig":
		return namedEncoding{name: name, enc: unicode.UTF8BOM, strict: true}, nil
	case "utf-16", "utf16":
		return namedEncoding{name: name, enc: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)}, nil
	case "latin-1", "latin1", "iso-8859-1":
		return namedEncoding{name: name, enc: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return namedEncoding{name: name, enc: charmap.Windows1252}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return namedEncoding{}, fmt.Errorf("unsupported encoding %q", name)
	}
	return namedEncoding{name: name, enc: enc}, nil
}

func knownColumn(name string) bool {
	switch name {
	case ColumnDate, ColumnTime, ColumnTimestamp:
		return true
	}
	_, ok := measurements.FieldByName(name)
	return ok
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
