package comparison

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/bodymap/pkg/errors"
)

// Period is the month and year a source file covers, taken from its name,
// e.g. "Peso 3-2025 Huawei Health.csv".
type Period struct {
	Month int `json:"month" yaml:"month"`
	Year  int `json:"year" yaml:"year"`
}

// String renders the period as M-YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%d-%d", p.Month, p.Year)
}

// ParsePeriod reads the second whitespace-separated token of name as
// <month>-<year>. Names that do not follow the pattern are reported as
// validation errors and the file stays unpaired.
func ParsePeriod(name string) (Period, error) {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return Period{}, errors.NewValidationError("file_name", name, "expected at least two space-separated tokens")
	}

	monthStr, yearStr, ok := strings.Cut(parts[1], "-")
	if !ok || strings.Contains(yearStr, "-") {
		return Period{}, errors.NewValidationError("file_name", name, fmt.Sprintf("period token %q is not <month>-<year>", parts[1]))
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return Period{}, errors.WrapValidation("file_name", fmt.Errorf("month in %q: %w", parts[1], err))
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Period{}, errors.WrapValidation("file_name", fmt.Errorf("year in %q: %w", parts[1], err))
	}

	return Period{Month: month, Year: year}, nil
}
