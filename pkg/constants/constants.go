// Package constants provides shared constants used throughout the bodymap codebase.
// This includes defaults for matching and identity, file permissions and the
// default artifact names that should be consistent across the application.
package constants

import "time"

// Processing defaults used when the configuration leaves a value unset
const (
	// DefaultTimezone is the zone naive timestamps are localized in
	DefaultTimezone = "America/Santiago"

	// DefaultTimestampTolerance is the window within which two events are the same measurement
	DefaultTimestampTolerance = 60 * time.Second

	// DefaultNumericTolerance is the epsilon under which two values agree
	DefaultNumericTolerance = 0.001

	// DefaultHashAlgorithm is the digest used for record identifiers
	DefaultHashAlgorithm = "sha256"

	// DefaultBucketSeconds is the identity timestamp truncation interval
	DefaultBucketSeconds = 60
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Default artifact names written to the output directory
const (
	ConsolidatedCSV     = "weight_consolidated.csv"
	ConsolidatedJSON    = "weight_consolidated.json"
	ConsolidatedYAML    = "weight_consolidated.yaml"
	ConsolidatedParquet = "weight_consolidated.parquet"
	ConflictsFile       = "weight_conflicts.json"
	ComparisonSummary   = "comparison_summary.json"
	IngestionLog        = "ingestion_log.jsonl"
	DailyCSV            = "weight_daily.csv"
	ProvenanceFile      = "provenance.yaml"
)

// NotAvailable is the placeholder written for the missing side of an unpaired file.
const NotAvailable = "N/A"
