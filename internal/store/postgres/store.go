// Package postgres persists canonical measurements in PostgreSQL.
//
// Rows are keyed by record_id, so loading the same dataset twice leaves the
// table unchanged.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentstation/bodymap/pkg/errors"
	"github.com/agentstation/bodymap/pkg/logging"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "body_measurements"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Store provides Postgres-backed persistence for measurements.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.NewConfigError("postgres", fmt.Sprintf("invalid table name %q", table), nil)
	}
	return &Store{pool: pool, table: table}, nil
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	if dsn == "" {
		return nil, errors.NewConfigError("postgres", "dsn is required", nil)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.NewConfigError("postgres", "invalid dsn", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s, err := New(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Table returns the table name in use.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func schemaSQL(ident string) string {
	return `CREATE TABLE IF NOT EXISTS ` + ident + ` (
        record_id          text PRIMARY KEY,
        measured_at        timestamptz NOT NULL,
        weight_kg          double precision,
        body_fat_pct       double precision,
        source_types       text[] NOT NULL,
        conflicting_fields text[] NOT NULL,
        chosen_source      text,
        ingested_at        timestamptz NOT NULL,
        document           jsonb NOT NULL,
        updated_at         timestamptz NOT NULL DEFAULT now()
    )`
}

func upsertSQL(ident string) string {
	return `INSERT INTO ` + ident + ` (record_id, measured_at, weight_kg, body_fat_pct, source_types, conflicting_fields, chosen_source, ingested_at, document)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (record_id) DO UPDATE SET
            measured_at = EXCLUDED.measured_at,
            weight_kg = EXCLUDED.weight_kg,
            body_fat_pct = EXCLUDED.body_fat_pct,
            source_types = EXCLUDED.source_types,
            conflicting_fields = EXCLUDED.conflicting_fields,
            chosen_source = EXCLUDED.chosen_source,
            ingested_at = EXCLUDED.ingested_at,
            document = EXCLUDED.document,
            updated_at = now()`
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL(s.ident())); err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

// Upsert writes ms inside a single transaction and returns the number of
// rows written.
func (s *Store) Upsert(ctx context.Context, ms []measurements.Measurement) (n int, err error) {
	if len(ms) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	stmt := upsertSQL(s.ident())
	for i := range ms {
		args, err := rowArgs(&ms[i])
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return 0, fmt.Errorf("upserting %s: %w", ms[i].RecordID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info().
		Str("table", s.table).
		Int("rows", len(ms)).
		Msg("Stored measurements")
	return len(ms), nil
}

// Get returns the stored measurement, or a NotFoundError.
func (s *Store) Get(ctx context.Context, recordID string) (*measurements.Measurement, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM `+s.ident()+` WHERE record_id=$1`, recordID).Scan(&doc)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NewNotFoundError("measurement", recordID)
		}
		return nil, err
	}
	var m measurements.Measurement
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, errors.WrapParse("json", recordID, err)
	}
	return &m, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.ident()).Scan(&n)
	return n, err
}

func rowArgs(m *measurements.Measurement) ([]any, error) {
	if m.RecordID == "" {
		return nil, errors.NewValidationError("record_id", m.RecordID, "record id is required")
	}
	doc, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	kinds := make([]string, len(m.SourceKinds))
	for i, k := range m.SourceKinds {
		kinds[i] = k.String()
	}
	conflicting := m.ConflictingFields
	if conflicting == nil {
		conflicting = []string{}
	}
	var chosen *string
	if m.ChosenSource != nil {
		c := m.ChosenSource.String()
		chosen = &c
	}
	ingested := m.ProcessedAt.Time
	if ingested.IsZero() {
		ingested = time.Now().UTC()
	}

	return []any{
		m.RecordID,
		m.Timestamp,
		m.WeightKg.Ptr(),
		m.BodyFatPct.Ptr(),
		kinds,
		conflicting,
		chosen,
		ingested,
		doc,
	}, nil
}
