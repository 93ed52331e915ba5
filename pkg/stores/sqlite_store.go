package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{config: cfg}, nil
}

// Init opens the database with foreign keys and WAL enabled.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.config.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.config.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetMaxIdleConns(s.config.MaxIdleConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// SaveRun stores a run and its records in one transaction, replacing any
// previous copy of the run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, records []ActionRecord) (err error) {
	description, err := encodeDescription(run.ErrorDescription)
	if err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, node, status, started_at, ended_at, total_resources, exception, error_description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Node,
		run.Status,
		unixNano(run.StartedAt),
		unixNano(run.EndedAt),
		run.TotalResources,
		run.Exception,
		description,
		unixNano(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO action_records (
			run_id, seq, resource_type, resource_name, identity, action, status,
			nesting_level, elapsed_ns, exception, conditional, sensitive
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		var elapsed *int64
		if rec.Elapsed != nil {
			ns := rec.Elapsed.Nanoseconds()
			elapsed = &ns
		}
		_, err = stmt.ExecContext(ctx,
			run.ID,
			i,
			rec.ResourceType,
			rec.ResourceName,
			rec.Identity,
			rec.Action,
			rec.Status,
			rec.NestingLevel,
			elapsed,
			rec.Exception,
			rec.Conditional,
			rec.Sensitive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, node, status, started_at, ended_at, total_resources, exception, error_description, created_at`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun deletes a run and its records.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

const recordColumns = `run_id, seq, resource_type, resource_name, identity, action, status, nesting_level, elapsed_ns, exception, conditional, sensitive`

// ListActionRecords returns every record of a run in completion order.
func (s *SQLiteStore) ListActionRecords(ctx context.Context, runID string) ([]ActionRecord, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM action_records WHERE run_id = ? ORDER BY seq`, runID)
}

// FilterActionRecords returns the records of a run matching filter, in
// completion order.
func (s *SQLiteStore) FilterActionRecords(ctx context.Context, runID string, filter RecordFilter) ([]ActionRecord, error) {
	if len(filter.Statuses) == 0 {
		return []ActionRecord{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
	query := `SELECT ` + recordColumns + ` FROM action_records
		WHERE run_id = ? AND nesting_level <= ? AND status IN (` + placeholders + `)
		ORDER BY seq`

	args := make([]interface{}, 0, len(filter.Statuses)+2)
	args = append(args, runID, filter.MaxNesting)
	for _, st := range filter.Statuses {
		args = append(args, st)
	}
	return s.queryRecords(ctx, query, args...)
}

// CountByStatus tallies the records of a run per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM action_records WHERE run_id = ? GROUP BY status
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list action records: %w", err)
	}
	defer rows.Close()

	records := []ActionRecord{}
	for rows.Next() {
		var rec ActionRecord
		var elapsed sql.NullInt64
		err := rows.Scan(
			&rec.RunID,
			&rec.Seq,
			&rec.ResourceType,
			&rec.ResourceName,
			&rec.Identity,
			&rec.Action,
			&rec.Status,
			&rec.NestingLevel,
			&elapsed,
			&rec.Exception,
			&rec.Conditional,
			&rec.Sensitive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}
		if elapsed.Valid {
			d := time.Duration(elapsed.Int64)
			rec.Elapsed = &d
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var started, ended, created int64
	var description sql.NullString
	err := row.Scan(
		&run.ID,
		&run.Node,
		&run.Status,
		&started,
		&ended,
		&run.TotalResources,
		&run.Exception,
		&description,
		&created,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = fromUnixNano(started)
	run.EndedAt = fromUnixNano(ended)
	run.CreatedAt = fromUnixNano(created)
	if description.Valid && description.String != "" {
		if err := json.Unmarshal([]byte(description.String), &run.ErrorDescription); err != nil {
			return nil, fmt.Errorf("failed to decode error description: %w", err)
		}
	}
	return run, nil
}

func encodeDescription(d map[string]interface{}) (*string, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error description: %w", err)
	}
	s := string(data)
	return &s, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

var _ Store = (*SQLiteStore)(nil)
