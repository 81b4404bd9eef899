package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	integration_id TEXT NOT NULL,
	sync_run_id    TEXT NOT NULL,
	scope          INTEGER NOT NULL,
	category       TEXT NOT NULL,
	status         TEXT NOT NULL,
	period_start   TEXT NOT NULL,
	period_end     TEXT NOT NULL,
	activity_amount TEXT NOT NULL,
	activity_unit  TEXT NOT NULL,
	total_co2e     TEXT,
	body           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_owner ON records(owner_id, period_start);
CREATE INDEX IF NOT EXISTS idx_records_integration ON records(integration_id);
CREATE INDEX IF NOT EXISTS idx_records_run ON records(sync_run_id);

CREATE TABLE IF NOT EXISTS sync_runs (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	integration_id TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	body           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_integration ON sync_runs(integration_id, started_at);

CREATE TABLE IF NOT EXISTS watermarks (
	company_id     TEXT NOT NULL,
	integration_id TEXT NOT NULL,
	through        TEXT NOT NULL,
	PRIMARY KEY (company_id, integration_id)
);
`

// SQLite is a Store backed by a SQLite database file.
// Decimal quantities are stored as TEXT so no precision is lost.
type SQLite struct {
	db  *sql.DB
	dsn string
}

// NewSQLite opens or creates the database at dsn and applies the schema.
// A dsn of ":memory:" gives a private in-memory database.
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store needs a DSN")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Str("component", "store").
		Str("dsn", dsn).
		Msg("sqlite store opened")
	return &SQLite{db: db, dsn: dsn}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveRecords inserts records in one transaction.
func (s *SQLite) SaveRecords(ctx context.Context, records []ghg.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, records)
	})
}

// CommitImport inserts records and advances the watermark in one transaction.
func (s *SQLite) CommitImport(
	ctx context.Context,
	companyID, integrationID string,
	records []ghg.Record,
	through time.Time,
) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertRecords(ctx, tx, records); err != nil {
			return err
		}
		return advanceWatermark(ctx, tx, companyID, integrationID, through)
	})
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []ghg.Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(id, owner_id, integration_id, sync_run_id, scope, category, status,
		 period_start, period_end, activity_amount, activity_unit, total_co2e, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", ErrDuplicateID)
		}
		body, marshalErr := json.Marshal(r)
		if marshalErr != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, marshalErr)
		}
		var total sql.NullString
		if r.Calculation != nil {
			total = sql.NullString{String: r.Calculation.TotalCO2e.String(), Valid: true}
		}
		if _, execErr := stmt.ExecContext(ctx,
			r.ID, r.OwnerID, r.IntegrationID, r.SyncRunID, int(r.Scope), r.Category, r.Status.String(),
			formatTime(r.PeriodStart), formatTime(r.PeriodEnd),
			r.ActivityAmount.String(), r.ActivityUnit, total, string(body),
		); execErr != nil {
			if isUniqueViolation(execErr) {
				return fmt.Errorf("%w: record %q", ErrDuplicateID, r.ID)
			}
			return fmt.Errorf("inserting record %s: %w", r.ID, execErr)
		}
	}
	return nil
}

// ListRecords returns matching records ordered by period start, then id.
func (s *SQLite) ListRecords(ctx context.Context, filter RecordFilter) ([]ghg.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if filter.OwnerID != "" {
		add("owner_id = ?", filter.OwnerID)
	}
	if filter.IntegrationID != "" {
		add("integration_id = ?", filter.IntegrationID)
	}
	if filter.SyncRunID != "" {
		add("sync_run_id = ?", filter.SyncRunID)
	}
	if filter.Scope != 0 {
		add("scope = ?", int(filter.Scope))
	}
	if filter.Status != nil {
		add("status = ?", filter.Status.String())
	}
	if !filter.From.IsZero() {
		add("period_start >= ?", formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		add("period_start <= ?", formatTime(filter.To))
	}

	query := "SELECT body FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []ghg.Record
	for rows.Next() {
		var body string
		if scanErr := rows.Scan(&body); scanErr != nil {
			return nil, fmt.Errorf("scanning record: %w", scanErr)
		}
		var r ghg.Record
		if decodeErr := json.Unmarshal([]byte(body), &r); decodeErr != nil {
			return nil, fmt.Errorf("decoding record: %w", decodeErr)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRecord replaces a stored record by id.
func (s *SQLite) UpdateRecord(ctx context.Context, r ghg.Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", r.ID, err)
	}
	var total sql.NullString
	if r.Calculation != nil {
		total = sql.NullString{String: r.Calculation.TotalCO2e.String(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE records SET
		owner_id = ?, integration_id = ?, sync_run_id = ?, scope = ?, category = ?, status = ?,
		period_start = ?, period_end = ?, activity_amount = ?, activity_unit = ?, total_co2e = ?, body = ?
		WHERE id = ?`,
		r.OwnerID, r.IntegrationID, r.SyncRunID, int(r.Scope), r.Category, r.Status.String(),
		formatTime(r.PeriodStart), formatTime(r.PeriodEnd), r.ActivityAmount.String(), r.ActivityUnit,
		total, string(body), r.ID)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %q", ErrNotFound, r.ID)
	}
	return nil
}

// CreateRun stores a new run.
func (s *SQLite) CreateRun(ctx context.Context, run Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, company_id, integration_id, status, started_at, body) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CompanyID, run.IntegrationID, string(run.Status), formatTime(run.StartedAt), string(body))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: run %q", ErrDuplicateID, run.ID)
		}
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun overwrites an in-progress run with its terminal state.
func (s *SQLite) FinishRun(ctx context.Context, run Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, body = ? WHERE id = ? AND status = ?`,
		string(run.Status), string(body), run.ID, string(RunInProgress))
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	cur, getErr := s.GetRun(ctx, run.ID)
	if getErr != nil {
		return getErr
	}
	return fmt.Errorf("%w: run %q is %s", ErrRunNotRunning, run.ID, cur.Status)
}

// GetRun returns a run by id.
func (s *SQLite) GetRun(ctx context.Context, id string) (Run, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM sync_runs WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: run %q", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("reading run %s: %w", id, err)
	}
	var run Run
	if decodeErr := json.Unmarshal([]byte(body), &run); decodeErr != nil {
		return Run{}, fmt.Errorf("decoding run %s: %w", id, decodeErr)
	}
	return run, nil
}

// ListRuns returns an integration's runs, newest first. An empty id lists all.
func (s *SQLite) ListRuns(ctx context.Context, integrationID string) ([]Run, error) {
	query := `SELECT body FROM sync_runs`
	var args []any
	if integrationID != "" {
		query += ` WHERE integration_id = ?`
		args = append(args, integrationID)
	}
	query += ` ORDER BY started_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var body string
		if scanErr := rows.Scan(&body); scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		var run Run
		if decodeErr := json.Unmarshal([]byte(body), &run); decodeErr != nil {
			return nil, fmt.Errorf("decoding run: %w", decodeErr)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Watermark returns the last imported day.
func (s *SQLite) Watermark(ctx context.Context, companyID, integrationID string) (time.Time, bool, error) {
	var through string
	err := s.db.QueryRowContext(ctx,
		`SELECT through FROM watermarks WHERE company_id = ? AND integration_id = ?`,
		companyID, integrationID).Scan(&through)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading watermark: %w", err)
	}
	t, err := time.Parse(timeLayout, through)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing watermark %q: %w", through, err)
	}
	return t, true, nil
}

// advanceWatermark moves the watermark forward. It never moves backwards.
func advanceWatermark(ctx context.Context, tx *sql.Tx, companyID, integrationID string, through time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO watermarks (company_id, integration_id, through) VALUES (?, ?, ?)
		ON CONFLICT (company_id, integration_id) DO UPDATE SET through = excluded.through
		WHERE excluded.through > watermarks.through`,
		companyID, integrationID, formatTime(through))
	if err != nil {
		return fmt.Errorf("writing watermark: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
