package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"farmdeck/internal/core"

	_ "modernc.org/sqlite"
)

// Backup sync states for records mirrored to the spreadsheet backup.
const (
	BackupPending = "pending"
	BackupSynced  = "synced"
	BackupError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateProject inserts a new project. The caller supplies the id.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) error {
	cols, err := json.Marshal(p.CustomColumns)
	if err != nil {
		return fmt.Errorf("marshal custom columns: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, start_date, custom_columns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.StartDate.String(), string(cols), now, now)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	slog.InfoContext(ctx, "Project saved to SQLite",
		"id", p.ID,
		"title", p.Title,
		"start_date", p.StartDate.String())

	return nil
}

// GetProject returns core.ErrProjectNotFound when no project has the id.
func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, start_date, custom_columns, created_at, updated_at
		 FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, core.ErrProjectNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, start_date, custom_columns, created_at, updated_at
		 FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// UpdateProject updates the locally editable fields of a project.
func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) error {
	cols, err := json.Marshal(p.CustomColumns)
	if err != nil {
		return fmt.Errorf("marshal custom columns: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET title = ?, start_date = ?, custom_columns = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, p.StartDate.String(), string(cols), time.Now().UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrProjectNotFound
	}
	return nil
}

// UpsertProject creates the project preserving its id, or, when it already
// exists, overwrites title and custom columns in place. Start date and
// created_at of an existing project are retained; timestamps are managed
// here.
func (r *SQLiteRepository) UpsertProject(ctx context.Context, p core.Project) error {
	cols, err := json.Marshal(p.CustomColumns)
	if err != nil {
		return fmt.Errorf("marshal custom columns: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, start_date, custom_columns, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   custom_columns = excluded.custom_columns,
		   updated_at = excluded.updated_at`,
		p.ID, p.Title, p.StartDate.String(), string(cols), now, now)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", p.ID, err)
	}

	slog.InfoContext(ctx, "Project upserted", "id", p.ID, "title", p.Title)
	return nil
}

// DeleteProject removes a project and, via the schema's cascade, its records.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrProjectNotFound
	}
	slog.InfoContext(ctx, "Project deleted", "id", id)
	return nil
}

// CreateRecord inserts a new record, queued for backup.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) error {
	vals, err := json.Marshal(orEmptyMap(rec.CustomValues))
	if err != nil {
		return fmt.Errorf("marshal custom values: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (id, project_id, record_date, produce, revenue_cents,
		   input_cost_cents, notes, custom_values, backup_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Date.String(), rec.Produce.String(),
		rec.Revenue.Cents, rec.InputCost.Cents, rec.Notes, string(vals),
		BackupPending, now, now)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", rec.ID,
		"project_id", rec.ProjectID,
		"date", rec.Date.String(),
		"revenue_cents", rec.Revenue.Cents,
		"input_cost_cents", rec.InputCost.Cents)

	return nil
}

// GetRecord retrieves a single record by id.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx, recordSelect+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrRecordNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// ListRecords returns a project's records ordered by date, then insertion.
func (r *SQLiteRepository) ListRecords(ctx context.Context, projectID string) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		recordSelect+` WHERE project_id = ? ORDER BY record_date, created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list records for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// UpsertRecord creates or replaces a record by its original id and requeues
// it for backup.
func (r *SQLiteRepository) UpsertRecord(ctx context.Context, rec core.Record) error {
	vals, err := json.Marshal(orEmptyMap(rec.CustomValues))
	if err != nil {
		return fmt.Errorf("marshal custom values: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (id, project_id, record_date, produce, revenue_cents,
		   input_cost_cents, notes, custom_values, backup_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   project_id = excluded.project_id,
		   record_date = excluded.record_date,
		   produce = excluded.produce,
		   revenue_cents = excluded.revenue_cents,
		   input_cost_cents = excluded.input_cost_cents,
		   notes = excluded.notes,
		   custom_values = excluded.custom_values,
		   backup_status = excluded.backup_status,
		   updated_at = excluded.updated_at`,
		rec.ID, rec.ProjectID, rec.Date.String(), rec.Produce.String(),
		rec.Revenue.Cents, rec.InputCost.Cents, rec.Notes, string(vals),
		BackupPending, now, now)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecord removes a record from a project.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, projectID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrRecordNotFound
	}
	slog.InfoContext(ctx, "Record deleted", "id", id, "project_id", projectID)
	return nil
}

// GetPendingBackupRecords returns records awaiting backup, oldest first.
func (r *SQLiteRepository) GetPendingBackupRecords(ctx context.Context, limit int) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		recordSelect+` WHERE backup_status = ? ORDER BY created_at, id LIMIT ?`,
		BackupPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending backup records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending records: %w", err)
	}
	return out, nil
}

// MarkBackedUp marks a record as mirrored to the backup spreadsheet.
func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, id string) error {
	if err := r.setBackupStatus(ctx, id, BackupSynced); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Record marked as backed up", "id", id)
	return nil
}

// MarkBackupError marks a record as having failed backup.
func (r *SQLiteRepository) MarkBackupError(ctx context.Context, id string) error {
	if err := r.setBackupStatus(ctx, id, BackupError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Record marked with backup error", "id", id)
	return nil
}

// RetryFailedBackups requeues every errored record.
func (r *SQLiteRepository) RetryFailedBackups(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET backup_status = ? WHERE backup_status = ?`,
		BackupPending, BackupError)
	if err != nil {
		return fmt.Errorf("retry failed backups: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) setBackupStatus(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET backup_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("set backup status %s on %s: %w", status, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

const recordSelect = `SELECT id, project_id, record_date, produce, revenue_cents,
	input_cost_cents, notes, custom_values, created_at, updated_at FROM records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (core.Project, error) {
	var (
		p                    core.Project
		startDate            string
		colsJSON             string
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Title, &startDate, &colsJSON, &createdAt, &updatedAt); err != nil {
		return core.Project{}, err
	}

	start, err := core.ParseDate(startDate)
	if err != nil {
		return core.Project{}, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	p.StartDate = start

	if err := json.Unmarshal([]byte(colsJSON), &p.CustomColumns); err != nil {
		return core.Project{}, fmt.Errorf("parse custom columns: %w", err)
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return p, nil
}

func scanRecord(row rowScanner) (core.Record, error) {
	var (
		rec                  core.Record
		date, produce        string
		valsJSON             string
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.ProjectID, &date, &produce, &rec.Revenue.Cents,
		&rec.InputCost.Cents, &rec.Notes, &valsJSON, &createdAt, &updatedAt); err != nil {
		return core.Record{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse record date %q: %w", date, err)
	}
	rec.Date = d

	q, err := decimal.NewFromString(produce)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse produce %q: %w", produce, err)
	}
	rec.Produce = q

	if err := json.Unmarshal([]byte(valsJSON), &rec.CustomValues); err != nil {
		return core.Record{}, fmt.Errorf("parse custom values: %w", err)
	}
	if len(rec.CustomValues) == 0 {
		rec.CustomValues = nil
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return rec, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
