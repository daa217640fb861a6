// Package sqlitestore implements the task repositories on SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonwraymond/taskexec/task"
)

// Store implements task.Repository and task.HoursRepository using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at dbPath. Parent directories are
// created as needed and the schema is applied.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source used for UpdatedAt and CompletedAt.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT NOT NULL UNIQUE,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		priority     TEXT NOT NULL,
		deadline     TEXT,
		status       TEXT NOT NULL,
		assignee     TEXT NOT NULL DEFAULT 'me',
		tags         TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS working_hours (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		task_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		minutes    INTEGER NOT NULL,
		date       TEXT NOT NULL,
		notes      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_working_hours_task ON working_hours(task_id);
	CREATE INDEX IF NOT EXISTS idx_working_hours_date ON working_hours(date);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const taskColumns = `id, title, description, priority, deadline, status, assignee, tags, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (task.Task, error) {
	var (
		t                     task.Task
		priority, status      string
		tags                  string
		deadline, completedAt sql.NullString
		createdAt, updatedAt  string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &deadline, &status,
		&t.Assignee, &tags, &createdAt, &updatedAt, &completedAt); err != nil {
		return task.Task{}, err
	}
	t.Priority = task.Priority(priority)
	t.Status = task.Status(status)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return task.Task{}, fmt.Errorf("decode tags for %s: %w", t.ID, err)
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return task.Task{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return task.Task{}, err
	}
	if t.Deadline, err = parseNullTime(deadline); err != nil {
		return task.Task{}, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	ts, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	return string(data), err
}

// ListAll returns every task in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns the task with the given ID.
func (s *Store) Get(ctx context.Context, id string) (task.Task, error) {
	return s.get(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q querier, id string) (task.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, fmt.Errorf("%w: %s", task.ErrNotFound, id)
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// Create inserts t. An empty ID is assigned one.
func (s *Store) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	if t.ID == "" {
		t.ID = task.NewID()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return task.Task{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Priority), nullTime(t.Deadline), string(t.Status),
		t.Assignee, tags, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullTime(t.CompletedAt))
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return t, nil
}

// Update applies p inside a transaction.
func (s *Store) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := s.get(ctx, tx, id)
	if err != nil {
		return task.Task{}, err
	}
	if err := p.Apply(&t, s.now()); err != nil {
		return task.Task{}, err
	}
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return task.Task{}, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, priority = ?, deadline = ?, status = ?,
			assignee = ?, tags = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Priority), nullTime(t.Deadline), string(t.Status),
		t.Assignee, tags, formatTime(t.UpdatedAt), nullTime(t.CompletedAt), id)
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return task.Task{}, fmt.Errorf("failed to commit: %w", err)
	}
	return t, nil
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", task.ErrNotFound, id)
	}
	return nil
}

// AddLog inserts a time log.
func (s *Store) AddLog(ctx context.Context, l task.TimeLog) (task.TimeLog, error) {
	if err := l.Validate(); err != nil {
		return task.TimeLog{}, err
	}
	if l.ID == "" {
		l.ID = task.NewLogID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO working_hours (id, task_id, user_id, minutes, date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.TaskID, l.UserID, l.Minutes, l.Date.Format(task.DateLayout), l.Notes, formatTime(l.CreatedAt))
	if err != nil {
		return task.TimeLog{}, fmt.Errorf("failed to insert time log: %w", err)
	}
	return l, nil
}

// ListLogs returns the time logs matching q in insertion order.
func (s *Store) ListLogs(ctx context.Context, q task.HoursQuery) ([]task.TimeLog, error) {
	query := `SELECT id, task_id, user_id, minutes, date, notes, created_at FROM working_hours WHERE 1=1`
	var args []any
	if q.TaskID != "" {
		query += ` AND task_id = ?`
		args = append(args, q.TaskID)
	}
	if q.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if !q.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, q.From.Format(task.DateLayout))
	}
	if !q.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, q.To.Format(task.DateLayout))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time logs: %w", err)
	}
	defer rows.Close()

	out := make([]task.TimeLog, 0)
	for rows.Next() {
		var (
			l               task.TimeLog
			date, createdAt string
		)
		if err := rows.Scan(&l.ID, &l.TaskID, &l.UserID, &l.Minutes, &date, &l.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan time log: %w", err)
		}
		if l.Date, err = time.Parse(task.DateLayout, date); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

var (
	_ task.Repository      = (*Store)(nil)
	_ task.HoursRepository = (*Store)(nil)
)
