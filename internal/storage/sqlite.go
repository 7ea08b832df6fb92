package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to init schema")
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT,
			source_path TEXT,
			ir_path TEXT,
			optimized_path TEXT,
			attr_index INTEGER,
			attr_profile TEXT,
			status TEXT,
			stage TEXT,
			error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS run_functions (
			run_id INTEGER REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT,
			symbol_id TEXT,
			line INTEGER,
			old_ref TEXT,
			new_ref TEXT,
			PRIMARY KEY (run_id, line)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_path);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return s.addColumn("run_functions", "symbol_id", "TEXT")
}

// addColumn brings ledgers created before column existed up to date.
func (s *SQLiteStore) addColumn(table, column, typ string) error {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + typ)
	return errors.Wrapf(err, "failed to add %s.%s", table, column)
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) (int64, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, source_path, ir_path, optimized_path, attr_index, attr_profile, status, stage, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Source, run.IR, run.Optimized, run.AttrIndex, run.AttrProfile, run.Status, run.Stage, run.Error)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_functions (run_id, name, symbol_id, line, old_ref, new_ref) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, f := range run.Functions {
		if _, err := stmt.ExecContext(ctx, id, f.Name, f.SymbolID, f.Line, f.OldRef, f.NewRef); err != nil {
			return 0, errors.Wrapf(err, "failed to insert function %s", f.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

const runColumns = "id, started_at, source_path, ir_path, optimized_path, attr_index, attr_profile, status, stage, error"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started string
	if err := row.Scan(&r.ID, &started, &r.Source, &r.IR, &r.Optimized, &r.AttrIndex, &r.AttrProfile, &r.Status, &r.Stage, &r.Error); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.StartedAt = t
	}
	return &r, nil
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %d", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, COALESCE(symbol_id, ''), line, old_ref, new_ref FROM run_functions WHERE run_id = ? ORDER BY line", id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query run functions")
	}
	defer rows.Close()

	for rows.Next() {
		var f RunFunction
		if err := rows.Scan(&f.Name, &f.SymbolID, &f.Line, &f.OldRef, &f.NewRef); err != nil {
			return nil, errors.Wrap(err, "failed to scan run function")
		}
		r.Functions = append(r.Functions, f)
	}
	return r, rows.Err()
}
