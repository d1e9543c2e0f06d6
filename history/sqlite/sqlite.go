// Package sqlite stores run history in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kbrouter/kbrouter/history"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements history.Store on SQLite.
type Store struct {
	db        *sql.DB
	tableName string
}

var _ history.Store = (*Store)(nil)

// Options configures a SQLite history store.
type Options struct {
	Path      string
	TableName string // Default "run_history"
}

// Open opens (creating if needed) the database at opts.Path.
func Open(ctx context.Context, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if opts.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := NewWithDB(db, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already opened database. InitSchema is not called.
func NewWithDB(db *sql.DB, tableName string) *Store {
	if tableName == "" {
		tableName = "run_history"
	}
	return &Store{db: db, tableName: tableName}
}

// InitSchema creates the history table if it doesn't exist
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			route TEXT NOT NULL,
			terminal TEXT NOT NULL,
			sql_query TEXT,
			attempts INTEGER NOT NULL,
			answer TEXT,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a record
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	history.Prepare(rec)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, question, route, terminal, sql_query, attempts, answer, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Question,
		rec.Route,
		rec.Terminal,
		rec.SQLQuery,
		rec.Attempts,
		rec.Answer,
		rec.Error,
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

// Load returns one record by ID
func (s *Store) Load(ctx context.Context, id string) (*history.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, question, route, terminal, sql_query, attempts, answer, error, duration_ms, created_at
		FROM %s WHERE id = ?
	`, s.tableName)

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load history record: %w", err)
	}
	return rec, nil
}

// List returns the newest records first
func (s *Store) List(ctx context.Context, limit int) ([]*history.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, question, route, terminal, sql_query, attempts, answer, error, duration_ms, created_at
		FROM %s ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, history.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []*history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*history.Record, error) {
	var (
		rec        history.Record
		sqlQuery   sql.NullString
		answer     sql.NullString
		errText    sql.NullString
		durationMs int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Question,
		&rec.Route,
		&rec.Terminal,
		&sqlQuery,
		&rec.Attempts,
		&answer,
		&errText,
		&durationMs,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.SQLQuery = sqlQuery.String
	rec.Answer = answer.String
	rec.Error = errText.String
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}
