// Package postgres stores run history in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kbrouter/kbrouter/history"
)

// DBPool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements history.Store on PostgreSQL.
type Store struct {
	pool      DBPool
	tableName string
}

var _ history.Store = (*Store)(nil)

// Options configures a Postgres history store.
type Options struct {
	ConnString string
	TableName  string // Default "run_history"
}

// Open connects a pool and creates the table.
func Open(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool. InitSchema is not called.
func NewWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "run_history"
	}
	return &Store{pool: pool, tableName: tableName}
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
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Save inserts a record
func (s *Store) Save(ctx context.Context, rec *history.Record) error {
	history.Prepare(rec)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, question, route, terminal, sql_query, attempts, answer, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Question,
		rec.Route,
		rec.Terminal,
		rec.SQLQuery,
		rec.Attempts,
		rec.Answer,
		rec.Error,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
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
		FROM %s
		WHERE id = $1
	`, s.tableName)

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		FROM %s
		ORDER BY created_at DESC
		LIMIT $1
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, history.NormalizeLimit(limit))
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

func scanRecord(row pgx.Row) (*history.Record, error) {
	var (
		rec        history.Record
		sqlQuery   *string
		answer     *string
		errText    *string
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
	rec.SQLQuery = deref(sqlQuery)
	rec.Answer = deref(answer)
	rec.Error = deref(errText)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
