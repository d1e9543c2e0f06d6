package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kbrouter/kbrouter/log"
)

// DefaultMaxRows bounds the rows a read keeps.
const DefaultMaxRows = 200

// IsRead reports whether statement is treated as a read. The check is a
// case-insensitive prefix match on SELECT or WITH after trimming whitespace,
// so a statement that starts with a comment is treated as a write.
func IsRead(statement string) bool {
	s := strings.ToUpper(strings.TrimSpace(statement))
	return strings.HasPrefix(s, "SELECT") || strings.HasPrefix(s, "WITH")
}

// SQLExecutor runs statements against a database/sql store. Every call
// takes a dedicated connection and gives it back before returning.
type SQLExecutor struct {
	db      *sql.DB
	maxRows int
	logger  log.Logger
}

// ExecutorOption configures a SQLExecutor.
type ExecutorOption func(*SQLExecutor)

// WithMaxRows caps the rows captured from a read. Values below 1 keep the default.
func WithMaxRows(n int) ExecutorOption {
	return func(e *SQLExecutor) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger log.Logger) ExecutorOption {
	return func(e *SQLExecutor) {
		e.logger = logger
	}
}

// NewSQLExecutor wraps db.
func NewSQLExecutor(db *sql.DB, opts ...ExecutorOption) *SQLExecutor {
	e := &SQLExecutor{
		db:      db,
		maxRows: DefaultMaxRows,
		logger:  log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs statement and classifies the result. Store errors come back
// as OutcomeError and are never returned to the caller.
func (e *SQLExecutor) Execute(ctx context.Context, statement string) Outcome {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return ErrorOutcome(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	var out Outcome
	if IsRead(statement) {
		out = e.read(ctx, conn, statement)
	} else {
		out = e.write(ctx, conn, statement)
	}

	if out.Failed() {
		e.logger.Warn("execute failed: %s", out.Message)
	} else {
		e.logger.Debug("execute %s: %d rows, %d affected", out.Kind, len(out.Rows), out.RowsAffected)
	}
	return out
}

func (e *SQLExecutor) read(ctx context.Context, conn *sql.Conn, statement string) Outcome {
	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return ErrorOutcome(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return ErrorOutcome(err)
	}

	var (
		result    []Row
		truncated bool
	)
	for rows.Next() {
		if len(result) >= e.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ErrorOutcome(err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return ErrorOutcome(err)
	}

	out := RowsOutcome(columns, result)
	out.Truncated = truncated
	return out
}

func (e *SQLExecutor) write(ctx context.Context, conn *sql.Conn, statement string) Outcome {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return ErrorOutcome(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, statement)
	if err != nil {
		return ErrorOutcome(err)
	}
	if err := tx.Commit(); err != nil {
		return ErrorOutcome(err)
	}
	committed = true

	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return AckOutcome(affected)
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
