package sqlagent

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)

// Dialect identifies the SQL flavour behind a connection string.
type Dialect string

const (
	DialectSQLite    Dialect = "sqlite"
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
	DialectDuckDB    Dialect = "duckdb"
)

// ParseDSN maps a store connection string to a database/sql driver name and
// the driver-specific data source.
//
//	sqlite:///abs/cars.db, sqlite://cars.db, cars.db, :memory:  -> sqlite3
//	postgres://..., postgresql://...                             -> pgx
//	sqlserver://...                                              -> sqlserver
//	duckdb://path, duckdb://                                     -> duckdb
func ParseDSN(dsn string) (driver, source string, dialect Dialect, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", "", fmt.Errorf("empty store connection string")
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://"), DialectSQLite, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), DialectSQLite, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, DialectPostgres, nil
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn, DialectSQLServer, nil
	case strings.HasPrefix(dsn, "duckdb://"):
		return "duckdb", strings.TrimPrefix(dsn, "duckdb://"), DialectDuckDB, nil
	case dsn == ":memory:", strings.HasPrefix(dsn, "file:"),
		strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"), strings.HasSuffix(dsn, ".sqlite3"):
		return "sqlite3", dsn, DialectSQLite, nil
	}
	return "", "", "", fmt.Errorf("unsupported store connection string %q", dsn)
}

// OpenDB opens the relational store named by dsn.
func OpenDB(dsn string) (*sql.DB, Dialect, error) {
	driver, source, dialect, err := ParseDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, "", fmt.Errorf("open %s store: %w", dialect, err)
	}
	if dialect == DialectSQLite && (source == ":memory:" || strings.Contains(source, "mode=memory")) {
		// every new connection to :memory: is a fresh database
		db.SetMaxOpenConns(1)
	}
	return db, dialect, nil
}
