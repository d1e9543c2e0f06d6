package sqlagent

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kbrouter/kbrouter/log"
)

// DefaultSchemaTTL is how long a schema description stays cached.
const DefaultSchemaTTL = 5 * time.Minute

const schemaCacheKey = "schema"

// SchemaSource describes the relational store to the model-backed steps.
type SchemaSource interface {
	Describe(ctx context.Context) (string, error)
}

// StaticSchema is a fixed schema description.
type StaticSchema string

func (s StaticSchema) Describe(context.Context) (string, error) {
	return string(s), nil
}

// Column is one column of a table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	// ForeignKey is "table.column" when the column references another table.
	ForeignKey string
}

// Table is a table and its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// Schema is a list of tables.
type Schema []Table

// String renders the schema as
//
//	Table: cars
//	- id: INTEGER, Primary Key
//	- maker_id: INTEGER, Foreign Key to makers.id
func (s Schema) String() string {
	var sb strings.Builder
	for _, t := range s {
		fmt.Fprintf(&sb, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			typ := c.Type
			if c.PrimaryKey {
				typ += ", Primary Key"
			}
			if c.ForeignKey != "" {
				typ += ", Foreign Key to " + c.ForeignKey
			}
			fmt.Fprintf(&sb, "- %s: %s\n", c.Name, typ)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SchemaInspector reads table metadata from a live store and caches the
// rendered description.
type SchemaInspector struct {
	db      *sql.DB
	dialect Dialect
	cache   *gocache.Cache
	logger  log.Logger
}

// NewSchemaInspector creates an inspector. ttl <= 0 uses DefaultSchemaTTL.
func NewSchemaInspector(db *sql.DB, dialect Dialect, ttl time.Duration, logger log.Logger) *SchemaInspector {
	if ttl <= 0 {
		ttl = DefaultSchemaTTL
	}
	return &SchemaInspector{
		db:      db,
		dialect: dialect,
		cache:   gocache.New(ttl, 2*ttl),
		logger:  log.OrDefault(logger),
	}
}

// Describe returns the cached description, introspecting on a miss.
func (i *SchemaInspector) Describe(ctx context.Context) (string, error) {
	if v, ok := i.cache.Get(schemaCacheKey); ok {
		return v.(string), nil
	}
	schema, err := i.Tables(ctx)
	if err != nil {
		return "", err
	}
	desc := schema.String()
	i.cache.SetDefault(schemaCacheKey, desc)
	i.logger.Info("retrieved database schema: %d tables", len(schema))
	return desc, nil
}

// Invalidate drops the cached description.
func (i *SchemaInspector) Invalidate() {
	i.cache.Delete(schemaCacheKey)
}

// Tables introspects the store without touching the cache.
func (i *SchemaInspector) Tables(ctx context.Context) (Schema, error) {
	conn, err := i.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if i.dialect == DialectSQLite {
		return i.sqliteTables(ctx, conn)
	}
	return i.informationSchemaTables(ctx, conn)
}

func (i *SchemaInspector) sqliteTables(ctx context.Context, conn *sql.Conn) (Schema, error) {
	names, err := queryStrings(ctx, conn,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := make(Schema, 0, len(names))
	for _, name := range names {
		table := Table{Name: name}
		quoted := `"` + strings.ReplaceAll(name, `"`, `""`) + `"`

		fks := map[string]string{}
		fkRows, err := conn.QueryContext(ctx, "PRAGMA foreign_key_list("+quoted+")")
		if err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", name, err)
		}
		for fkRows.Next() {
			var (
				id, seq                     int
				ref, from                   string
				to                          sql.NullString
				onUpdate, onDelete, matchBy string
			)
			if err := fkRows.Scan(&id, &seq, &ref, &from, &to, &onUpdate, &onDelete, &matchBy); err != nil {
				fkRows.Close()
				return nil, fmt.Errorf("foreign keys of %s: %w", name, err)
			}
			if _, seen := fks[from]; !seen {
				fks[from] = ref + "." + to.String
			}
		}
		err = fkRows.Err()
		fkRows.Close()
		if err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", name, err)
		}

		colRows, err := conn.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		for colRows.Next() {
			var (
				cid, notNull, pk int
				col, typ         string
				dflt             sql.NullString
			)
			if err := colRows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("columns of %s: %w", name, err)
			}
			table.Columns = append(table.Columns, Column{
				Name:       col,
				Type:       typ,
				PrimaryKey: pk > 0,
				ForeignKey: fks[col],
			})
		}
		err = colRows.Err()
		colRows.Close()
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}

		schema = append(schema, table)
	}
	return schema, nil
}

func (i *SchemaInspector) currentSchemaExpr() string {
	if i.dialect == DialectSQLServer {
		return "SCHEMA_NAME()"
	}
	return "current_schema()"
}

func (i *SchemaInspector) informationSchemaTables(ctx context.Context, conn *sql.Conn) (Schema, error) {
	current := i.currentSchemaExpr()

	rows, err := conn.QueryContext(ctx, `
SELECT c.table_name, c.column_name, c.data_type
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE' AND c.table_schema = `+current+`
ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	var schema Schema
	index := map[string]int{}
	for rows.Next() {
		var table, col, typ string
		if err := rows.Scan(&table, &col, &typ); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list columns: %w", err)
		}
		pos, ok := index[table]
		if !ok {
			pos = len(schema)
			index[table] = pos
			schema = append(schema, Table{Name: table})
		}
		schema[pos].Columns = append(schema[pos].Columns, Column{Name: col, Type: strings.ToUpper(typ)})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	// Key metadata is best effort: some engines expose only part of
	// information_schema.
	pks, err := queryPairs(ctx, conn, `
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name
 AND kcu.table_schema = tc.table_schema
 AND kcu.table_name = tc.table_name
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = `+current)
	if err != nil {
		i.logger.Warn("primary keys unavailable for %s: %v", i.dialect, err)
	}
	fks, err := queryPairs(ctx, conn, `
SELECT kcu.table_name, kcu.column_name, ref.table_name, ref.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = rc.constraint_name
 AND kcu.constraint_schema = rc.constraint_schema
JOIN information_schema.key_column_usage ref
  ON ref.constraint_name = rc.unique_constraint_name
 AND ref.constraint_schema = rc.unique_constraint_schema
 AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = `+current)
	if err != nil {
		i.logger.Warn("foreign keys unavailable for %s: %v", i.dialect, err)
	}

	for t := range schema {
		for c := range schema[t].Columns {
			key := schema[t].Name + "." + schema[t].Columns[c].Name
			if _, ok := pks[key]; ok {
				schema[t].Columns[c].PrimaryKey = true
			}
			schema[t].Columns[c].ForeignKey = fks[key]
		}
	}
	return schema, nil
}

func queryStrings(ctx context.Context, conn *sql.Conn, query string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryPairs maps "table.column" to "refTable.refColumn" for four-column
// queries, or to "" for two-column ones.
func queryPairs(ctx context.Context, conn *sql.Conn, query string) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for rows.Next() {
		vals := make([]string, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		key := vals[0] + "." + vals[1]
		if len(vals) >= 4 {
			out[key] = vals[2] + "." + vals[3]
		} else {
			out[key] = ""
		}
	}
	return out, rows.Err()
}
