package sqlagent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/sqlagent"
)

func TestSchemaInspector_SQLite(t *testing.T) {
	db := newCarsDB(t)
	inspector := sqlagent.NewSchemaInspector(db, sqlagent.DialectSQLite, time.Minute, log.NoOpLogger{})

	desc, err := inspector.Describe(context.Background())
	require.NoError(t, err)

	want := "Table: cars\n" +
		"- id: INTEGER, Primary Key\n" +
		"- maker_id: INTEGER, Foreign Key to makers.id\n" +
		"- model: TEXT\n" +
		"- year: INTEGER\n" +
		"\n" +
		"Table: makers\n" +
		"- id: INTEGER, Primary Key\n" +
		"- name: TEXT\n" +
		"\n"
	assert.Equal(t, want, desc)
}

func TestSchemaInspector_CachesUntilInvalidated(t *testing.T) {
	db := newCarsDB(t)
	inspector := sqlagent.NewSchemaInspector(db, sqlagent.DialectSQLite, time.Hour, log.NoOpLogger{})
	ctx := context.Background()

	first, err := inspector.Describe(ctx)
	require.NoError(t, err)

	_, err = db.Exec("CREATE TABLE owners (id INTEGER PRIMARY KEY, car_id INTEGER REFERENCES cars(id))")
	require.NoError(t, err)

	cached, err := inspector.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	inspector.Invalidate()
	fresh, err := inspector.Describe(ctx)
	require.NoError(t, err)
	assert.Contains(t, fresh, "Table: owners\n- id: INTEGER, Primary Key\n- car_id: INTEGER, Foreign Key to cars.id\n")
}

func TestSchemaInspector_ForeignKeyIterationError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("cars"))
	mock.ExpectQuery(`PRAGMA foreign_key_list("cars")`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}).
			AddRow(0, 0, "makers", "maker_id", "id", "NO ACTION", "NO ACTION", "NONE").
			RowError(0, errors.New("disk I/O error")))

	inspector := sqlagent.NewSchemaInspector(db, sqlagent.DialectSQLite, time.Minute, log.NoOpLogger{})
	_, err = inspector.Tables(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "foreign keys of cars")
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_String(t *testing.T) {
	s := sqlagent.Schema{
		{Name: "orders", Columns: []sqlagent.Column{
			{Name: "id", Type: "BIGINT", PrimaryKey: true},
			{Name: "customer_id", Type: "BIGINT", ForeignKey: "customers.id"},
		}},
	}
	assert.Equal(t, "Table: orders\n- id: BIGINT, Primary Key\n- customer_id: BIGINT, Foreign Key to customers.id\n\n", s.String())
}

func TestStaticSchema(t *testing.T) {
	desc, err := sqlagent.StaticSchema("Table: t\n").Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Table: t\n", desc)
}
