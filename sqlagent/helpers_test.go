package sqlagent_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/sqlagent"
)

const carsSchema = `
CREATE TABLE makers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE cars (
	id INTEGER PRIMARY KEY,
	maker_id INTEGER REFERENCES makers(id),
	model TEXT,
	year INTEGER
);
INSERT INTO makers (id, name) VALUES (1, 'Toyota'), (2, 'Honda');
INSERT INTO cars (id, maker_id, model, year) VALUES
	(1, 1, 'Corolla', 2020),
	(2, 2, 'Civic', 2020),
	(3, 1, 'Camry', 2018);
`

func newCarsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, dialect, err := sqlagent.OpenDB(":memory:")
	require.NoError(t, err)
	require.Equal(t, sqlagent.DialectSQLite, dialect)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(carsSchema)
	require.NoError(t, err)
	return db
}

type fakeClassifier struct {
	result sqlagent.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, string, string) (sqlagent.Classification, error) {
	f.calls++
	return f.result, f.err
}

func relevant() *fakeClassifier {
	return &fakeClassifier{result: sqlagent.Classification{Label: sqlagent.Relevant, Confidence: 1}}
}

// scriptedSynthesizer returns its statements in order, repeating the last.
type scriptedSynthesizer struct {
	mu         sync.Mutex
	statements []string
	questions  []string
	err        error
}

func (s *scriptedSynthesizer) Synthesize(_ context.Context, question, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	i := min(len(s.questions), len(s.statements)-1)
	s.questions = append(s.questions, question)
	return s.statements[i], nil
}

func (s *scriptedSynthesizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

type countingRewriter struct {
	originals []string
}

func (r *countingRewriter) Rewrite(_ context.Context, original string) (string, error) {
	r.originals = append(r.originals, original)
	return "rephrased: " + original, nil
}

type recordingAnswerer struct {
	rows      []sqlagent.Row
	truncated bool
}

func (a *recordingAnswerer) Answer(_ context.Context, _, _ string, _ []string, rows []sqlagent.Row, truncated bool) (string, error) {
	a.rows = rows
	a.truncated = truncated
	return "Found matching cars.", nil
}

type executorFunc func(ctx context.Context, statement string) sqlagent.Outcome

func (f executorFunc) Execute(ctx context.Context, statement string) sqlagent.Outcome {
	return f(ctx, statement)
}
