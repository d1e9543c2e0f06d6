package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/config"
	"github.com/kbrouter/kbrouter/history"
	histsqlite "github.com/kbrouter/kbrouter/history/sqlite"
	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/sqlagent"
)

type echoAgent struct{}

func (echoAgent) Run(_ context.Context, q string) (sqlagent.WorkflowState, error) {
	s := sqlagent.NewState(q)
	s.SQLQuery = "SELECT 1"
	s.QueryResult = "echo: " + q
	s.Terminal = sqlagent.FormatAnswer
	return s, nil
}

func TestOfflineDiagrams(t *testing.T) {
	cfg = &config.Config{}
	cfg.Agent.MaxAttempts = 3

	diagrams, err := offlineDiagrams(false)
	require.NoError(t, err)
	assert.Contains(t, diagrams["router"], "database -.-> knowledge_base")
	assert.Contains(t, diagrams["sql_agent"], "START --> check_relevance")
	assert.Contains(t, diagrams["ingestion"], "load --> split")

	dot, err := offlineDiagrams(true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dot["sql_agent"], "digraph G {"))
}

func TestRepl(t *testing.T) {
	bot, err := chatbot.New(echoAgent{}, chatbot.WithLogger(log.NoOpLogger{}))
	require.NoError(t, err)

	in := strings.NewReader("how many cars?\n\nexit\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), bot, in, &out))

	text := out.String()
	assert.Contains(t, text, "echo: how many cars?")
	assert.Contains(t, text, "route=database terminal=format_answer attempts=0")
	assert.NotContains(t, text, "never asked")
}

func TestReplStopsAtEOF(t *testing.T) {
	bot, err := chatbot.New(echoAgent{}, chatbot.WithLogger(log.NoOpLogger{}))
	require.NoError(t, err)

	var out bytes.Buffer
	assert.NoError(t, repl(context.Background(), bot, strings.NewReader("q"), &out))
	assert.Contains(t, out.String(), "echo: q")
}

func TestHistoryRejectsMemoryBackend(t *testing.T) {
	cfg = &config.Config{}
	cfg.History.Backend = "memory"

	historyCmd.SetContext(context.Background())
	err := historyCmd.RunE(historyCmd, nil)
	assert.ErrorIs(t, err, errMemoryHistory)
}

func TestHistoryListsSQLiteRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := histsqlite.Open(ctx, histsqlite.Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &history.Record{
		Question: "How many cars are from 2020?",
		Route:    "database",
		Terminal: "format_answer",
		Attempts: 1,
		Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, store.Close())

	cfg = &config.Config{}
	cfg.History.Backend = "sqlite"
	cfg.History.DSN = path
	logger = log.NewGologLoggerWithLevel(log.LogLevelNone)
	historyLimit = history.DefaultListLimit
	historyTerminal = ""

	var out bytes.Buffer
	historyCmd.SetOut(&out)
	historyCmd.SetContext(ctx)
	t.Cleanup(func() { historyCmd.SetOut(nil) })
	require.NoError(t, historyCmd.RunE(historyCmd, nil))

	text := out.String()
	assert.Contains(t, text, "TERMINAL")
	assert.Contains(t, text, "How many cars are from 2020?")
	assert.Contains(t, text, "format_answer")
	assert.Contains(t, text, "1.5s")
}

func TestHistoryTable(t *testing.T) {
	out := historyTable([]*history.Record{
		{Question: "ok", Route: "database", Terminal: "format_answer", CreatedAt: time.Now()},
		{Question: "broken", Route: "database", Terminal: "error", Attempts: 2, Error: "rate limited", CreatedAt: time.Now()},
	})
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 5)
	assert.Contains(t, out, "┌")
	assert.Contains(t, out, "QUESTION")
	assert.Contains(t, out, "broken")
}

func TestHistoryTerminalFilter(t *testing.T) {
	for _, name := range []string{"", "error", "format_answer", "fallback_response", "max_iterations_reached"} {
		assert.NoError(t, validTerminal(name), name)
	}
	assert.Error(t, validTerminal("execute_sql"))
	assert.Error(t, validTerminal("route_to_moon"))

	records := []*history.Record{
		{ID: "1", Terminal: "format_answer"},
		{ID: "2", Terminal: "error"},
		{ID: "3", Terminal: "format_answer"},
	}
	got := withTerminal(records, "format_answer")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Len(t, withTerminal(records, ""), 3)
}
