package chatbot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/history"
	"github.com/kbrouter/kbrouter/knowledge"
	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/sqlagent"
)

type agentFunc func(ctx context.Context, q string) (sqlagent.WorkflowState, error)

func (f agentFunc) Run(ctx context.Context, q string) (sqlagent.WorkflowState, error) {
	return f(ctx, q)
}

func finished(q string, terminal sqlagent.Step, msg string, attempts int) agentFunc {
	return func(context.Context, string) (sqlagent.WorkflowState, error) {
		s := sqlagent.NewState(q)
		s.Terminal = terminal
		s.QueryResult = msg
		s.Attempts = attempts
		s.Path = []sqlagent.Step{sqlagent.CheckRelevance, terminal}
		if terminal != sqlagent.FallbackResponse {
			s.SQLQuery = "SELECT * FROM cars WHERE year = 2020"
		}
		return s, nil
	}
}

type fakeKB struct {
	calls  int
	answer string
	err    error
}

func (f *fakeKB) Ask(_ context.Context, q string) (knowledge.Answer, error) {
	f.calls++
	if f.err != nil {
		return knowledge.Answer{}, f.err
	}
	return knowledge.Answer{Text: f.answer}, nil
}

type observation struct {
	route, terminal string
	attempts        int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) ObserveRun(route, terminal string, attempts int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{route, terminal, attempts})
}

func TestDatabaseAnswer(t *testing.T) {
	kb := &fakeKB{answer: "unused"}
	store := history.NewMemoryStore()
	obs := &recordingObserver{}
	bot, err := chatbot.New(
		finished("cars from 2020?", sqlagent.FormatAnswer, "Two cars: a Corolla and a Civic.", 0),
		chatbot.WithKnowledgeBase(kb),
		chatbot.WithHistory(store),
		chatbot.WithObserver(obs),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	res, err := bot.Ask(context.Background(), "cars from 2020?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.RouteDatabase, res.Route)
	assert.Equal(t, "format_answer", res.Terminal)
	assert.Equal(t, "Two cars: a Corolla and a Civic.", res.Answer)
	assert.Equal(t, []string{"check_relevance", "format_answer"}, res.Path)
	assert.Zero(t, kb.calls, "exactly one path answers")

	recs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "database", recs[0].Route)
	assert.Equal(t, "SELECT * FROM cars WHERE year = 2020", recs[0].SQLQuery)

	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{"database", "format_answer", 0}, obs.seen[0])
}

func TestFallbackRoutesToKnowledgeBase(t *testing.T) {
	kb := &fakeKB{answer: "Refunds are accepted within 30 days."}
	bot, err := chatbot.New(
		finished("refund policy?", sqlagent.FallbackResponse, sqlagent.FallbackMessage, 0),
		chatbot.WithKnowledgeBase(kb),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)
	assert.True(t, bot.HasKnowledgeBase())

	res, err := bot.Ask(context.Background(), "refund policy?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.RouteKnowledgeBase, res.Route)
	assert.Equal(t, "fallback_response", res.Terminal)
	assert.Equal(t, "Refunds are accepted within 30 days.", res.Answer)
	assert.Empty(t, res.SQLQuery)
	assert.Equal(t, 1, kb.calls)
}

func TestFallbackWithoutKnowledgeBase(t *testing.T) {
	bot, err := chatbot.New(
		finished("refund policy?", sqlagent.FallbackResponse, sqlagent.FallbackMessage, 0),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	res, err := bot.Ask(context.Background(), "refund policy?")
	require.NoError(t, err)
	assert.Equal(t, chatbot.RouteDatabase, res.Route)
	assert.Equal(t, sqlagent.FallbackMessage, res.Answer)
}

func TestMaxIterationsIsNotRerouted(t *testing.T) {
	kb := &fakeKB{answer: "unused"}
	bot, err := chatbot.New(
		finished("broken", sqlagent.MaxIterationsReached, sqlagent.RetryMessage, 3),
		chatbot.WithKnowledgeBase(kb),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	res, err := bot.Ask(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, chatbot.RouteDatabase, res.Route)
	assert.Equal(t, "Please try again.", res.Answer)
	assert.Equal(t, 3, res.Attempts)
	assert.Zero(t, kb.calls)
}

func TestAgentErrorIsRecorded(t *testing.T) {
	boom := &sqlagent.InferenceError{Op: "classify", Err: errors.New("rate limited")}
	store := history.NewMemoryStore()
	obs := &recordingObserver{}
	bot, err := chatbot.New(
		agentFunc(func(context.Context, string) (sqlagent.WorkflowState, error) {
			return sqlagent.NewState("q"), boom
		}),
		chatbot.WithHistory(store),
		chatbot.WithObserver(obs),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	_, err = bot.Ask(context.Background(), "q")
	var infErr *sqlagent.InferenceError
	require.ErrorAs(t, err, &infErr)

	recs, err := store.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "error", recs[0].Terminal)
	assert.Contains(t, recs[0].Error, "rate limited")
	assert.Equal(t, observation{"database", "error", 0}, obs.seen[0])
}

func TestAgentErrorKeepsAgentProgress(t *testing.T) {
	store := history.NewMemoryStore()
	obs := &recordingObserver{}
	bot, err := chatbot.New(
		agentFunc(func(context.Context, string) (sqlagent.WorkflowState, error) {
			s := sqlagent.NewState("Which cars are broken?")
			s.Attempts = 2
			s.SQLQuery = "SELECT broken FROM cars"
			s.Path = []sqlagent.Step{sqlagent.CheckRelevance, sqlagent.ConvertToSQL, sqlagent.ExecuteSQL}
			return s, &sqlagent.InferenceError{Op: "convert_to_sql", Err: errors.New("rate limited")}
		}),
		chatbot.WithHistory(store),
		chatbot.WithObserver(obs),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	res, err := bot.Ask(context.Background(), "Which cars are broken?")
	require.Error(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "SELECT broken FROM cars", res.SQLQuery)
	assert.Equal(t, []string{"check_relevance", "convert_to_sql", "execute_sql"}, res.Path)
	require.NotNil(t, res.Agent)
	assert.Equal(t, 2, res.Agent.Attempts)

	recs, err := store.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Attempts)
	assert.Equal(t, "SELECT broken FROM cars", recs[0].SQLQuery)
	assert.Equal(t, observation{"database", "error", 2}, obs.seen[0])
}

func TestKnowledgeBaseError(t *testing.T) {
	bot, err := chatbot.New(
		finished("q", sqlagent.FallbackResponse, sqlagent.FallbackMessage, 0),
		chatbot.WithKnowledgeBase(&fakeKB{err: errors.New("vector store offline")}),
		chatbot.WithLogger(log.NoOpLogger{}),
	)
	require.NoError(t, err)

	res, err := bot.Ask(context.Background(), "q")
	assert.ErrorContains(t, err, "vector store offline")
	assert.Equal(t, chatbot.RouteKnowledgeBase, res.Route)
}

func TestEmptyQuestion(t *testing.T) {
	bot, err := chatbot.New(finished("", sqlagent.FormatAnswer, "", 0), chatbot.WithLogger(log.NoOpLogger{}))
	require.NoError(t, err)

	_, err = bot.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, chatbot.ErrEmptyQuestion)
}

func TestNewRequiresAgent(t *testing.T) {
	_, err := chatbot.New(nil)
	assert.Error(t, err)
}

func TestRouterGraphShape(t *testing.T) {
	bot, err := chatbot.New(finished("", sqlagent.FormatAnswer, "", 0), chatbot.WithLogger(log.NoOpLogger{}))
	require.NoError(t, err)

	g := bot.Graph()
	assert.Equal(t, []string{"database", "knowledge_base"}, g.Nodes())
	assert.ElementsMatch(t, []string{"knowledge_base", graph.END}, g.Targets("database"))
	assert.Equal(t, []string{graph.END}, g.Targets("knowledge_base"))
}
