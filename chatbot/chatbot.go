// Package chatbot routes a user question to exactly one answering path: the
// SQL agent first, and the knowledge base when the agent finds the question
// unrelated to the store.
//
//	database -> knowledge_base | END
//	knowledge_base -> END
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/history"
	"github.com/kbrouter/kbrouter/knowledge"
	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/sqlagent"
)

// Route names the path that produced an answer.
type Route string

const (
	RouteDatabase      Route = "database"
	RouteKnowledgeBase Route = "knowledge_base"
)

func (r Route) String() string { return string(r) }

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = sqlagent.ErrEmptyQuestion

// SQLAgent runs the database workflow.
type SQLAgent interface {
	Run(ctx context.Context, question string) (sqlagent.WorkflowState, error)
}

// KnowledgeBase answers questions from ingested documents.
type KnowledgeBase interface {
	Ask(ctx context.Context, question string) (knowledge.Answer, error)
}

// RunObserver receives one sample per finished run; *metrics.Metrics
// implements it.
type RunObserver interface {
	ObserveRun(route, terminal string, attempts int, d time.Duration)
}

// State flows through the router graph.
type State struct {
	Query    string                  `json:"query"`
	Route    Route                   `json:"route"`
	Answer   string                  `json:"answer"`
	Terminal string                  `json:"terminal"`
	SQLQuery string                  `json:"sql_query,omitempty"`
	Attempts int                     `json:"attempts"`
	Path     []string                `json:"path,omitempty"`
	Sources  []knowledge.ScoredChunk `json:"sources,omitempty"`
	Agent    *sqlagent.WorkflowState `json:"-"`
}

// Option configures a Chatbot.
type Option func(*Chatbot)

// WithKnowledgeBase enables the knowledge_base route.
func WithKnowledgeBase(kb KnowledgeBase) Option {
	return func(c *Chatbot) { c.kb = kb }
}

// WithHistory records every run in store.
func WithHistory(store history.Store) Option {
	return func(c *Chatbot) { c.history = store }
}

// WithObserver reports every run to obs.
func WithObserver(obs RunObserver) Option {
	return func(c *Chatbot) { c.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Chatbot) { c.logger = logger }
}

// WithTracer attaches a tracer to the router graph.
func WithTracer(tracer *graph.Tracer) Option {
	return func(c *Chatbot) { c.tracer = tracer }
}

// Chatbot is safe for concurrent use.
type Chatbot struct {
	agent    SQLAgent
	kb       KnowledgeBase
	history  history.Store
	observer RunObserver
	logger   log.Logger
	tracer   *graph.Tracer

	graph    *graph.StateGraph[State]
	runnable *graph.StateRunnable[State]
}

// New builds the router around agent.
func New(agent SQLAgent, opts ...Option) (*Chatbot, error) {
	if agent == nil {
		return nil, errors.New("chatbot: sql agent is required")
	}
	c := &Chatbot{agent: agent, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger)

	c.graph = c.buildGraph()
	runnable, err := c.graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("chatbot: compile router: %w", err)
	}
	if c.tracer != nil {
		runnable = runnable.WithTracer(c.tracer)
	}
	c.runnable = runnable
	return c, nil
}

// Graph returns the router graph.
func (c *Chatbot) Graph() *graph.StateGraph[State] {
	return c.graph
}

// HasKnowledgeBase reports whether irrelevant questions can be rerouted.
func (c *Chatbot) HasKnowledgeBase() bool {
	return c.kb != nil
}

func (c *Chatbot) buildGraph() *graph.StateGraph[State] {
	g := graph.NewStateGraph[State]()
	g.AddNode(string(RouteDatabase), "Answer from the relational store", c.database)
	g.AddNode(string(RouteKnowledgeBase), "Answer from ingested documents", c.knowledgeBase)
	g.SetEntryPoint(string(RouteDatabase))

	g.AddConditionalEdge(string(RouteDatabase), func(_ context.Context, s State) string {
		if s.Route == RouteKnowledgeBase {
			return string(RouteKnowledgeBase)
		}
		return graph.END
	}, string(RouteKnowledgeBase), graph.END)
	g.AddEdge(string(RouteKnowledgeBase), graph.END)
	return g
}

// runKey carries the per-call agentRun through the router graph.
type runKey struct{}

// agentRun holds the agent's last state outside the graph, which returns
// the state from before a failing node.
type agentRun struct {
	state *sqlagent.WorkflowState
}

func (c *Chatbot) database(ctx context.Context, s State) (State, error) {
	final, err := c.agent.Run(ctx, s.Query)
	if run, ok := ctx.Value(runKey{}).(*agentRun); ok {
		run.state = &final
	}
	s = withAgent(s, final)
	if err != nil {
		return s, err
	}

	s.Terminal = final.Terminal.String()
	s.Answer = final.QueryResult
	s.Route = RouteDatabase
	if final.Terminal == sqlagent.FallbackResponse && c.kb != nil {
		s.Route = RouteKnowledgeBase
	}
	return s, nil
}

func (c *Chatbot) knowledgeBase(ctx context.Context, s State) (State, error) {
	ans, err := c.kb.Ask(ctx, s.Query)
	if err != nil {
		return s, fmt.Errorf("knowledge base: %w", err)
	}
	s.Answer = ans.Text
	s.Sources = make([]knowledge.ScoredChunk, len(ans.Sources))
	for i, src := range ans.Sources {
		src.Embedding = nil
		s.Sources[i] = src
	}
	return s, nil
}

// Ask answers one question. The run is recorded in history and reported to
// the observer whether or not it succeeds.
func (c *Chatbot) Ask(ctx context.Context, question string) (State, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return State{}, ErrEmptyQuestion
	}

	run := &agentRun{}
	start := time.Now()
	final, err := c.runnable.Invoke(context.WithValue(ctx, runKey{}, run), State{Query: question})
	elapsed := time.Since(start)
	if err != nil {
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			err = nodeErr.Err
		}
		if run.state != nil && final.Agent == nil {
			final = withAgent(final, *run.state)
		}
	}

	c.record(ctx, final, elapsed, err)
	if err != nil {
		c.logger.Error("chatbot run for %q failed: %v", question, err)
		return final, err
	}
	c.logger.Info("answered via %s (%s) in %s", final.Route, final.Terminal, elapsed)
	return final, nil
}

func (c *Chatbot) record(ctx context.Context, s State, elapsed time.Duration, runErr error) {
	route := s.Route
	if route == "" {
		route = RouteDatabase
	}
	terminal := s.Terminal
	if runErr != nil {
		terminal = "error"
	}

	if c.observer != nil {
		attempts := s.Attempts
		if s.Agent == nil {
			attempts = -1
		}
		c.observer.ObserveRun(route.String(), terminal, attempts, elapsed)
	}

	if c.history == nil {
		return
	}
	rec := &history.Record{
		Question: s.Query,
		Route:    route.String(),
		Terminal: terminal,
		SQLQuery: s.SQLQuery,
		Attempts: s.Attempts,
		Answer:   s.Answer,
		Duration: elapsed,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	// Cancellation of the request must not drop the audit record.
	if err := c.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("failed to record history: %v", err)
	}
}

func withAgent(s State, final sqlagent.WorkflowState) State {
	s.Agent = &final
	s.Attempts = final.Attempts
	s.SQLQuery = final.SQLQuery
	s.Path = stepNames(final.Path)
	return s
}

func stepNames(steps []sqlagent.Step) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = st.String()
	}
	return out
}
