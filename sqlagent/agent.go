package sqlagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/log"
)

// DefaultMaxAttempts is the default repair-loop cap.
const DefaultMaxAttempts = 3

// Classification is a relevance decision with the model's confidence in it.
type Classification struct {
	Label      Relevance
	Confidence float64
}

// Classifier decides whether a question can be answered from the store.
type Classifier interface {
	Classify(ctx context.Context, question, schema string) (Classification, error)
}

// Synthesizer turns a question into one candidate SQL statement.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, schema string) (string, error)
}

// Rewriter rephrases the original question after a failed execution.
type Rewriter interface {
	Rewrite(ctx context.Context, original string) (string, error)
}

// Answerer writes prose for a non-empty result.
type Answerer interface {
	// truncated reports that rows holds only the first len(rows) matches.
	Answer(ctx context.Context, question, sqlQuery string, columns []string, rows []Row, truncated bool) (string, error)
}

// Executor runs a statement. Store failures are reported in the Outcome.
type Executor interface {
	Execute(ctx context.Context, statement string) Outcome
}

// Dependencies are the collaborators an Agent drives.
type Dependencies struct {
	Classifier  Classifier
	Synthesizer Synthesizer
	Rewriter    Rewriter
	// Answerer is optional; see NewFormatter.
	Answerer Answerer
	Executor Executor
	Schema   SchemaSource
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxAttempts sets the repair-loop cap. Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRelevanceThreshold demotes "relevant" decisions whose confidence is
// below threshold to "not_relevant". Zero disables the check.
func WithRelevanceThreshold(threshold float64) Option {
	return func(a *Agent) {
		a.threshold = threshold
	}
}

// WithLogger sets the agent's logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithTracer attaches a tracer to every run.
func WithTracer(tracer *graph.Tracer) Option {
	return func(a *Agent) {
		a.tracer = tracer
	}
}

// Agent answers questions against a relational store through the bounded
// repair loop:
//
//	check_relevance -> convert_to_sql | fallback_response
//	convert_to_sql  -> execute_sql
//	execute_sql     -> format_answer | regenerate_query
//	regenerate_query -> convert_to_sql | max_iterations_reached
//
// An Agent is safe for concurrent use; every run owns its own state.
type Agent struct {
	deps        Dependencies
	formatter   *Formatter
	maxAttempts int
	threshold   float64
	logger      log.Logger
	tracer      *graph.Tracer

	graph    *graph.StateGraph[WorkflowState]
	runnable *graph.StateRunnable[WorkflowState]
}

// NewAgent builds and compiles the workflow.
func NewAgent(deps Dependencies, opts ...Option) (*Agent, error) {
	var missing []string
	if deps.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if deps.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}
	if deps.Rewriter == nil {
		missing = append(missing, "rewriter")
	}
	if deps.Executor == nil {
		missing = append(missing, "executor")
	}
	if deps.Schema == nil {
		missing = append(missing, "schema source")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("sqlagent: missing %s", strings.Join(missing, ", "))
	}

	a := &Agent{
		deps:        deps,
		formatter:   NewFormatter(deps.Answerer),
		maxAttempts: DefaultMaxAttempts,
		logger:      log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.NoOpLogger{}
	}

	a.graph = a.buildGraph()
	runnable, err := a.graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("sqlagent: compile workflow: %w", err)
	}
	if a.tracer != nil {
		runnable = runnable.WithTracer(a.tracer)
	}
	a.runnable = runnable
	return a, nil
}

// MaxAttempts returns the configured repair-loop cap.
func (a *Agent) MaxAttempts() int {
	return a.maxAttempts
}

// Graph returns the workflow graph, e.g. for diagram export.
func (a *Agent) Graph() *graph.StateGraph[WorkflowState] {
	return a.graph
}

// Run answers question. The returned state is the final state on success
// and the last completed state on a fatal error (*ClassificationError,
// *InferenceError, schema or context failures).
func (a *Agent) Run(ctx context.Context, question string) (WorkflowState, error) {
	if strings.TrimSpace(question) == "" {
		return WorkflowState{}, ErrEmptyQuestion
	}

	final, err := a.runnable.Invoke(ctx, NewState(question))
	if err != nil {
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			err = nodeErr.Err
		}
		a.logger.Error("sql agent run failed after %v: %v", final.Path, err)
		return final, err
	}

	a.logger.Info("sql agent finished in %s after %d attempts", final.Terminal, final.Attempts)
	return final, nil
}

func (a *Agent) buildGraph() *graph.StateGraph[WorkflowState] {
	g := graph.NewStateGraph[WorkflowState]()
	// check + (convert, execute, regenerate) per attempt + terminal
	g.SetRecursionLimit(max(graph.DefaultRecursionLimit, 3*a.maxAttempts+2))

	g.AddNode(CheckRelevance.String(), "Classify the question against the store schema", a.checkRelevance)
	g.AddNode(ConvertToSQL.String(), "Synthesize a SQL statement", a.convertToSQL)
	g.AddNode(ExecuteSQL.String(), "Execute the statement", a.executeSQL)
	g.AddNode(RegenerateQuery.String(), "Rewrite the question after a failed execution", a.regenerateQuery)
	for _, step := range []Step{FormatAnswer, FallbackResponse, MaxIterationsReached} {
		g.AddNode(step.String(), "Produce the final message", a.terminal(step))
		g.AddEdge(step.String(), graph.END)
	}

	g.SetEntryPoint(CheckRelevance.String())

	g.AddConditionalEdge(CheckRelevance.String(), func(_ context.Context, s WorkflowState) string {
		if s.Relevance == Relevant {
			return ConvertToSQL.String()
		}
		return FallbackResponse.String()
	}, ConvertToSQL.String(), FallbackResponse.String())

	g.AddEdge(ConvertToSQL.String(), ExecuteSQL.String())

	g.AddConditionalEdge(ExecuteSQL.String(), func(_ context.Context, s WorkflowState) string {
		if s.SQLError {
			return RegenerateQuery.String()
		}
		return FormatAnswer.String()
	}, FormatAnswer.String(), RegenerateQuery.String())

	g.AddConditionalEdge(RegenerateQuery.String(), func(_ context.Context, s WorkflowState) string {
		if s.Attempts < a.maxAttempts {
			return ConvertToSQL.String()
		}
		return MaxIterationsReached.String()
	}, ConvertToSQL.String(), MaxIterationsReached.String())

	return g
}

func (a *Agent) checkRelevance(ctx context.Context, s WorkflowState) (WorkflowState, error) {
	s = s.visit(CheckRelevance)

	schema, err := a.deps.Schema.Describe(ctx)
	if err != nil {
		return s, fmt.Errorf("describe schema: %w", err)
	}
	s.Schema = schema

	c, err := a.deps.Classifier.Classify(ctx, s.Query, schema)
	if err != nil {
		return s, err
	}
	if c.Label != Relevant && c.Label != NotRelevant {
		return s, &ClassificationError{Output: c.Label.String()}
	}

	s.Relevance = c.Label
	s.Confidence = c.Confidence
	if c.Label == Relevant && a.threshold > 0 && c.Confidence < a.threshold {
		a.logger.Info("relevance confidence %.2f below threshold %.2f, treating as not relevant", c.Confidence, a.threshold)
		s.Relevance = NotRelevant
	}
	a.logger.Debug("relevance determined: %s", s.Relevance)
	return s, nil
}

func (a *Agent) convertToSQL(ctx context.Context, s WorkflowState) (WorkflowState, error) {
	s = s.visit(ConvertToSQL)

	query, err := a.deps.Synthesizer.Synthesize(ctx, s.Query, s.Schema)
	if err != nil {
		return s, err
	}
	s.SQLQuery = strings.TrimSpace(query)
	a.logger.Debug("synthesized sql: %s", s.SQLQuery)
	return s, nil
}

func (a *Agent) executeSQL(ctx context.Context, s WorkflowState) (WorkflowState, error) {
	s = s.visit(ExecuteSQL)

	out := a.deps.Executor.Execute(ctx, s.SQLQuery)
	s.Outcome = out.Kind
	s.SQLError = out.Failed()
	s.Columns = out.Columns
	s.QueryRows = nil
	s.Truncated = out.Truncated
	s.RowsAffected = out.RowsAffected
	s.QueryResult = ""
	switch out.Kind {
	case OutcomeRows:
		s.QueryRows = out.Rows
	case OutcomeError, OutcomeAck:
		s.QueryResult = out.Message
	}
	return s, nil
}

func (a *Agent) regenerateQuery(ctx context.Context, s WorkflowState) (WorkflowState, error) {
	s = s.visit(RegenerateQuery)
	s.Attempts++

	rewritten, err := a.deps.Rewriter.Rewrite(ctx, s.OriginalQuery)
	if err != nil {
		return s, err
	}
	s.Query = strings.TrimSpace(rewritten)
	if s.Query == "" {
		s.Query = s.OriginalQuery
	}
	a.logger.Debug("attempt %d/%d, rewritten question: %s", s.Attempts, a.maxAttempts, s.Query)
	return s, nil
}

func (a *Agent) terminal(step Step) func(context.Context, WorkflowState) (WorkflowState, error) {
	return func(ctx context.Context, s WorkflowState) (WorkflowState, error) {
		s = s.visit(step)
		msg, err := a.formatter.Format(ctx, step, s)
		if err != nil {
			return s, err
		}
		s.QueryResult = msg
		s.Terminal = step
		return s, nil
	}
}
