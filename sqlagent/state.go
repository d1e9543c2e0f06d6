package sqlagent

import (
	"fmt"
	"strings"
)

// Relevance is the classifier's decision about a question.
type Relevance int

const (
	RelevanceUnknown Relevance = iota
	Relevant
	NotRelevant
)

func (r Relevance) String() string {
	switch r {
	case Relevant:
		return "relevant"
	case NotRelevant:
		return "not_relevant"
	default:
		return "unknown"
	}
}

// ParseRelevance accepts exactly "relevant" or "not_relevant", ignoring
// surrounding whitespace and case. Anything else is a *ClassificationError.
func ParseRelevance(raw string) (Relevance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "relevant":
		return Relevant, nil
	case "not_relevant":
		return NotRelevant, nil
	}
	return RelevanceUnknown, &ClassificationError{Output: raw}
}

// Step names a state of the workflow. The set is closed.
type Step int

const (
	StepNone Step = iota
	CheckRelevance
	ConvertToSQL
	ExecuteSQL
	RegenerateQuery
	FormatAnswer
	FallbackResponse
	MaxIterationsReached
)

var stepNames = map[Step]string{
	StepNone:             "",
	CheckRelevance:       "check_relevance",
	ConvertToSQL:         "convert_to_sql",
	ExecuteSQL:           "execute_sql",
	RegenerateQuery:      "regenerate_query",
	FormatAnswer:         "format_answer",
	FallbackResponse:     "fallback_response",
	MaxIterationsReached: "max_iterations_reached",
}

// Steps lists every non-zero step in workflow order.
func Steps() []Step {
	return []Step{CheckRelevance, ConvertToSQL, ExecuteSQL, RegenerateQuery, FormatAnswer, FallbackResponse, MaxIterationsReached}
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Terminal reports whether s has no outgoing transition.
func (s Step) Terminal() bool {
	switch s {
	case FormatAnswer, FallbackResponse, MaxIterationsReached:
		return true
	}
	return false
}

// ParseStep is the inverse of Step.String.
func ParseStep(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name && s != StepNone {
			return s, true
		}
	}
	return StepNone, false
}

// Row is one result row keyed by column name. Column order lives in
// WorkflowState.Columns.
type Row map[string]any

// WorkflowState is the record threaded through every step of one run. A run
// owns its state exclusively; steps receive a copy and return the update.
type WorkflowState struct {
	// Query is the current question. The repair loop overwrites it.
	Query string
	// OriginalQuery is the question as received; rewrites start from it.
	OriginalQuery string
	Relevance     Relevance
	Confidence    float64
	// Schema is the store description shared by classification and synthesis.
	Schema string
	// SQLQuery is the last synthesized statement, empty until synthesis runs.
	SQLQuery string
	// QueryResult is the formatted output of the run.
	QueryResult  string
	QueryRows    []Row
	Columns      []string
	RowsAffected int64
	// Truncated is set when the store matched more rows than QueryRows holds.
	Truncated bool
	// Outcome is the kind of the last execution.
	Outcome OutcomeKind
	// SQLError is true iff the last execution failed.
	SQLError bool
	// Attempts counts repair iterations consumed.
	Attempts int
	Terminal Step
	Path     []Step
}

// NewState returns the initial state for question.
func NewState(question string) WorkflowState {
	return WorkflowState{
		Query:         question,
		OriginalQuery: question,
	}
}

func (s WorkflowState) visit(step Step) WorkflowState {
	path := make([]Step, len(s.Path), len(s.Path)+1)
	copy(path, s.Path)
	s.Path = append(path, step)
	return s
}
