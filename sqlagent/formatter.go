package sqlagent

import (
	"context"
	"fmt"
	"strings"
)

// Fixed terminal messages.
const (
	FallbackMessage    = "I'm sorry, but I couldn't find the information you're looking for in the database."
	RetryMessage       = "Please try again."
	EmptyResultMessage = "No matching records were found."
)

// Formatter turns a terminal state into the user-facing message.
type Formatter struct {
	answerer Answerer
}

// NewFormatter creates a Formatter. With a nil answerer, row results are
// rendered as a plain text table instead of prose.
func NewFormatter(answerer Answerer) *Formatter {
	return &Formatter{answerer: answerer}
}

// Format renders the message for terminal step.
func (f *Formatter) Format(ctx context.Context, step Step, state WorkflowState) (string, error) {
	switch step {
	case FallbackResponse:
		return FallbackMessage, nil
	case MaxIterationsReached:
		return RetryMessage, nil
	case FormatAnswer:
	default:
		return "", fmt.Errorf("format: %s is not a terminal step", step)
	}

	switch state.Outcome {
	case OutcomeAck:
		return AckMessage, nil
	case OutcomeRows:
		if len(state.QueryRows) == 0 {
			return EmptyResultMessage, nil
		}
		if f.answerer == nil {
			return RenderRows(state.Columns, state.QueryRows, state.Truncated), nil
		}
		return f.answerer.Answer(ctx, state.OriginalQuery, state.SQLQuery, state.Columns, state.QueryRows, state.Truncated)
	default:
		return EmptyResultMessage, nil
	}
}

// RenderRows renders rows as a pipe-separated table in column order. A
// truncated table ends with a note naming how many rows are shown.
func RenderRows(columns []string, rows []Row, truncated bool) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(columns, " | "))
	for _, row := range rows {
		sb.WriteString("\n")
		for i, col := range columns {
			if i > 0 {
				sb.WriteString(" | ")
			}
			if v := row[col]; v != nil {
				fmt.Fprint(&sb, v)
			} else {
				sb.WriteString("NULL")
			}
		}
	}
	if truncated {
		fmt.Fprintf(&sb, "\n(showing the first %d rows; more rows matched)", len(rows))
	}
	return sb.String()
}
