package sqlagent

import (
	"errors"
	"fmt"
)

// ErrEmptyQuestion is returned by Agent.Run for a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// ClassificationError reports classifier output that is not one of the two
// relevance labels. It aborts the run.
type ClassificationError struct {
	Output string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifier returned %q, want \"relevant\" or \"not_relevant\"", e.Output)
}

// InferenceError reports a failed call to a model-backed collaborator.
// Inference failures are never retried.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
