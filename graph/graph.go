package graph

import (
	"errors"
	"fmt"
)

// END is a special constant used to represent the end node in the graph.
const END = "END"

// DefaultRecursionLimit bounds the number of node executions in one Invoke.
const DefaultRecursionLimit = 25

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrAmbiguousEdge is returned when a node has more than one outgoing rule.
	ErrAmbiguousEdge = errors.New("node has more than one outgoing rule")

	// ErrUndeclaredTarget is returned when a router picks a node it did not declare.
	ErrUndeclaredTarget = errors.New("router returned an undeclared target")

	// ErrRecursionLimit is returned when a run exceeds the configured step limit.
	ErrRecursionLimit = errors.New("recursion limit reached")
)

// Edge represents a static edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}

// NodeError reports a failure returned by a node function.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("error in node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
