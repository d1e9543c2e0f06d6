package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Router picks the next node after a node with a conditional edge has run.
type Router[S any] func(ctx context.Context, state S) string

// TypedNode represents a typed node in the graph.
type TypedNode[S any] struct {
	Name        string
	Description string
	Function    func(ctx context.Context, state S) (S, error)
}

type conditionalEdge[S any] struct {
	router  Router[S]
	targets []string
}

// StateGraph is a typed state machine. Nodes run strictly one at a time and
// every node owns exactly one outgoing rule: a static edge or a conditional
// edge whose possible targets are declared up front.
//
// Example usage:
//
//	type MyState struct {
//	    Count int
//	}
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("increment", "Increment counter", func(ctx context.Context, s MyState) (MyState, error) {
//	    s.Count++
//	    return s, nil
//	})
//	g.AddConditionalEdge("increment", func(ctx context.Context, s MyState) string {
//	    if s.Count < 3 {
//	        return "increment"
//	    }
//	    return graph.END
//	}, "increment", graph.END)
//	g.SetEntryPoint("increment")
type StateGraph[S any] struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]TypedNode[S]

	// order keeps node insertion order for exporters
	order []string

	// edges holds the static transitions
	edges []Edge

	// conditionalEdges maps a "From" node to its router and declared targets
	conditionalEdges map[string]conditionalEdge[S]

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	recursionLimit int
}

// NewStateGraph creates a new instance of StateGraph with type safety.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]TypedNode[S]),
		conditionalEdges: make(map[string]conditionalEdge[S]),
		recursionLimit:   DefaultRecursionLimit,
	}
}

// AddNode adds a new node to the state graph with the given name, description and function.
func (g *StateGraph[S]) AddNode(name string, description string, fn func(ctx context.Context, state S) (S, error)) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = TypedNode[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge adds an edge whose target is chosen at runtime by router.
// targets is the closed set of nodes the router may return; returning
// anything else fails the run with ErrUndeclaredTarget.
func (g *StateGraph[S]) AddConditionalEdge(from string, router Router[S], targets ...string) {
	g.conditionalEdges[from] = conditionalEdge[S]{
		router:  router,
		targets: slices.Clone(targets),
	}
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRecursionLimit overrides DefaultRecursionLimit. Values below 1 are ignored.
func (g *StateGraph[S]) SetRecursionLimit(limit int) {
	if limit > 0 {
		g.recursionLimit = limit
	}
}

// Nodes returns node names in insertion order.
func (g *StateGraph[S]) Nodes() []string {
	return slices.Clone(g.order)
}

// Node returns the node registered under name.
func (g *StateGraph[S]) Node(name string) (TypedNode[S], bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Targets returns every node reachable in one step from name.
func (g *StateGraph[S]) Targets(name string) []string {
	if ce, ok := g.conditionalEdges[name]; ok {
		return slices.Clone(ce.targets)
	}
	var out []string
	for _, e := range g.edges {
		if e.From == name {
			out = append(out, e.To)
		}
	}
	return out
}

// Compile validates the transition table and returns a StateRunnable.
func (g *StateGraph[S]) Compile() (*StateRunnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if err := g.validate(); err != nil {
		return nil, err
	}

	static := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		static[e.From] = e.To
	}

	return &StateRunnable[S]{
		graph:  g,
		static: static,
	}, nil
}

func (g *StateGraph[S]) validate() error {
	var errs []error

	exists := func(name string) bool {
		if name == END {
			return true
		}
		_, ok := g.nodes[name]
		return ok
	}

	if !exists(g.entryPoint) {
		errs = append(errs, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint))
	}

	rules := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		rules[e.From]++
		if !exists(e.From) {
			errs = append(errs, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, e.From))
		}
		if !exists(e.To) {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %s", ErrNodeNotFound, e.From, e.To))
		}
	}
	for from, ce := range g.conditionalEdges {
		rules[from]++
		if !exists(from) {
			errs = append(errs, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from))
		}
		if len(ce.targets) == 0 {
			errs = append(errs, fmt.Errorf("conditional edge from %s declares no targets", from))
		}
		for _, t := range ce.targets {
			if !exists(t) {
				errs = append(errs, fmt.Errorf("%w: conditional edge %s -> %s", ErrNodeNotFound, from, t))
			}
		}
	}

	for _, name := range g.order {
		switch n := rules[name]; {
		case n == 0:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name))
		case n > 1:
			errs = append(errs, fmt.Errorf("%w: %s", ErrAmbiguousEdge, name))
		}
	}

	return errors.Join(errs...)
}

// StateRunnable represents a compiled state graph that can be invoked with type safety.
type StateRunnable[S any] struct {
	graph  *StateGraph[S]
	static map[string]string
	tracer *Tracer
}

// Graph returns the graph the runnable was compiled from.
func (r *StateRunnable[S]) Graph() *StateGraph[S] {
	return r.graph
}

// WithTracer returns a new StateRunnable with the given tracer.
func (r *StateRunnable[S]) WithTracer(tracer *Tracer) *StateRunnable[S] {
	return &StateRunnable[S]{
		graph:  r.graph,
		static: r.static,
		tracer: tracer,
	}
}

// Invoke runs the graph from the entry point until END is reached.
//
// On failure Invoke returns the last state produced by a successful node
// together with the error, so callers can report how far the run got.
func (r *StateRunnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	state := initialState
	current := r.graph.entryPoint

	var graphSpan *TraceSpan
	if r.tracer != nil {
		graphSpan = r.tracer.StartSpan(ctx, TraceEventGraphStart, "")
		ctx = ContextWithSpan(ctx, graphSpan)
	}
	finish := func(err error) (S, error) {
		if graphSpan != nil {
			r.tracer.EndSpan(ctx, graphSpan, state, err)
		}
		return state, err
	}

	for steps := 0; current != END; steps++ {
		if steps >= r.graph.recursionLimit {
			return finish(fmt.Errorf("%w: %d steps", ErrRecursionLimit, r.graph.recursionLimit))
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return finish(fmt.Errorf("%w: %s", ErrNodeNotFound, current))
		}

		next, err := r.runNode(ctx, node, state)
		if err != nil {
			return finish(&NodeError{Node: current, Err: err})
		}
		state = next

		target, err := r.route(ctx, current, state)
		if err != nil {
			return finish(err)
		}
		if r.tracer != nil {
			r.tracer.TraceEdgeTraversal(ctx, current, target)
		}
		current = target
	}

	return finish(nil)
}

func (r *StateRunnable[S]) runNode(ctx context.Context, node TypedNode[S], state S) (S, error) {
	if r.tracer == nil {
		return node.Function(ctx, state)
	}
	span := r.tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
	result, err := node.Function(ContextWithSpan(ctx, span), state)
	if err != nil {
		r.tracer.EndSpan(ctx, span, state, err)
		return result, err
	}
	r.tracer.EndSpan(ctx, span, result, nil)
	return result, nil
}

func (r *StateRunnable[S]) route(ctx context.Context, from string, state S) (string, error) {
	if ce, ok := r.graph.conditionalEdges[from]; ok {
		target := ce.router(ctx, state)
		if !slices.Contains(ce.targets, target) {
			return "", fmt.Errorf("%w: %s -> %q", ErrUndeclaredTarget, from, target)
		}
		return target, nil
	}
	if to, ok := r.static[from]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}
