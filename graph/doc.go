// Package graph provides the typed state-machine engine the kbrouter workflows
// run on.
//
// A StateGraph[S] is a set of named nodes, each a function from S to S, plus a
// transition table. Every node owns exactly one outgoing rule:
//
//   - a static edge (AddEdge), or
//   - a conditional edge (AddConditionalEdge) whose router picks one of a
//     closed, declared set of targets.
//
// Compile checks the table before anything runs: the entry point exists,
// every edge endpoint exists, and no node has zero or several rules. At run
// time a router that returns a target it did not declare fails the run with
// ErrUndeclaredTarget instead of jumping somewhere unexpected.
//
// Execution is strictly sequential. Invoke stops at END, on the first node
// error (wrapped in *NodeError), on context cancellation, or when the
// recursion limit is exceeded.
//
// # Example
//
//	g := graph.NewStateGraph[Counter]()
//	g.AddNode("inc", "increment", func(ctx context.Context, c Counter) (Counter, error) {
//		c.N++
//		return c, nil
//	})
//	g.AddConditionalEdge("inc", func(ctx context.Context, c Counter) string {
//		if c.N < 3 {
//			return "inc"
//		}
//		return graph.END
//	}, "inc", graph.END)
//	g.SetEntryPoint("inc")
//
//	runnable, err := g.Compile()
//	if err != nil {
//		return err
//	}
//	final, err := runnable.Invoke(ctx, Counter{})
//
// # Observability
//
// A Tracer attached with WithTracer emits graph, node and edge events to
// TraceHooks; LogHook adapts a log.Logger. NewExporter renders the
// transition table as Mermaid or DOT.
package graph
