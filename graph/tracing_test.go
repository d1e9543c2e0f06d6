package graph_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/log"
)

type recorder struct {
	mu     sync.Mutex
	events []graph.TraceEvent
	edges  [][2]string
}

func (r *recorder) OnEvent(_ context.Context, span *graph.TraceSpan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, span.Event)
	if span.Event == graph.TraceEventEdgeTraversal {
		r.edges = append(r.edges, [2]string{span.FromNode, span.ToNode})
	}
}

func TestTracer_EmitsLifecycleEvents(t *testing.T) {
	g := graph.NewStateGraph[counter]()
	g.AddNode("a", "", step("a"))
	g.AddNode("b", "", step("b"))
	g.AddEdge("a", "b")
	g.AddEdge("b", graph.END)
	g.SetEntryPoint("a")

	r, err := g.Compile()
	require.NoError(t, err)

	rec := &recorder{}
	_, err = r.WithTracer(graph.NewTracer(rec)).Invoke(context.Background(), counter{})
	require.NoError(t, err)

	assert.Equal(t, []graph.TraceEvent{
		graph.TraceEventGraphStart,
		graph.TraceEventNodeStart, graph.TraceEventNodeEnd, graph.TraceEventEdgeTraversal,
		graph.TraceEventNodeStart, graph.TraceEventNodeEnd, graph.TraceEventEdgeTraversal,
		graph.TraceEventGraphEnd,
	}, rec.events)
	assert.Equal(t, [][2]string{{"a", "b"}, {"b", graph.END}}, rec.edges)
}

func TestTracer_NodeError(t *testing.T) {
	g := graph.NewStateGraph[counter]()
	g.AddNode("a", "", func(context.Context, counter) (counter, error) { return counter{}, errors.New("nope") })
	g.AddEdge("a", graph.END)
	g.SetEntryPoint("a")

	r, err := g.Compile()
	require.NoError(t, err)

	rec := &recorder{}
	_, err = r.WithTracer(graph.NewTracer(rec)).Invoke(context.Background(), counter{})
	require.Error(t, err)
	assert.Contains(t, rec.events, graph.TraceEventNodeError)
	assert.Equal(t, graph.TraceEventGraphEnd, rec.events[len(rec.events)-1])
}

func TestLogHook(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewGologLoggerWithWriter(&buf, log.LogLevelDebug)

	g := graph.NewStateGraph[counter]()
	g.AddNode("a", "", step("a"))
	g.AddEdge("a", graph.END)
	g.SetEntryPoint("a")

	r, err := g.Compile()
	require.NoError(t, err)

	tracer := graph.NewTracer()
	tracer.AddHook(graph.LogHook(logger))
	_, err = r.WithTracer(tracer).Invoke(context.Background(), counter{})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "node a finished")
	assert.Contains(t, buf.String(), "edge a -> END")
}
