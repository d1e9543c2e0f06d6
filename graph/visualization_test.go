package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbrouter/kbrouter/graph"
)

func routedGraph() *graph.StateGraph[counter] {
	g := graph.NewStateGraph[counter]()
	g.AddNode("check", "", step("check"))
	g.AddNode("yes", "", step("yes"))
	g.AddNode("no", "", step("no"))
	g.AddConditionalEdge("check", func(context.Context, counter) string { return "yes" }, "yes", "no")
	g.AddEdge("yes", graph.END)
	g.AddEdge("no", graph.END)
	g.SetEntryPoint("check")
	return g
}

func TestExporter_DrawMermaid(t *testing.T) {
	out := graph.NewExporter(routedGraph()).DrawMermaid()

	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "START --> check")
	assert.Contains(t, out, "check -.-> yes")
	assert.Contains(t, out, "check -.-> no")
	assert.Contains(t, out, "yes --> END")
	assert.Contains(t, out, "style check fill:#87CEEB")
}

func TestExporter_DrawMermaidDirection(t *testing.T) {
	out := graph.NewExporter(routedGraph()).DrawMermaidWithOptions(graph.MermaidOptions{Direction: "LR"})
	assert.Contains(t, out, "flowchart LR")
}

func TestExporter_DrawDOT(t *testing.T) {
	out := graph.NewExporter(routedGraph()).DrawDOT()

	assert.Contains(t, out, "digraph G {")
	assert.Contains(t, out, "START -> check;")
	assert.Contains(t, out, "check -> no [style=dashed];")
	assert.Contains(t, out, "no -> END;")
}
