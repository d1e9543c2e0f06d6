package graph

import (
	"fmt"
	"strings"
)

// Exporter renders a graph's transition table in text diagram formats.
type Exporter[S any] struct {
	graph *StateGraph[S]
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter[S any](graph *StateGraph[S]) *Exporter[S] {
	return &Exporter[S]{graph: graph}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram representation of the graph
func (ge *Exporter[S]) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Static edges are solid, conditional edges are dotted and drawn once per
// declared target.
func (ge *Exporter[S]) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	g := ge.graph
	if g.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString("    style START fill:#90EE90\n")
	}

	for _, name := range g.order {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
	}

	if ge.reachesEnd() {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	if g.entryPoint != "" {
		fmt.Fprintf(&sb, "    START --> %s\n", g.entryPoint)
	}

	for _, name := range g.order {
		if ce, ok := g.conditionalEdges[name]; ok {
			for _, t := range ce.targets {
				fmt.Fprintf(&sb, "    %s -.-> %s\n", name, t)
			}
			continue
		}
		for _, e := range g.edges {
			if e.From == name {
				fmt.Fprintf(&sb, "    %s --> %s\n", e.From, e.To)
			}
		}
	}

	if g.entryPoint != "" {
		fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", g.entryPoint)
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter[S]) DrawDOT() string {
	var sb strings.Builder
	g := ge.graph

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	if g.entryPoint != "" {
		sb.WriteString("    START [label=\"START\", shape=ellipse, style=filled, fillcolor=lightgreen];\n")
		fmt.Fprintf(&sb, "    START -> %s;\n", g.entryPoint)
		fmt.Fprintf(&sb, "    %s [style=filled, fillcolor=lightblue];\n", g.entryPoint)
	}
	if ge.reachesEnd() {
		sb.WriteString("    END [label=\"END\", shape=ellipse, style=filled, fillcolor=lightpink];\n")
	}

	for _, name := range g.order {
		if ce, ok := g.conditionalEdges[name]; ok {
			for _, t := range ce.targets {
				fmt.Fprintf(&sb, "    %s -> %s [style=dashed];\n", name, t)
			}
			continue
		}
		for _, e := range g.edges {
			if e.From == name {
				fmt.Fprintf(&sb, "    %s -> %s;\n", e.From, e.To)
			}
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func (ge *Exporter[S]) reachesEnd() bool {
	for _, e := range ge.graph.edges {
		if e.To == END {
			return true
		}
	}
	for _, ce := range ge.graph.conditionalEdges {
		for _, t := range ce.targets {
			if t == END {
				return true
			}
		}
	}
	return false
}
