package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/knowledge"
	"github.com/kbrouter/kbrouter/sqlagent"
)

var graphDOT bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the workflow graphs as Mermaid (or DOT)",
	RunE: func(cmd *cobra.Command, args []string) error {
		diagrams, err := offlineDiagrams(graphDOT)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(diagrams))
		for name := range diagrams {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(out, "%%%% %s\n%s\n", name, diagrams[name])
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphDOT, "dot", false, "emit Graphviz DOT instead of Mermaid")
}

// offlineDiagrams builds the graphs with inert collaborators so no database
// or model connection is needed.
func offlineDiagrams(dot bool) (map[string]string, error) {
	agent, err := sqlagent.NewAgent(sqlagent.Dependencies{
		Classifier:  inert{},
		Synthesizer: inert{},
		Rewriter:    inert{},
		Executor:    inert{},
		Schema:      sqlagent.StaticSchema(""),
	}, sqlagent.WithMaxAttempts(cfg.Agent.MaxAttempts))
	if err != nil {
		return nil, err
	}
	bot, err := chatbot.New(agent)
	if err != nil {
		return nil, err
	}
	ingestor, err := knowledge.NewIngestor(knowledge.NewMemoryStore(), inert{})
	if err != nil {
		return nil, err
	}

	render := func(m interface {
		DrawMermaid() string
		DrawDOT() string
	}) string {
		if dot {
			return m.DrawDOT()
		}
		return m.DrawMermaid()
	}
	return map[string]string{
		"router":    render(graph.NewExporter(bot.Graph())),
		"sql_agent": render(graph.NewExporter(agent.Graph())),
		"ingestion": render(graph.NewExporter(ingestor.Graph())),
	}, nil
}

var errOffline = errors.New("graph was built for rendering only")

// inert satisfies every collaborator interface and refuses to do work.
type inert struct{}

func (inert) Classify(context.Context, string, string) (sqlagent.Classification, error) {
	return sqlagent.Classification{}, errOffline
}

func (inert) Synthesize(context.Context, string, string) (string, error) { return "", errOffline }

func (inert) Rewrite(context.Context, string) (string, error) { return "", errOffline }

func (inert) Execute(context.Context, string) sqlagent.Outcome {
	return sqlagent.ErrorOutcome(errOffline)
}

func (inert) EmbedDocuments(context.Context, []string) ([][]float32, error) { return nil, errOffline }

func (inert) EmbedQuery(context.Context, string) ([]float32, error) { return nil, errOffline }
