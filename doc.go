// kbrouter - Natural-Language Questions over SQL and Documents
//
// kbrouter answers a user's question from a relational database when it can,
// and from a knowledge base of uploaded documents when it cannot. The
// database path is a small state machine that classifies the question,
// writes SQL, runs it and repairs failing statements a bounded number of
// times before giving up with a fixed message.
//
// # Quick Start
//
//	kbrouter serve --config kbrouter.yaml
//
//	curl -F query="How many cars were made in 2020?" localhost:8000/chatbot
//	curl -F file=@handbook.pdf localhost:8000/ingestion-pipeline
//
// Or from Go:
//
//	db, dialect, err := sqlagent.OpenDB("sqlite://db/used_cars.db")
//	if err != nil {
//		return err
//	}
//	model, err := inference.NewModel(inference.ModelConfig{Model: "llama-3.3-70b-versatile"})
//	if err != nil {
//		return err
//	}
//	client := inference.NewClient(model)
//
//	agent, err := sqlagent.NewAgent(sqlagent.Dependencies{
//		Classifier:  client,
//		Synthesizer: client,
//		Rewriter:    client,
//		Answerer:    client,
//		Executor:    sqlagent.NewSQLExecutor(db),
//		Schema:      sqlagent.NewSchemaInspector(db, dialect, 0, nil),
//	})
//	if err != nil {
//		return err
//	}
//	state, err := agent.Run(ctx, "Which cars were made in 2020?")
//	fmt.Println(state.QueryResult)
//
// # Packages
//
//   - graph: typed state-machine engine with tracing and Mermaid/DOT export
//   - sqlagent: the classify, synthesize, execute and repair workflow
//   - inference: language-model collaborators on langchaingo
//   - knowledge: document loading, chunking, embeddings, vector store and QA
//   - chatbot: routes each question to the database or the knowledge base
//   - docstore: storage for uploaded files (local folder or S3)
//   - history: audit trail of completed runs
//   - metrics: Prometheus instrumentation
//   - config: YAML and environment configuration
//   - server: HTTP API
//   - log: leveled logging backed by golog
package kbrouter
