package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/config"
	"github.com/kbrouter/kbrouter/docstore"
	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/history"
	histpg "github.com/kbrouter/kbrouter/history/postgres"
	histredis "github.com/kbrouter/kbrouter/history/redis"
	histsqlite "github.com/kbrouter/kbrouter/history/sqlite"
	"github.com/kbrouter/kbrouter/inference"
	"github.com/kbrouter/kbrouter/knowledge"
	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/metrics"
	"github.com/kbrouter/kbrouter/sqlagent"
)

// app holds every component built from the configuration.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	metrics *metrics.Metrics
	tracer  *graph.Tracer

	db     *sql.DB
	schema *sqlagent.SchemaInspector
	agent  *sqlagent.Agent
	bot    *chatbot.Chatbot

	kbStore  knowledge.Store
	ingestor *knowledge.Ingestor
	docs     docstore.Store
	history  history.Store

	closers []func() error
}

// appParts selects which optional components newApp builds.
type appParts struct {
	database  bool
	agent     bool
	knowledge bool
	documents bool
	history   bool
}

func newApp(ctx context.Context, cfg *config.Config, logger log.Logger, parts appParts) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	a.tracer = graph.NewTracer(graph.LogHook(logger), a.metrics.TraceHook())
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if parts.database || parts.agent {
		db, dialect, err := sqlagent.OpenDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.schema = sqlagent.NewSchemaInspector(db, dialect, cfg.Database.SchemaTTL, logger)
	}

	var client *inference.Client
	if parts.agent {
		model, err := inference.NewModel(inference.ModelConfig{
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
		})
		if err != nil {
			return nil, err
		}
		client = inference.NewClient(model, inference.WithLogger(logger), inference.WithJSONMode(cfg.LLM.JSONMode))
	}

	if parts.knowledge && cfg.Knowledge.Enabled {
		if err := a.openKnowledge(); err != nil {
			return nil, err
		}
	}

	if parts.documents {
		if a.docs, err = openDocuments(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if parts.history {
		if a.history, err = openHistory(ctx, cfg); err != nil {
			return nil, err
		}
		if a.history != nil {
			a.closers = append(a.closers, a.history.Close)
		}
	}

	if parts.agent {
		a.agent, err = sqlagent.NewAgent(sqlagent.Dependencies{
			Classifier:  client,
			Synthesizer: client,
			Rewriter:    client,
			Answerer:    client,
			Executor: a.metrics.InstrumentExecutor(
				sqlagent.NewSQLExecutor(a.db, sqlagent.WithMaxRows(cfg.Database.MaxRows), sqlagent.WithExecutorLogger(logger)),
			),
			Schema: a.schema,
		},
			sqlagent.WithMaxAttempts(cfg.Agent.MaxAttempts),
			sqlagent.WithRelevanceThreshold(cfg.Agent.RelevanceThreshold),
			sqlagent.WithLogger(logger),
			sqlagent.WithTracer(a.tracer),
		)
		if err != nil {
			return nil, err
		}

		opts := []chatbot.Option{
			chatbot.WithLogger(logger),
			chatbot.WithObserver(a.metrics),
			chatbot.WithTracer(a.tracer),
		}
		if a.kbStore != nil {
			embedder := a.embedder()
			opts = append(opts, chatbot.WithKnowledgeBase(
				knowledge.NewQAEngine(a.kbStore, embedder, client, cfg.Knowledge.TopK, logger),
			))
		}
		if a.history != nil {
			opts = append(opts, chatbot.WithHistory(a.history))
		}
		if a.bot, err = chatbot.New(a.agent, opts...); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) embedder() knowledge.Embedder {
	emb := a.cfg.Knowledge.Embedding
	return knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{
		Model:   emb.Model,
		BaseURL: emb.BaseURL,
		APIKey:  emb.APIKey,
	})
}

func (a *app) openKnowledge() error {
	store, err := knowledge.OpenBadgerStore(a.cfg.Knowledge.Dir, a.cfg.Knowledge.Collection)
	if err != nil {
		return err
	}
	a.kbStore = store
	a.closers = append(a.closers, store.Close)

	a.ingestor, err = knowledge.NewIngestor(store, a.embedder(),
		knowledge.WithChunking(a.cfg.Knowledge.ChunkSize, a.cfg.Knowledge.ChunkOverlap),
		knowledge.WithIngestLogger(a.logger),
		knowledge.WithIngestTracer(a.tracer),
	)
	return err
}

func openDocuments(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	d := cfg.Documents
	if d.Backend == "s3" {
		store, err := docstore.NewS3Store(ctx, docstore.S3Config{
			Endpoint:         d.S3.Endpoint,
			Region:           d.S3.Region,
			Bucket:           d.S3.Bucket,
			AccessKeyID:      d.S3.AccessKey,
			SecretAccessKey:  d.S3.SecretKey,
			UseSSL:           d.S3.UseSSL,
			Prefix:           d.S3.Prefix,
			AutoCreateBucket: d.S3.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := docstore.NewLocalStore(d.Dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	h := cfg.History
	switch h.Backend {
	case "none":
		return nil, nil
	case "memory":
		return history.NewMemoryStore(), nil
	case "sqlite":
		path := h.DSN
		if path == "" {
			path = "kbrouter_history.db"
		}
		store, err := histsqlite.Open(ctx, histsqlite.Options{Path: path, TableName: h.Table})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		if h.DSN == "" {
			return nil, errors.New("history.dsn is required for the postgres backend")
		}
		store, err := histpg.Open(ctx, histpg.Options{ConnString: h.DSN, TableName: h.Table})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		addr := h.DSN
		if addr == "" {
			addr = "localhost:6379"
		}
		return histredis.New(histredis.Options{Addr: addr, Password: h.Password, TTL: h.TTL}), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", h.Backend)
}

// diagrams returns the Mermaid source of every workflow graph.
func (a *app) diagrams() map[string]string {
	out := map[string]string{}
	if a.bot != nil {
		out["router"] = graph.NewExporter(a.bot.Graph()).DrawMermaid()
	}
	if a.agent != nil {
		out["sql_agent"] = graph.NewExporter(a.agent.Graph()).DrawMermaid()
	}
	if a.ingestor != nil {
		out["ingestion"] = graph.NewExporter(a.ingestor.Graph()).DrawMermaid()
	}
	return out
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
	a.closers = nil
}
