package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, appParts{agent: true, knowledge: true, documents: true, history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(server.Options{
			Chatbot:        a.bot,
			Ingestor:       ingestorOrNil(a),
			Documents:      a.docs,
			Knowledge:      a.kbStore,
			Metrics:        a.metrics,
			Diagrams:       a.diagrams(),
			RequestTimeout: cfg.Server.RequestTimeout,
			AllowOrigins:   cfg.Server.AllowOrigins,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

// ingestorOrNil keeps a nil *knowledge.Ingestor from becoming a non-nil
// server.Ingestor.
func ingestorOrNil(a *app) server.Ingestor {
	if a.ingestor == nil {
		return nil
	}
	return a.ingestor
}
