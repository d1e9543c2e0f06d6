// Package server exposes the chatbot and the ingestion pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kbrouter/kbrouter/chatbot"
	"github.com/kbrouter/kbrouter/docstore"
	"github.com/kbrouter/kbrouter/knowledge"
	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/metrics"
)

// DefaultRequestTimeout bounds a single request when Options leaves it unset.
const DefaultRequestTimeout = 60 * time.Second

// Asker answers chatbot questions.
type Asker interface {
	Ask(ctx context.Context, question string) (chatbot.State, error)
}

// Ingestor turns an uploaded file into stored chunks.
type Ingestor interface {
	Ingest(ctx context.Context, name string, data []byte) (knowledge.IngestResult, error)
}

// Options wires the server. Only Chatbot is required; the ingestion and
// knowledge-base routes answer 503 when their dependencies are missing.
type Options struct {
	Chatbot   Asker
	Ingestor  Ingestor
	Documents docstore.Store
	Knowledge knowledge.Store
	Metrics   *metrics.Metrics
	// Diagrams maps a graph name to its Mermaid source for GET /graph.
	Diagrams       map[string]string
	RequestTimeout time.Duration
	AllowOrigins   []string
	// MaxUploadBytes caps an uploaded file; 0 means 32 MiB.
	MaxUploadBytes int64
	Logger         log.Logger
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	logger log.Logger
	engine *gin.Engine
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Chatbot == nil {
		return nil, errors.New("server: chatbot is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	s := &Server{opts: opts, logger: log.OrDefault(opts.Logger)}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the http.Handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(s.opts.AllowOrigins) == 0 || (len(s.opts.AllowOrigins) == 1 && s.opts.AllowOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.AllowOrigins
	}
	r.Use(cors.New(corsConfig))

	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.GinMiddleware())
		r.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
	r.MaxMultipartMemory = s.opts.MaxUploadBytes

	r.GET("/test", s.handleTest)
	r.POST("/chatbot", s.handleChatbot)
	r.POST("/ingestion-pipeline", s.handleIngestion)
	r.GET("/kb/stats", s.handleKBStats)
	r.GET("/graph", s.handleGraph)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d in %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
