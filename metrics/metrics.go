// Package metrics exposes Prometheus instrumentation for kbrouter: chatbot
// runs, repair attempts, SQL execution outcomes, graph node latency,
// ingestion volume and HTTP latency.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbrouter/kbrouter/graph"
	"github.com/kbrouter/kbrouter/sqlagent"
)

const namespace = "kbrouter"

// Metrics owns a registry and every collector registered on it. Each
// instance is independent so tests can build their own.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	attempts          prometheus.Histogram
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
	nodeDuration      *prometheus.HistogramVec
	ingestedChunks    prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates a Metrics with Go runtime and process collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed chatbot runs by answering route and terminal step.",
			},
			[]string{"route", "terminal"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "End-to-end chatbot run latency.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"route"},
		),
		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sql_attempts",
				Help:      "Repair attempts used per database run.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
		),
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sql_executions_total",
				Help:      "SQL statement executions by outcome kind.",
			},
			[]string{"outcome"},
		),
		executionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sql_execution_duration_seconds",
				Help:      "SQL statement execution latency.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_node_duration_seconds",
				Help:      "Workflow node latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node", "status"},
		),
		ingestedChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_chunks_total",
				Help:      "Chunks written to the knowledge base.",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.runDuration,
		m.attempts,
		m.executionsTotal,
		m.executionDuration,
		m.nodeDuration,
		m.ingestedChunks,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	// Zero series for every database terminal so rates exist before the first run.
	for _, step := range sqlagent.Steps() {
		if step.Terminal() {
			m.runsTotal.WithLabelValues("database", step.String())
		}
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records one finished chatbot run. attempts < 0 means the
// database path did not run and no attempts sample is taken.
func (m *Metrics) ObserveRun(route, terminal string, attempts int, d time.Duration) {
	m.runsTotal.WithLabelValues(route, terminal).Inc()
	m.runDuration.WithLabelValues(route).Observe(d.Seconds())
	if attempts >= 0 {
		m.attempts.Observe(float64(attempts))
	}
}

// ObserveIngest records chunks written by one ingestion.
func (m *Metrics) ObserveIngest(chunks int) {
	m.ingestedChunks.Add(float64(chunks))
}

// InstrumentExecutor wraps exec so every statement is counted by outcome.
func (m *Metrics) InstrumentExecutor(exec sqlagent.Executor) sqlagent.Executor {
	return &instrumentedExecutor{next: exec, m: m}
}

type instrumentedExecutor struct {
	next sqlagent.Executor
	m    *Metrics
}

func (e *instrumentedExecutor) Execute(ctx context.Context, stmt string) sqlagent.Outcome {
	start := time.Now()
	out := e.next.Execute(ctx, stmt)
	e.m.executionDuration.Observe(time.Since(start).Seconds())
	e.m.executionsTotal.WithLabelValues(out.Kind.String()).Inc()
	return out
}

// TraceHook returns a graph hook timing every node.
func (m *Metrics) TraceHook() graph.TraceHook {
	return graph.TraceHookFunc(func(_ context.Context, span *graph.TraceSpan) {
		switch span.Event {
		case graph.TraceEventNodeEnd:
			m.nodeDuration.WithLabelValues(span.NodeName, "ok").Observe(span.Duration.Seconds())
		case graph.TraceEventNodeError:
			m.nodeDuration.WithLabelValues(span.NodeName, "error").Observe(span.Duration.Seconds())
		}
	})
}

// GinMiddleware records request count and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
