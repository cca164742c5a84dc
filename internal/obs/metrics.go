package obs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"sia/internal/logging"
)

// Metrics aggregates the pipeline and runtime instruments. The zero
// value (disabled collector) is a no-op on every method.
type Metrics struct {
	meter metric.Meter

	pipelineRuns    metric.Int64Counter
	pipelineLatency metric.Float64Histogram
	gapsDetected    metric.Int64Counter
	problemsCreated metric.Int64Counter

	llmRequests  metric.Int64Counter
	llmFallbacks metric.Int64Counter
	llmLatency   metric.Float64Histogram

	actionOutcomes metric.Int64Counter
	rateLimitHits  metric.Int64Counter
	lockConflicts  metric.Int64Counter

	server *http.Server
	logger logging.Logger
}

// NewMetrics builds the collector. When disabled, every Record method
// silently does nothing.
func NewMetrics(cfg Config, logger logging.Logger) (*Metrics, error) {
	m := &Metrics{logger: logging.OrNop(logger)}
	if !cfg.Enabled {
		return m, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("sia")
	m.meter = meter

	if m.pipelineRuns, err = meter.Int64Counter("sia.pipeline.runs.total",
		metric.WithDescription("Pipeline invocations"),
		metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.pipelineLatency, err = meter.Float64Histogram("sia.pipeline.latency",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.gapsDetected, err = meter.Int64Counter("sia.gaps.detected.total",
		metric.WithDescription("Gaps surviving the score filter"),
		metric.WithUnit("{gap}")); err != nil {
		return nil, err
	}
	if m.problemsCreated, err = meter.Int64Counter("sia.problems.created.total",
		metric.WithDescription("Problems registered in the World Model"),
		metric.WithUnit("{problem}")); err != nil {
		return nil, err
	}
	if m.llmRequests, err = meter.Int64Counter("sia.llm.requests.total",
		metric.WithDescription("LLM requests by stage and status"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.llmFallbacks, err = meter.Int64Counter("sia.llm.fallbacks.total",
		metric.WithDescription("Stages that fell back to templates"),
		metric.WithUnit("{fallback}")); err != nil {
		return nil, err
	}
	if m.llmLatency, err = meter.Float64Histogram("sia.llm.latency",
		metric.WithDescription("LLM request latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.actionOutcomes, err = meter.Int64Counter("sia.actions.outcomes.total",
		metric.WithDescription("Executed actions by outcome class"),
		metric.WithUnit("{action}")); err != nil {
		return nil, err
	}
	if m.rateLimitHits, err = meter.Int64Counter("sia.ratelimit.hits.total",
		metric.WithDescription("Actions deferred by the rate limiter"),
		metric.WithUnit("{hit}")); err != nil {
		return nil, err
	}
	if m.lockConflicts, err = meter.Int64Counter("sia.locks.conflicts.total",
		metric.WithDescription("Lock acquisitions lost to a higher-priority holder"),
		metric.WithUnit("{conflict}")); err != nil {
		return nil, err
	}

	if cfg.PrometheusPort > 0 {
		m.serve(cfg.PrometheusPort)
	}
	return m, nil
}

func (m *Metrics) serve(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())
	m.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		m.logger.Info("metrics: prometheus endpoint on :%d", port)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Warn("metrics: server stopped: %v", err)
		}
	}()
}

// Shutdown stops the scrape endpoint.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

func (m *Metrics) RecordPipelineRun(ctx context.Context, domain, status string, d time.Duration) {
	if m.pipelineRuns == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("status", status),
	)
	m.pipelineRuns.Add(ctx, 1, attrs)
	m.pipelineLatency.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordGaps(ctx context.Context, domain string, n int) {
	if m.gapsDetected == nil || n == 0 {
		return
	}
	m.gapsDetected.Add(ctx, int64(n), metric.WithAttributes(attribute.String("domain", domain)))
}

func (m *Metrics) RecordProblem(ctx context.Context, domain string) {
	if m.problemsCreated == nil {
		return
	}
	m.problemsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
}

func (m *Metrics) RecordLLMRequest(ctx context.Context, stage, status string, d time.Duration) {
	if m.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordLLMFallback(ctx context.Context, stage string) {
	if m.llmFallbacks == nil {
		return
	}
	m.llmFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *Metrics) RecordActionOutcome(ctx context.Context, domain, outcome string) {
	if m.actionOutcomes == nil {
		return
	}
	m.actionOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordRateLimitHit(ctx context.Context, resource string) {
	if m.rateLimitHits == nil {
		return
	}
	m.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
}

func (m *Metrics) RecordLockConflict(ctx context.Context, resource string) {
	if m.lockConflicts == nil {
		return
	}
	m.lockConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
}
