package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments the driver and collectors record against:
// a fixed small set of named counters and gauges, since this process has
// one fixed set of signals to report rather than a dynamically registered
// instrument space.
type Metrics struct {
	RunsTotal          metric.Int64Counter
	FindingsTotal       metric.Int64Counter
	CollectorErrors     metric.Int64Counter
	IntegrationFailures metric.Int64Counter
	RunDuration         metric.Float64Histogram

	registry *prometheus.Registry
}

// New builds a MeterProvider backed by the OTel Prometheus exporter
// (go.opentelemetry.io/otel/exporters/prometheus), registers it against a
// dedicated prometheus.Registry (so tests never collide with the process
// default registry), and declares every instrument the driver uses.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("unifi-reporter")

	m := &Metrics{registry: registry}

	m.RunsTotal, err = meter.Int64Counter("unifi_reporter_runs_total",
		metric.WithDescription("Total pipeline runs, labeled by outcome"))
	if err != nil {
		return nil, err
	}
	m.FindingsTotal, err = meter.Int64Counter("unifi_reporter_findings_total",
		metric.WithDescription("Total findings emitted, labeled by severity"))
	if err != nil {
		return nil, err
	}
	m.CollectorErrors, err = meter.Int64Counter("unifi_reporter_collector_errors_total",
		metric.WithDescription("Collector failures, labeled by source"))
	if err != nil {
		return nil, err
	}
	m.IntegrationFailures, err = meter.Int64Counter("unifi_reporter_integration_failures_total",
		metric.WithDescription("Integration failures, labeled by integration name"))
	if err != nil {
		return nil, err
	}
	m.RunDuration, err = meter.Float64Histogram("unifi_reporter_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of one pipeline run"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Handler exposes the metrics registry over HTTP in the standard
// Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun increments RunsTotal and observes RunDuration for one
// completed pipeline invocation.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, durationSeconds float64) {
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.RunDuration.Record(ctx, durationSeconds)
}

// RecordFinding increments FindingsTotal for one emitted finding.
func (m *Metrics) RecordFinding(ctx context.Context, severity string) {
	m.FindingsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
}

// RecordCollectorError increments CollectorErrors for a named source.
func (m *Metrics) RecordCollectorError(ctx context.Context, source string) {
	m.CollectorErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordIntegrationFailure increments IntegrationFailures for a named
// integration.
func (m *Metrics) RecordIntegrationFailure(ctx context.Context, name string) {
	m.IntegrationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("integration", name)))
}
