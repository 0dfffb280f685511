package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	otelsdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps the OTel SDK trace provider this service installs as the
// global tracer, using go.opentelemetry.io/otel/sdk/trace directly rather
// than a hand-rolled span type, since the ecosystem already solves
// sampling, span export, and context propagation correctly.
type Tracer struct {
	provider *otelsdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer installs a TracerProvider with the given sampling ratio for
// root spans via TraceIDRatioBased (0 samples none, 1 samples everything;
// child spans follow their parent's decision) and registers it as the
// process-wide default via otel.SetTracerProvider.
func NewTracer(sampleRatio float64) *Tracer {
	sampler := otelsdktrace.ParentBased(otelsdktrace.TraceIDRatioBased(sampleRatio))
	provider := otelsdktrace.NewTracerProvider(otelsdktrace.WithSampler(sampler))
	otel.SetTracerProvider(provider)
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("unifi-reporter"),
	}
}

// StartSpan starts a span named name as a child of any span already present
// in ctx. Callers must call the returned trace.Span's End method.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// Shutdown flushes any buffered spans and releases provider resources. Call
// once during process shutdown.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
	}
	return nil
}
