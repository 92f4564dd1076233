// Package observability provides OpenTelemetry-based tracing and metrics
// for the UBL Gate pipeline, following the shape of the teacher's
// pkg/observability/observability.go: a Provider wrapping a
// TracerProvider/MeterProvider pair and RED metrics (Rate, Errors,
// Duration). Unlike the teacher, this Provider does not wire a concrete
// OTLP/gRPC exporter itself — a library-shaped pipeline core should not
// force a transport choice on its embedder, so New accepts a
// trace.SpanExporter/metric.Reader pair and only supplies defaults
// (no-op / stdout-free) when the caller passes nil.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the Provider.
type Config struct {
	ServiceName string
	Environment string
	Enabled     bool

	// SpanExporter and Reader are supplied by the embedding process; a
	// nil SpanExporter/Reader yields a provider with no span/metric
	// processors attached (spans and instruments still work, they just
	// have nowhere to export to) — useful for tests and for callers who
	// only want the Logger/Envelope half of this package.
	SpanExporter sdktrace.SpanExporter
	Reader       sdkmetric.Reader
}

// Provider bundles the tracer, meter, and RED instruments UBL Gate's
// pipeline phases (bind/parse/policy/render) record against.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram
	activeOperations metric.Int64UpDownCounter
}

// New builds a Provider. It never fails on a missing exporter/reader —
// only on the underlying OTel SDK rejecting the resource or instrument
// definitions.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "observability"),
	}

	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
			attribute.String("ublgate.component", "pipeline"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.SpanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(cfg.SpanExporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	p.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(p.tracerProvider)

	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Reader != nil {
		metricOpts = append(metricOpts, sdkmetric.WithReader(cfg.Reader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = p.tracerProvider.Tracer("ublgate.pipeline")
	p.meter = p.meterProvider.Meter("ublgate.pipeline")

	if err := p.initREDMetrics(); err != nil {
		return nil, fmt.Errorf("observability: RED metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized", "service", cfg.ServiceName, "environment", cfg.Environment)
	return p, nil
}

func (p *Provider) initREDMetrics() error {
	var err error
	if p.requestCounter, err = p.meter.Int64Counter("ublgate.requests.total",
		metric.WithDescription("Total pipeline phase invocations"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if p.errorCounter, err = p.meter.Int64Counter("ublgate.errors.total",
		metric.WithDescription("Total pipeline phase errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if p.durationHist, err = p.meter.Float64Histogram("ublgate.phase.duration",
		metric.WithDescription("Pipeline phase duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	); err != nil {
		return err
	}
	if p.activeOperations, err = p.meter.Int64UpDownCounter("ublgate.phase.active",
		metric.WithDescription("Currently in-flight pipeline phases"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and shuts down both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "trace provider shutdown failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "meter provider shutdown failed", "error", err)
		}
	}
	return nil
}

// TrackPhase starts a span named "ublgate.pipeline.<phase>" and returns a
// completion func that records RED metrics plus span status. tenantID and
// fingerprint are logged as structured attributes — never the receipt
// body itself.
func (p *Provider) TrackPhase(ctx context.Context, phase, tenantID, fingerprint string) (context.Context, func(error)) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("ublgate.phase", phase),
		attribute.String("ublgate.tenant_id", tenantID),
	}

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "ublgate.pipeline."+phase, trace.WithAttributes(attrs...))
	}
	if p.activeOperations != nil {
		p.activeOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if p.requestCounter != nil {
		p.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	logger := p.logger.With("phase", phase, "tenant_id", tenantID, "fingerprint", fingerprint)

	return ctx, func(err error) {
		duration := time.Since(start)
		if p.activeOperations != nil {
			p.activeOperations.Add(ctx, -1, metric.WithAttributes(attrs...))
		}
		if p.durationHist != nil {
			p.durationHist.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
		}
		if err != nil {
			if span != nil {
				span.RecordError(err)
			}
			if p.errorCounter != nil {
				p.errorCounter.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
			}
			logger.ErrorContext(ctx, "phase failed", "error", err, "duration_ms", duration.Milliseconds())
		} else {
			logger.InfoContext(ctx, "phase ok", "duration_ms", duration.Milliseconds())
		}
		if span != nil {
			span.End()
		}
	}
}

// NewRequestID mints a non-hashed, non-canonicalized identifier for
// observability envelopes (trace/request IDs) — never used as input to
// CID computation.
func NewRequestID() string {
	return uuid.NewString()
}
