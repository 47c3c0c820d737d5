// Package observability provides OpenTelemetry-based metrics and tracing for
// the kernel: decision rates by outcome, gate failure counts, evaluation
// latency, and energy spend. Disabled providers are no-ops so the evaluation
// path never depends on a collector being reachable.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the telemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // gRPC endpoint, e.g. "localhost:4317"
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns telemetry defaults with export disabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "constitutional-kernel",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	}
}

// Provider manages the trace and metric providers for the kernel.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *slog.Logger

	decisionCounter metric.Int64Counter
	gateFailCounter metric.Int64Counter
	durationHist    metric.Float64Histogram
	energyHist      metric.Int64Histogram
}

// New creates a telemetry provider. With Enabled false every recording call
// is a no-op.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}
	if !config.Enabled {
		p.logger.InfoContext(ctx, "telemetry disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.tracerProvider)

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = otel.Tracer("constitutional-kernel")
	meter := otel.Meter("constitutional-kernel")

	if p.decisionCounter, err = meter.Int64Counter("kernel.decisions",
		metric.WithDescription("Decisions by overall outcome")); err != nil {
		return nil, err
	}
	if p.gateFailCounter, err = meter.Int64Counter("kernel.gate_failures",
		metric.WithDescription("Gate failures by gate ID")); err != nil {
		return nil, err
	}
	if p.durationHist, err = meter.Float64Histogram("kernel.evaluation_duration_ms",
		metric.WithDescription("Evaluation wall-clock duration")); err != nil {
		return nil, err
	}
	if p.energyHist, err = meter.Int64Histogram("kernel.energy_spent_tokens",
		metric.WithDescription("Energy tokens spent per evaluation")); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordDecision records one evaluation outcome.
func (p *Provider) RecordDecision(ctx context.Context, overall string, gatesFailed []int, energySpent int64, duration time.Duration) {
	if p.decisionCounter == nil {
		return
	}
	p.decisionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("overall", overall)))
	for _, id := range gatesFailed {
		p.gateFailCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("gate_id", id)))
	}
	p.durationHist.Record(ctx, float64(duration.Milliseconds()))
	p.energyHist.Record(ctx, energySpent)
}

// StartSpan begins an evaluation span when tracing is enabled.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name)
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
