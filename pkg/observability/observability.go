// Package observability wires OpenTelemetry tracing and metrics for ldwatch.
// When disabled, the global no-op providers are used and every call is safe.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/wonny/ldwatch/pkg/config"
)

const instrumentationName = "github.com/wonny/ldwatch"

// Provider manages OpenTelemetry trace and metric providers
// ⭐ SSOT: 트레이싱/메트릭 계측은 여기서만 생성
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	log            zerolog.Logger

	evaluations metric.Int64Counter
	breaches    metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
}

// New creates the provider from TELEMETRY settings
func New(ctx context.Context, cfg config.TelemetryConfig, env string, log zerolog.Logger) (*Provider, error) {
	p := &Provider{log: log.With().Str("component", "observability").Logger()}

	if !cfg.Enabled {
		p.log.Debug().Msg("observability disabled")
		if err := p.initInstruments(); err != nil {
			return nil, err
		}
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)

	if err := p.initInstruments(); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("service", cfg.ServiceName).
		Str("endpoint", cfg.OTLPEndpoint).
		Bool("insecure", cfg.Insecure).
		Msg("observability initialized")

	return p, nil
}

// Nop returns a provider backed by the global no-op implementations
func Nop() *Provider {
	p := &Provider{log: zerolog.Nop()}
	_ = p.initInstruments()
	return p
}

func (p *Provider) initInstruments() error {
	p.tracer = otel.Tracer(instrumentationName)
	p.meter = otel.Meter(instrumentationName)

	var err error
	if p.evaluations, err = p.meter.Int64Counter("ldwatch.evaluations.total",
		metric.WithDescription("Contract evaluations run"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return err
	}
	if p.breaches, err = p.meter.Int64Counter("ldwatch.breaches.total",
		metric.WithDescription("Breaches detected"),
		metric.WithUnit("{breach}"),
	); err != nil {
		return err
	}
	if p.failures, err = p.meter.Int64Counter("ldwatch.failures.total",
		metric.WithDescription("Per-clause or persistence failures"),
		metric.WithUnit("{failure}"),
	); err != nil {
		return err
	}
	p.duration, err = p.meter.Float64Histogram("ldwatch.evaluation.duration",
		metric.WithDescription("Evaluation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
	)
	return err
}

// Shutdown flushes and stops the providers
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.log.Error().Err(err).Msg("failed to shutdown trace provider")
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.log.Error().Err(err).Msg("failed to shutdown metric provider")
		}
	}
	return nil
}

// StartSpan starts a new span with the given name
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordEvaluation records one finished run
func (p *Provider) RecordEvaluation(ctx context.Context, d time.Duration, breaches, failures int, attrs ...attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	p.evaluations.Add(ctx, 1, opt)
	p.duration.Record(ctx, d.Seconds(), opt)
	if breaches > 0 {
		p.breaches.Add(ctx, int64(breaches), opt)
	}
	if failures > 0 {
		p.failures.Add(ctx, int64(failures), opt)
	}
}
