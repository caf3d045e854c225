package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	coremetrics "github.com/tigerroll/cascade/pkg/pipeline/core/metrics"
	"github.com/tigerroll/cascade/pkg/pipeline/support/logger"
)

// serviceName identifies the pipeline in exported telemetry.
const serviceName = "cascade-pipeline"

// OTelConfig selects the OTLP transport and endpoint.
// An empty endpoint disables export; spans are still created locally.
type OTelConfig struct {
	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string
	// Protocol is "grpc" or "http".
	Protocol string
}

// OTelProvider owns the OpenTelemetry tracer and meter providers and their
// OTLP exporters.
type OTelProvider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         oteltrace.Tracer

	// jobCounter mirrors the terminal-status counter into OTel metrics,
	// exercising the metric export path alongside Prometheus.
	jobCounter otelmetric.Int64Counter
}

// NewOTelProvider initializes the OTel SDK with OTLP exporters.
func NewOTelProvider(ctx context.Context, cfg OTelConfig) (*OTelProvider, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.Endpoint != "" {
		switch cfg.Protocol {
		case "http":
			traceExp, err := otlptracehttp.New(ctx,
				otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
			if err != nil {
				return nil, fmt.Errorf("failed to create otlp http trace exporter: %w", err)
			}
			metricExp, err := otlpmetrichttp.New(ctx,
				otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
			if err != nil {
				return nil, fmt.Errorf("failed to create otlp http metric exporter: %w", err)
			}
			tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExp))
			mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
		default:
			traceExp, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
			if err != nil {
				return nil, fmt.Errorf("failed to create otlp grpc trace exporter: %w", err)
			}
			metricExp, err := otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
			if err != nil {
				return nil, fmt.Errorf("failed to create otlp grpc metric exporter: %w", err)
			}
			tpOpts = append(tpOpts, sdktrace.WithBatcher(traceExp))
			mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
		}
	}

	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	meterProvider := sdkmetric.NewMeterProvider(mpOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(serviceName)
	jobCounter, err := meter.Int64Counter("pipeline.jobs",
		otelmetric.WithDescription("Upload jobs by terminal status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create otel job counter: %w", err)
	}

	logger.Infof("OpenTelemetry initialized (endpoint=%q, protocol=%q).", cfg.Endpoint, cfg.Protocol)
	return &OTelProvider{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracerProvider.Tracer(serviceName),
		jobCounter:     jobCounter,
	}, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}

// CountJob records one terminal job status into the OTel metric stream.
func (p *OTelProvider) CountJob(ctx context.Context, status string) {
	p.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
}

// OTelTracer implements coremetrics.Tracer over the OTel SDK.
type OTelTracer struct {
	provider *OTelProvider
}

// NewOTelTracer creates a tracer over the given provider.
func NewOTelTracer(provider *OTelProvider) *OTelTracer {
	return &OTelTracer{provider: provider}
}

// StartSpan implements coremetrics.Tracer.
func (t *OTelTracer) StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := t.provider.tracer.Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

var _ coremetrics.Tracer = (*OTelTracer)(nil)
