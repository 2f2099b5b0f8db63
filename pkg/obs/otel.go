package obs

import (
	"context"
	"fmt"
	"resledger/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "resledger"

// InitTracer installs an OTLP/gRPC tracer provider for serviceName. With an
// empty endpoint the global no-op provider stays in place.
func InitTracer(ctx context.Context, log *logger.Logger, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		log.Debug("Tracing disabled, no OTLP endpoint configured")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		log.Warn("Failed to build tracing resource", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info("Tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}

// Tracer returns the process tracer. It resolves the global provider on every
// call so providers installed after package init are honoured.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
