package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitOpenTelemetry initializes OpenTelemetry, exporting spans to the OTLP
// gRPC collector named by OTEL_EXPORTER_OTLP_ENDPOINT.
func InitOpenTelemetry(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(shutdownCtx context.Context) error {
		if err := tracerProvider.ForceFlush(shutdownCtx); err != nil {
			return fmt.Errorf("failed to flush spans: %w", err)
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

// InitOpenTelemetryOrNoop initializes OpenTelemetry or uses noop if unavailable
func InitOpenTelemetryOrNoop(ctx context.Context, serviceName, serviceVersion string) func(context.Context) error {
	shutdown, err := InitOpenTelemetry(ctx, serviceName, serviceVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: OpenTelemetry initialization failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with noop tracer (no traces will be exported)\n")
		return func(context.Context) error { return nil }
	}

	fmt.Printf("✅ OpenTelemetry initialized (exporting to %s)\n", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	return shutdown
}
