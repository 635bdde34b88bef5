// Package telemetry wires OpenTelemetry tracing for the gateway binaries.
// Tracing stays off unless OTEL_EXPORTER_OTLP_ENDPOINT is set, so local
// runs pay nothing for it.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/atomhq/atomgw"

// endpointEnv is the standard OTLP endpoint variable. The exporter reads
// it on its own; we only use it as the on/off switch.
const endpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Setup installs a global tracer provider exporting OTLP over HTTP.
// When the endpoint variable is unset it installs nothing and the
// returned shutdown is a no-op.
func Setup(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	if os.Getenv(endpointEnv) == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// Tracer returns the tracer the gateway components share. It follows
// whatever provider Setup installed, or the global no-op one.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}
