package observability

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitTracing installs a batching OTLP/HTTP tracer provider. Spans from the
// HTTP middleware, desk events and store calls all go through it.
func InitTracing(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

var serviceName string

// SetServiceName overrides the OTEL_SERVICE_NAME lookup. Call it before the
// Init functions.
func SetServiceName(name string) {
	serviceName = name
}

// newResource describes this process to the OTLP backends.
func newResource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName()),
		),
	)
}

// ServiceName is the name set with SetServiceName, then OTEL_SERVICE_NAME,
// then "checkbook-calc".
func ServiceName() string {
	if serviceName != "" {
		return serviceName
	}
	name := os.Getenv("OTEL_SERVICE_NAME")
	if name == "" {
		name = "checkbook-calc"
	}
	return name
}
