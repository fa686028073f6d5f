package observability

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultEndpoint = "localhost:4318"

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
}

type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider installs a global OTLP/HTTP tracer provider. When tracing
// is disabled the global no-op provider is left in place.
func NewTracerProvider(ctx context.Context, config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return &TracerProvider{}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = "mediafetch"
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create exporter")
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.Version),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
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

	return &TracerProvider{provider: provider}, nil
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}
