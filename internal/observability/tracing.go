// Package observability provides OpenTelemetry tracing setup.
//
// Traces are exported over OTLP HTTP to a local collector or agent. When no
// endpoint is configured, tracing is disabled and the returned shutdown is
// a no-op, so callers never need to branch on configuration.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/arcalabs/arca/internal/log"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP host:port. Empty disables tracing.
	Endpoint string
	// ServiceName appears as the APM service identity.
	ServiceName string
	// Environment tags spans with the deployment environment.
	Environment string
}

// Setup installs the global TracerProvider and returns a shutdown function
// that flushes pending spans. Export failures at setup time disable tracing
// rather than failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create OTLP exporter, tracing disabled", "error", err)
		return noop, nil
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		logger.Warn("failed to build trace resource, tracing disabled", "error", err)
		return noop, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
	return provider.Shutdown, nil
}
