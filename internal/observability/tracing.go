// Package observability wires OpenTelemetry tracing: spans from the genkit
// runtime are exported over OTLP HTTP to a local collector.
package observability

import (
	"context"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/uplift-ai/uplift/internal/log"
)

// DefaultEndpoint is the conventional local OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector address, host:port.
	Endpoint string
	// ServiceName tags exported spans.
	ServiceName string
}

// Setup registers an OTLP exporter on genkit's tracer provider. The returned
// shutdown flushes pending spans; callers wire it into app close. A collector
// that cannot be reached disables tracing with a warning instead of failing
// startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled", "endpoint", endpoint, "service", cfg.ServiceName)
	return tracing.TracerProvider().Shutdown, nil
}
