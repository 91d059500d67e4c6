package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// Tracer owns the process-wide tracer provider. The database clients start
// their spans through the global otel tracer, so installing a Tracer is all
// it takes to get per-statement spans exported.
type Tracer struct {
	tracer *trace.TracerProvider
	logger dbconn.Logger
}

// NewClient builds a tracer provider, installs it as the global provider
// together with the W3C trace-context and baggage propagators, and returns
// the Tracer wrapping it.
//
// Example:
//
//	t, err := tracer.NewClient(tracer.Config{
//	    ServiceName:  "etl-manager",
//	    AppEnv:       "staging",
//	    EnableExport: true,
//	}, log)
func NewClient(cfg Config, logger dbconn.Logger) (*Tracer, error) {
	var options []trace.TracerProviderOption

	if cfg.EnableExport {
		exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
		if err != nil {
			return nil, fmt.Errorf("cannot initiate tracer exporter: %w", err)
		}
		options = append(options, trace.WithBatcher(exporter))
	}

	options = append(options, trace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.AppEnv),
		attribute.String("environment", cfg.AppEnv),
	)))

	tp := trace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if logger != nil {
		logger.Info("Tracer initialized", nil, map[string]interface{}{
			"service": cfg.ServiceName,
			"export":  cfg.EnableExport,
		})
	}
	return &Tracer{tracer: tp, logger: logger}, nil
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.tracer == nil {
		return nil
	}
	return t.tracer.Shutdown(ctx)
}
