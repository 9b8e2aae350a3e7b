// Package tracing provides OpenTelemetry tracing for supervised runs:
// span creation, trace ID propagation, and trace export.
package tracing

import (
	"context"
	"fmt"

	"corral/internal/log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// serviceName identifies corral in exported traces.
const serviceName = "corral"

// Config selects how run spans are exported.
type Config struct {
	Enabled      bool
	Exporter     string // none, file, stdout, otlp
	FilePath     string // for the file exporter
	OTLPEndpoint string // for the otlp exporter
	SampleRate   float64
}

// Provider hands out the tracer used for run spans and owns exporter
// shutdown. When tracing is disabled every span is a no-op.
type Provider struct {
	tracer trace.Tracer
	sdk    *sdktrace.TracerProvider
}

// NewProvider builds a provider for cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(serviceName)}, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}

	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1.0
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	sdk := sdktrace.NewTracerProvider(opts...)
	log.Debug(log.CatTrace, "Tracing enabled",
		"exporter", cfg.Exporter, "sampleRate", rate)
	return &Provider{tracer: sdk.Tracer(serviceName), sdk: sdk}, nil
}

// newExporter builds the span exporter for cfg. A nil exporter with a
// nil error means spans exist for correlation but are never exported.
func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file exporter: file_path required")
		}
		return NewFileExporter(cfg.FilePath)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure())
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported exporter %q", cfg.Exporter)
	}
}

// Tracer returns the tracer for creating run spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans and stops the exporter. Safe to call
// on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
