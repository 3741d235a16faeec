// Package otel installs the process tracer provider and hands out tracers.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerPrefix = "github.com/louisbranch/tablesync/"

// Config selects the trace exporter. Nothing is exported until Endpoint is
// set.
type Config struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
	// SampleRatio is the share of root spans kept. Child spans follow
	// their parent's decision.
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func (c Config) exporting() bool {
	return c.Enabled && strings.TrimSpace(c.Endpoint) != ""
}

// Provider owns the tracer provider installed by Start. The zero value
// exports nothing and shuts down cleanly.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Start installs a batching OTLP/HTTP tracer provider for service and W3C
// trace context propagation. With an inactive cfg the global no-op provider
// stays in place.
func Start(ctx context.Context, service string, cfg Config, attrs ...attribute.KeyValue) (*Provider, error) {
	if !cfg.exporting() {
		return &Provider{}, nil
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.Endpoint)))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(append([]attribute.KeyValue{semconv.ServiceName(service)}, attrs...)...),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return &Provider{tp: tp}, nil
}

// Exporting reports whether spans leave the process.
func (p *Provider) Exporting() bool {
	return p != nil && p.tp != nil
}

// Shutdown flushes buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Exporting() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func sampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns a tracer scoped to a tablesync component.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(tracerPrefix + component)
}
