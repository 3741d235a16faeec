package otel

import (
	"context"
	"strings"
	"testing"
)

func TestStartWithoutEndpointExportsNothing(t *testing.T) {
	for _, cfg := range []Config{
		{Enabled: true, SampleRatio: 1},
		{Endpoint: "http://localhost:4318", Enabled: false, SampleRatio: 1},
		{Endpoint: "   ", Enabled: true},
	} {
		p, err := Start(context.Background(), "test-service", cfg)
		if err != nil {
			t.Fatalf("%+v: start: %v", cfg, err)
		}
		if p.Exporting() {
			t.Fatalf("%+v: expected no exporter", cfg)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Fatalf("%+v: shutdown: %v", cfg, err)
		}
	}
}

func TestStartWithEndpointExports(t *testing.T) {
	// Non-routable address so nothing is exported.
	p, err := Start(context.Background(), "test-service", Config{Endpoint: "http://192.0.2.1:4318", Enabled: true, SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.Exporting() {
		t.Fatal("expected exporter")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSamplerRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "root:AlwaysOnSampler"},
		{2, "root:AlwaysOnSampler"},
		{0, "root:AlwaysOffSampler"},
		{0.25, "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); !strings.Contains(got, tt.want) {
			t.Fatalf("sampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracerStartsSpans(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span == nil {
		t.Fatal("expected span")
	}
}
