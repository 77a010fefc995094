package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewProviders_DisabledWithoutEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "   "} {
		p, err := NewProviders(context.Background(), Settings{Endpoint: endpoint, ServiceName: "bikecare-test"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q) left a provider nil: %+v", endpoint, p)
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"http://", "://bad url"} {
		if _, err := NewProviders(context.Background(), Settings{Endpoint: endpoint}); err == nil {
			t.Errorf("NewProviders(%q) succeeded, want error", endpoint)
		}
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := NewProviders(ctx, Settings{Endpoint: "localhost:4317", ServiceName: "bikecare-test", Environment: "test"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("providers not created")
	}
	sctx, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Shutdown(sctx)
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in     string
		target string
		secure bool
	}{
		{"localhost:4317", "localhost:4317", false},
		{"http://collector:4317", "collector:4317", false},
		{"https://collector:4317/v1/traces", "collector:4317", true},
		{"  otel.internal:4317  ", "otel.internal:4317", false},
	}
	for _, tc := range cases {
		target, secure, err := parseEndpoint(tc.in)
		if err != nil {
			t.Errorf("parseEndpoint(%q): %v", tc.in, err)
			continue
		}
		if target != tc.target || secure != tc.secure {
			t.Errorf("parseEndpoint(%q) = %q, %v; want %q, %v", tc.in, target, secure, tc.target, tc.secure)
		}
	}
	if _, _, err := parseEndpoint("https://"); err == nil {
		t.Error("parseEndpoint without host succeeded")
	}
}

func TestSetGlobal(t *testing.T) {
	prevTP, prevMP, prevProp := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		otel.SetTextMapPropagator(prevProp)
	})

	p, err := NewProviders(context.Background(), Settings{})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global tracer provider not set")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global meter provider not set")
	}
	if _, ok := otel.GetTextMapPropagator().(propagation.TraceContext); !ok {
		t.Errorf("propagator = %T, want propagation.TraceContext", otel.GetTextMapPropagator())
	}

	(&Providers{}).SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("SetGlobal with nil providers replaced the tracer provider")
	}
}

func TestShutdowns_ReturnsLastError(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	sd := shutdowns{
		func(context.Context) error { order = append(order, 1); return boom },
		func(context.Context) error { order = append(order, 2); return nil },
	}
	if err := sd.run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("run = %v, want boom", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("order = %v, want [2 1]", order)
	}
}
