package main

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "pggensql"

func serviceResource() *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
}

// otlpURL joins an OTLP base endpoint such as http://localhost:4318 with the
// signal path.
func otlpURL(endpoint, path string) string {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimRight(endpoint, "/") + path
}

// initTracing installs a global tracer provider exporting spans over OTLP
// HTTP when otlpEndpoint is set. Otherwise the no-op default stays in place.
// Returns a shutdown function that flushes pending spans.
func initTracing(otlpEndpoint string) func() {
	if otlpEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpointURL(otlpURL(otlpEndpoint, "/v1/traces")),
	)
	if err != nil {
		slog.Error("Failed to create OTLP trace exporter, tracing disabled.", "error", err)
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource()),
	)
	otel.SetTracerProvider(provider)
	slog.Debug("OTLP tracing enabled.", "endpoint", otlpEndpoint)

	return func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Warn("Failed to flush traces.", "error", err)
		}
	}
}
