// Package tracing wires OpenTelemetry spans around MCP tool calls and the
// Confluence requests they make.
package tracing

import (
	"context"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "confluence-mcp-server"

const (
	envEnabled     = "OTEL_ENABLED"
	envEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envEnvironment = "OTEL_ENVIRONMENT"
	envSampleRate  = "OTEL_SAMPLE_RATE"
)

// Config selects the exporter and sampling. Tracing is off unless Enabled.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	OTLPEndpoint   string // empty exports to stderr
	SampleRate     float64
}

// DefaultConfig reads the OTEL_* environment. Setting an OTLP endpoint
// enables tracing on its own.
func DefaultConfig() Config {
	endpoint := os.Getenv(envEndpoint)
	return Config{
		ServiceName:    TracerName,
		ServiceVersion: "1.0.0",
		Environment:    envOr(envEnvironment, "development"),
		Enabled:        os.Getenv(envEnabled) == "true" || endpoint != "",
		OTLPEndpoint:   endpoint,
		SampleRate:     envFloat(envSampleRate, 1.0),
	}
}

// Setup installs a global tracer provider and returns its shutdown func.
// When tracing is disabled the shutdown func is a no-op.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// stdout belongs to the MCP stdio transport, so console spans go to stderr.
func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint != "" {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	}
	return stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the server's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AddToolAttributes tags a tool-call span.
func AddToolAttributes(span trace.Span, toolName, category string) {
	span.SetAttributes(
		attribute.String("mcp.tool.name", toolName),
		attribute.String("mcp.tool.category", category),
	)
}

// AddConfluenceAttributes tags an upstream request span with the API surface
// (v1 or v2), the adapter action and the HTTP method.
func AddConfluenceAttributes(span trace.Span, surface, action, method string) {
	span.SetAttributes(
		attribute.String("confluence.api.surface", surface),
		attribute.String("http.request.method", method),
	)
	if action != "" {
		span.SetAttributes(attribute.String("confluence.api.action", action))
	}
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}
