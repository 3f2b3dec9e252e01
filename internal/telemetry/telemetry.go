// Package telemetry wires recorder step scopes to OpenTelemetry spans,
// generalizing the teacher's span-per-operation pattern from HTTP/agent
// spans to step spans.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const DefaultServiceName = "tracecore"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// Config holds observability configuration for a single recorder process.
type Config struct {
	ServiceName  string
	Enabled      bool
	ExporterType string // "otlp", "stdout", or "none"
	OTLPEndpoint string
}

// InitFromEnv initializes tracing from standard OpenTelemetry environment
// variables (OTEL_SERVICE_NAME, OTEL_TRACES_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT).
func InitFromEnv() error {
	return Init(Config{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		Enabled:      getEnv("OTEL_TRACES_ENABLED", "true") == "true",
		ExporterType: getEnv("OTEL_TRACES_EXPORTER", "none"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	})
}

// Init configures the global tracer used by Tracer(). Passing
// ExporterType "none" (or Enabled=false) installs a no-op tracer, which is
// the right default for tests and for callers that haven't opted into
// tracing.
func Init(cfg Config) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if !cfg.Enabled || cfg.ExporterType == "none" || cfg.ExporterType == "" {
		tracer = otel.GetTracerProvider().Tracer(cfg.ServiceName)
		return nil
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return fmt.Errorf("telemetry: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return fmt.Errorf("telemetry: unknown exporter type %q", cfg.ExporterType)
	}
	if err != nil {
		return fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(cfg.ServiceName)
	log.Printf("telemetry: tracing initialized with %s exporter", cfg.ExporterType)
	return nil
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return tracerProvider.Shutdown(ctx)
}

// Tracer returns the process-wide tracer, defaulting to a no-op tracer if
// Init has not been called.
func Tracer() trace.Tracer {
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(DefaultServiceName)
	}
	return tracer
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
