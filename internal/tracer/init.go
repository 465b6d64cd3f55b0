package tracer

import (
	"context"
	"log"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const serviceName = "ai-tutor-be"

// InitTracer exports query-router and HTTP spans over OTLP HTTP when
// OTEL_ENABLED=true. OTEL_SAMPLE_RATIO sets the fraction of root traces kept.
// The returned function flushes pending spans.
func InitTracer(environment string) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if os.Getenv("OTEL_ENABLED") != "true" {
		log.Println("Tracing disabled (set OTEL_ENABLED=true to export spans)")
		return noop
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("Warning: OTLP exporter unavailable: %v (tracing disabled)", err)
		return noop
	}

	ratio := sampleRatio(os.Getenv("OTEL_SAMPLE_RATIO"))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(newResource(environment)),
	)

	otel.SetTracerProvider(tp)
	// Spans from an upstream gateway continue into the router
	otel.SetTextMapPropagator(propagation.TraceContext{})
	log.Printf("Tracing to %s (environment=%s, sample ratio=%.2f)", endpoint, environment, ratio)

	return tp.Shutdown
}

func newResource(environment string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.DeploymentEnvironmentKey.String(environment),
	)
}

// sampleRatio parses OTEL_SAMPLE_RATIO. Unset or invalid values sample everything.
func sampleRatio(raw string) float64 {
	if raw == "" {
		return 1
	}
	r, err := strconv.ParseFloat(raw, 64)
	if err != nil || r < 0 || r > 1 {
		log.Printf("Warning: ignoring OTEL_SAMPLE_RATIO=%q", raw)
		return 1
	}
	return r
}
