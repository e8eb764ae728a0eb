// Package tracing exports scheduler activity as OpenTelemetry traces: one
// root span per simulation run, a child span per task lifetime, and span
// events for interrupts. It exists for post-mortem timing analysis of a
// run, not for live monitoring.
package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const tracerName = "keel"

var (
	providerOnce sync.Once
	providerErr  error
	provider     *sdktrace.TracerProvider
)

// Init configures the global tracer provider with a stdout exporter. When
// outputFile is empty, spans go to os.Stdout. The first successful call
// wins; later calls return that result.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return InitWithExporter(serviceName, serviceVersion, exporter)
}

// InitWithExporter configures the global tracer provider with any span
// exporter the OpenTelemetry SDK supports.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider = tp
	})
	return providerErr
}

// Flush drains buffered spans to the exporter. Call it before reading the
// trace output; the batch processor exports on its own schedule otherwise.
func Flush(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.ForceFlush(ctx)
}
