// Package telemetry installs the OpenTelemetry tracer provider that registry spans are
// exported through.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies this program in exported traces.
const ServiceName = "propertyregistry"

// Options selects the exporter.
type Options struct {
	// Exporter is "none", "stdout" or "otlp".
	Exporter string
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318. Empty uses the
	// exporter's own default and OTEL_EXPORTER_OTLP_* variables.
	Endpoint string
	// Writer receives stdout exporter output.
	Writer io.Writer
}

// Setup installs a global tracer provider for opts and returns a shutdown function that
// flushes pending spans. With the "none" exporter nothing is installed and shutdown is a
// no-op.
func Setup(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	switch opts.Exporter {
	case "", "none":
		return noop, nil
	case "stdout":
		var stdoutOpts []stdouttrace.Option
		if opts.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err = stdouttrace.New(stdoutOpts...)
		if err != nil {
			return noop, fmt.Errorf("create stdout exporter: %w", err)
		}
	case "otlp":
		var httpOpts []otlptracehttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithEndpointURL(opts.Endpoint))
		}
		exporter, err = otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return noop, fmt.Errorf("create otlp exporter: %w", err)
		}
	default:
		return noop, fmt.Errorf("unsupported exporter type: %s", opts.Exporter)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(ServiceName)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
