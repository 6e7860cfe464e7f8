package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used for invocation spans.
const TracerName = "github.com/flemzord/gasbox"

// ErrTracingConfig is returned for unusable tracing settings.
var ErrTracingConfig = errors.New("invalid tracing config")

// TracingConfig configures the OTLP/HTTP trace exporter.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Validate checks an enabled config.
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%w: endpoint is required when tracing is enabled", ErrTracingConfig))
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: sample_ratio must be within [0, 1], got %v", ErrTracingConfig, c.SampleRatio))
	}
	return errors.Join(errs...)
}

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

// SetupTracing returns a tracer provider for cfg. When tracing is disabled
// it returns a no-op provider and a no-op shutdown.
func SetupTracing(ctx context.Context, cfg TracingConfig, service, version string) (trace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
		)),
	)
	return tp, tp.Shutdown, nil
}
