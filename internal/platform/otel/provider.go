// Package otel wires OpenTelemetry tracing for shipwatch binaries.
package otel

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by readiness services.
const InstrumentationName = "github.com/louisbranch/shipwatch/readiness"

// Tracer returns the readiness tracer from the global provider. It is a
// no-op tracer until Setup registers an exporter.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Settings configures trace export. Tracing stays off until Endpoint is set.
type Settings struct {
	Enabled     bool    `env:"SHIPWATCH_OTEL_ENABLED" envDefault:"true"`
	Endpoint    string  `env:"SHIPWATCH_OTEL_ENDPOINT"`
	SampleRatio float64 `env:"SHIPWATCH_OTEL_SAMPLE_RATIO" envDefault:"1"`
	Environment string  `env:"SHIPWATCH_ENVIRONMENT" envDefault:"development"`
}

// ParseSettings reads Settings from the environment.
func ParseSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse otel settings: %w", err)
	}
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	if s.SampleRatio < 0 || s.SampleRatio > 1 {
		return Settings{}, fmt.Errorf("otel sample ratio %v must be within [0, 1]", s.SampleRatio)
	}
	return s, nil
}

// Active reports whether spans should be exported.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// Sampler samples root spans by trace ID ratio and follows the parent
// decision otherwise, so webhook-triggered decisions stay whole.
func (s Settings) Sampler() sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))
}

// Resource describes the running binary.
func (s Settings) Resource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(buildVersion()),
			semconv.DeploymentEnvironment(s.Environment),
		),
	)
}

// Setup registers a global tracer provider for serviceName from the
// environment. When tracing is inactive it registers nothing and the
// returned shutdown is a no-op. Callers defer shutdown to flush spans.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	settings, err := ParseSettings()
	if err != nil {
		return noop, err
	}
	if !settings.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := settings.Resource(ctx, serviceName)
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(settings.Sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
