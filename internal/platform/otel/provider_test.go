package otel_test

import (
	"context"
	"os"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/louisbranch/shipwatch/internal/platform/otel"
)

// unsetenv clears keys for the test and restores them afterwards.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestParseSettings_Defaults(t *testing.T) {
	unsetenv(t, "SHIPWATCH_OTEL_ENDPOINT", "SHIPWATCH_OTEL_ENABLED", "SHIPWATCH_OTEL_SAMPLE_RATIO", "SHIPWATCH_ENVIRONMENT")

	settings, err := otel.ParseSettings()
	if err != nil {
		t.Fatalf("parse settings: %v", err)
	}
	if !settings.Enabled || settings.SampleRatio != 1 || settings.Environment != "development" {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.Active() {
		t.Fatal("tracing without an endpoint must be inactive")
	}
}

func TestParseSettings_RejectsRatioOutOfRange(t *testing.T) {
	unsetenv(t, "SHIPWATCH_OTEL_ENABLED")
	for _, ratio := range []string{"-0.1", "1.5", "half"} {
		t.Setenv("SHIPWATCH_OTEL_SAMPLE_RATIO", ratio)
		if _, err := otel.ParseSettings(); err == nil {
			t.Fatalf("ratio %q: expected error", ratio)
		}
	}
}

func TestSettings_Active(t *testing.T) {
	tests := map[string]struct {
		settings otel.Settings
		want     bool
	}{
		"endpoint set": {settings: otel.Settings{Enabled: true, Endpoint: "http://collector:4318"}, want: true},
		"disabled":     {settings: otel.Settings{Enabled: false, Endpoint: "http://collector:4318"}},
		"no endpoint":  {settings: otel.Settings{Enabled: true}},
	}
	for name, tc := range tests {
		if got := tc.settings.Active(); got != tc.want {
			t.Fatalf("%s: active = %v, want %v", name, got, tc.want)
		}
	}
}

func TestSettings_SamplerHonorsRatio(t *testing.T) {
	for _, tc := range []struct {
		ratio float64
		spans int
	}{{ratio: 0, spans: 0}, {ratio: 1, spans: 3}} {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(otel.Settings{SampleRatio: tc.ratio}.Sampler()),
			sdktrace.WithSpanProcessor(recorder),
		)
		tracer := tp.Tracer("test")
		for range 3 {
			_, span := tracer.Start(context.Background(), "decide")
			span.End()
		}
		if got := len(recorder.Ended()); got != tc.spans {
			t.Fatalf("ratio %v: spans = %d, want %d", tc.ratio, got, tc.spans)
		}
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestSettings_ResourceNamesService(t *testing.T) {
	res, err := otel.Settings{Environment: "staging"}.Resource(context.Background(), "shipwatch")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[string]string{
		string(semconv.ServiceNameKey):           "shipwatch",
		string(semconv.DeploymentEnvironmentKey): "staging",
		string(semconv.ServiceVersionKey):        "dev",
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s = %q, want %q", key, got[key], value)
		}
	}
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	unsetenv(t, "SHIPWATCH_OTEL_ENDPOINT", "SHIPWATCH_OTEL_ENABLED", "SHIPWATCH_OTEL_SAMPLE_RATIO")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	unsetenv(t, "SHIPWATCH_OTEL_SAMPLE_RATIO")
	t.Setenv("SHIPWATCH_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SHIPWATCH_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_FailsOnInvalidSettings(t *testing.T) {
	unsetenv(t, "SHIPWATCH_OTEL_ENABLED")
	t.Setenv("SHIPWATCH_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SHIPWATCH_OTEL_SAMPLE_RATIO", "2")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err == nil {
		t.Fatal("expected error for sample ratio above one")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable, so nothing is exported.
	unsetenv(t, "SHIPWATCH_OTEL_ENABLED")
	t.Setenv("SHIPWATCH_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("SHIPWATCH_OTEL_SAMPLE_RATIO", "0.5")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestTracerStartsSpans(t *testing.T) {
	ctx, span := otel.Tracer().Start(context.Background(), "evaluate")
	defer span.End()
	if ctx == nil || span == nil {
		t.Fatal("expected a usable span")
	}
}
