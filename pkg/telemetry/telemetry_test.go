package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad sampling", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = ""
		}, wantErr: true},
		{name: "missing namespace", mutate: func(c *Config) { c.Metrics.Namespace = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.NewComponentLogger("reporter").
		WithRunID("run-1").
		WithField("node", "web-01").
		Debug("recorded")

	out := buf.String()
	for _, want := range []string{`"component":"reporter"`, `"run_id":"run-1"`, `"node":"web-01"`, `"message":"recorded"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestMetricsRecording(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordRunStarted()
	m.RecordAction("file", "updated", 2*time.Second, true)
	m.RecordAction("file", "updated", time.Second, true)
	m.RecordAction("file", "unprocessed", 0, false)
	m.RecordError("permanent", "PROVIDER_FAILED")
	m.RecordRunFinished("failure", 3*time.Second)

	if got := testutil.ToFloat64(m.actionsRecorded.WithLabelValues("file", "updated")); got != 2 {
		t.Errorf("updated count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.actionsRecorded.WithLabelValues("file", "unprocessed")); got != 1 {
		t.Errorf("unprocessed count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.actionDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeRuns); got != 0 {
		t.Errorf("active runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("permanent", "PROVIDER_FAILED")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestDisabledMetricsAreNoops(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordRunStarted()
	m.RecordAction("file", "updated", time.Second, true)
	m.RecordRunFinished("success", time.Second)
	if m.Registry() != nil {
		t.Error("disabled metrics should have no registry")
	}
}

func TestSyncPublisherDeliversInOrder(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Resource) }, nil)
	for _, r := range []string{"a", "b", "c"} {
		if err := ep.PublishActionRecorded("run-1", ActionRecord{Resource: r, Status: "updated"}); err != nil {
			t.Fatal(err)
		}
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("unexpected delivery order %v", got)
	}
}

func TestAsyncPublisherDrainsOnShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, EnableAsync: true, BufferSize: 16})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	ep.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.RunID)
	}, FilterByType(EventTypeRunFailed))

	_ = ep.PublishRunStarted("run-1", "node")
	_ = ep.PublishRunFailed("run-1", "boom", nil)
	_ = ep.PublishRunFailed("run-2", "boom", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "run-1,run-2" {
		t.Errorf("unexpected events %v", got)
	}
	if err := ep.PublishRunStarted("run-3", "node"); err != ErrPublisherStopped {
		t.Errorf("expected ErrPublisherStopped, got %v", err)
	}
}

func TestDisabledTracerRecordsNothing(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "test", "dev", "test")
	if err != nil {
		t.Fatal(err)
	}
	_, span := tr.StartRunSpan(context.Background(), "run-1")
	defer span.End()
	if span.IsRecording() {
		t.Error("disabled tracer should not record")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestWrapTracerResourceSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := WrapTracer(tp.Tracer("test"))

	if got := TraceID(context.Background()); got != "" {
		t.Errorf("expected no trace ID outside a span, got %q", got)
	}

	ctx, span := tr.StartResourceSpan(context.Background(), "file[/etc/motd]", "file", "create")
	if TraceID(ctx) == "" {
		t.Error("expected a trace ID inside a span")
	}
	RecordError(span, errors.New("disk full"))
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != "resource.create" {
		t.Fatalf("unexpected spans %v", ended)
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("wrapped tracer owns no provider, Shutdown should be a no-op: %v", err)
	}
}
