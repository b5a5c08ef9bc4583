package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"otlp", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp"; c.Tracing.Endpoint = "localhost:4317" }, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, true},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }, true},
		{"sampling out of range", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, true},
		{"async audit without buffer", func(c *Config) { c.Audit.EnableAsync = true; c.Audit.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "debug", Format: "json"})

	logger.NewComponentLogger("gateway").WithCommand("secrets", "get").Debug("submitting")

	out := buf.String()
	for _, want := range []string{`"component":"gateway"`, `"resource":"secrets"`, `"operation":"get"`, `"message":"submitting"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"})
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %s", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() returned nil")
	}
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordCommandStarted("secrets", "get")
	m.RecordCommandCompleted("secrets", "get", "remote", time.Millisecond)
	m.RecordEngineCommand("secrets", "get", true, time.Millisecond)
	m.RecordLogin(false)
	m.RecordHTTPRequest("POST", "/v1/command", 200, time.Millisecond)

	var nilMetrics *Metrics
	nilMetrics.RecordCommandStarted("secrets", "get")

	if m.Registry() != nil {
		t.Error("disabled metrics should have no registry")
	}
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "smkit"})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordCommandStarted("projects", "list")
	m.RecordCommandCompleted("projects", "list", "", 2*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "smkit_gateway_commands_submitted_total") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}

func TestAuditPublisherAsync(t *testing.T) {
	ap := NewAuditPublisher(AuditConfig{Enabled: true, EnableAsync: true, BufferSize: 8})

	var mu sync.Mutex
	var got []string
	ap.Subscribe(func(e AuditEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type)
	})

	for _, typ := range []string{AuditSecretCreated, AuditSecretUpdated, AuditSecretDeleted} {
		if err := ap.Publish(AuditEvent{Type: typ}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ap.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Errorf("delivered %d events, want 3", len(got))
	}

	if err := ap.Publish(AuditEvent{Type: AuditLogin}); err == nil {
		t.Error("Publish() after Shutdown should fail")
	}
}

func TestAuditPublisherDisabled(t *testing.T) {
	ap := NewAuditPublisher(AuditConfig{})
	called := false
	ap.Subscribe(func(AuditEvent) { called = true })
	if err := ap.Publish(AuditEvent{Type: AuditLogin}); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("disabled publisher delivered an event")
	}
}
