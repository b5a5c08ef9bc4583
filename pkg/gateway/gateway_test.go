package gateway

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/sdkerr"
	"github.com/smkit/smkit/pkg/telemetry"
)

// recordingEngine returns a canned response and records every command.
type recordingEngine struct {
	mu       sync.Mutex
	commands []string
	response string
	err      error
}

func (e *recordingEngine) RunCommand(_ context.Context, command string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return e.response, e.err
}

func (e *recordingEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.commands)
}

var listCmd = protocol.Secrets{Command: protocol.SecretIdentifiersRequest{OrganizationID: uuid.New()}}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) expected error")
	}
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name     string
		response string
		engErr   error
		wantData string
		wantErr  error
		wantMsg  string
	}{
		{
			name:     "success",
			response: `{"success":true,"data":{"data":[]}}`,
			wantData: `{"data":[]}`,
		},
		{
			name:     "remote failure verbatim",
			response: `{"success":false,"errorMessage":"Secret not found"}`,
			wantErr:  sdkerr.ErrRemoteOperationFailed,
			wantMsg:  "Secret not found",
		},
		{
			name:     "remote failure without message",
			response: `{"success":false}`,
			wantErr:  sdkerr.ErrRemoteOperationFailed,
			wantMsg:  FailureMessage,
		},
		{
			name:     "remote failure with empty message",
			response: `{"success":false,"errorMessage":""}`,
			wantErr:  sdkerr.ErrRemoteOperationFailed,
			wantMsg:  FailureMessage,
		},
		{
			name:    "engine error",
			engErr:  errors.New("engine closed"),
			wantErr: sdkerr.ErrTransport,
		},
		{
			name:     "malformed body",
			response: `not json`,
			wantErr:  sdkerr.ErrTransport,
		},
		{
			name:     "success without data",
			response: `{"success":true}`,
			wantErr:  sdkerr.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &recordingEngine{response: tt.response, err: tt.engErr}
			g, err := New(eng, WithLogger(telemetry.NopLogger()))
			if err != nil {
				t.Fatal(err)
			}

			data, err := g.Submit(context.Background(), listCmd)
			if eng.calls() != 1 {
				t.Errorf("engine invoked %d times, want 1", eng.calls())
			}

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Submit() error = %v", err)
				}
				if string(data) != tt.wantData {
					t.Errorf("Submit() = %s, want %s", data, tt.wantData)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestSubmitWrapsEngineCause(t *testing.T) {
	cause := errors.New("connection refused")
	g, _ := New(&recordingEngine{err: cause})

	_, err := g.Submit(context.Background(), listCmd)
	if !errors.Is(err, cause) {
		t.Errorf("Submit() error = %v, want cause %v in chain", err, cause)
	}
}

func TestSubmitNilCommandNeverReachesEngine(t *testing.T) {
	eng := &recordingEngine{response: `{"success":true,"data":1}`}
	g, _ := New(eng)

	cmds := []protocol.Command{
		protocol.Secrets{},
		protocol.Secrets{Command: (*protocol.SecretGetRequest)(nil)},
		protocol.Projects{Command: (*protocol.ProjectGetRequest)(nil)},
	}
	for _, cmd := range cmds {
		_, err := g.Submit(context.Background(), cmd)
		if !sdkerr.IsTransport(err) {
			t.Fatalf("Submit(%#v) error = %v, want transport", cmd, err)
		}
	}
	if eng.calls() != 0 {
		t.Errorf("engine invoked %d times, want 0", eng.calls())
	}
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	eng := EngineFunc(func(ctx context.Context, _ string) (string, error) {
		<-release
		return `{"success":true,"data":"late"}`, nil
	})

	g, _ := New(eng, WithTimeout(20*time.Millisecond))

	_, err := g.Submit(context.Background(), listCmd)
	if !IsDeadline(err) {
		t.Fatalf("Submit() error = %v, want deadline transport error", err)
	}

	close(release)

	data, err := g.Submit(context.Background(), listCmd)
	if err != nil {
		t.Fatalf("Submit() after release error = %v", err)
	}
	if string(data) != `"late"` {
		t.Errorf("Submit() = %s", data)
	}
}

func TestSubmitCanceledContext(t *testing.T) {
	eng := &recordingEngine{response: `{"success":true,"data":1}`}
	g, _ := New(eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Submit(ctx, listCmd)
	if !sdkerr.IsTransport(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit() error = %v, want canceled transport error", err)
	}
	if eng.calls() != 0 {
		t.Errorf("engine invoked %d times, want 0", eng.calls())
	}
}

func TestSubmitSerializesEngineCalls(t *testing.T) {
	var active, maxActive int32
	eng := EngineFunc(func(ctx context.Context, _ string) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return `{"success":true,"data":true}`, nil
	})

	g, _ := New(eng)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Submit(context.Background(), listCmd); err != nil {
				t.Errorf("Submit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent engine calls = %d, want 1", maxActive)
	}
}

func TestSubmitRecordsMetrics(t *testing.T) {
	m, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatal(err)
	}
	g, _ := New(&recordingEngine{response: `{"success":false,"errorMessage":"nope"}`}, WithMetrics(m))

	_, _ = g.Submit(context.Background(), listCmd)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_gateway_command_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("command_errors_total not recorded")
	}
}

func TestSubmitLogsTraceID(t *testing.T) {
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: true, Exporter: "none", SamplingRate: 1}, "gateway-test", "test", "test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	var buf bytes.Buffer
	logger := telemetry.NewLoggerTo(&buf, telemetry.LoggingConfig{Level: "debug", Format: "json"})

	var seen string
	eng := EngineFunc(func(ctx context.Context, _ string) (string, error) {
		seen = telemetry.TraceID(ctx)
		return `{"success":true,"data":{"data":[]}}`, nil
	})
	g, _ := New(eng, WithTracer(tracer), WithLogger(logger))

	if _, err := g.Submit(context.Background(), listCmd); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(seen) {
		t.Fatalf("engine saw trace ID %q", seen)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"trace_id":"`+seen+`"`)) {
		t.Errorf("log does not carry the trace ID:\n%s", buf.String())
	}
}
