package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/telemetry"
)

// echoEngine answers with a fixed envelope and records what it received.
type echoEngine struct {
	mu       sync.Mutex
	received []string
	sessions []string
	response string
	err      error
}

func (e *echoEngine) RunCommand(ctx context.Context, command string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.received = append(e.received, command)
	e.sessions = append(e.sessions, engine.SessionID(ctx))
	return e.response, e.err
}

func newTestServer(t *testing.T, eng gateway.Engine, opts ServerOptions) *httptest.Server {
	t.Helper()
	h, err := NewServer(eng, opts)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(nil, ServerOptions{})
	assert.Error(t, err)
}

func TestCommandRoundTrip(t *testing.T) {
	eng := &echoEngine{response: `{"success":true,"data":"x"}`}
	srv := newTestServer(t, eng, ServerOptions{})

	client, err := NewClient(srv.URL+"/", ClientOptions{UserAgent: "remote-test"})
	require.NoError(t, err)
	defer client.Close()

	got, err := client.RunCommand(context.Background(), `{"generators":{}}`)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"data":"x"}`, got)
	assert.Equal(t, []string{`{"generators":{}}`}, eng.received)
}

func TestSessionHeader(t *testing.T) {
	eng := &echoEngine{response: `{"success":true}`}
	srv := newTestServer(t, eng, ServerOptions{})

	first, err := NewClient(srv.URL, ClientOptions{})
	require.NoError(t, err)
	second, err := NewClient(srv.URL, ClientOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	for _, c := range []*Client{first, first, second} {
		_, err := c.RunCommand(ctx, "{}")
		require.NoError(t, err)
	}

	require.Len(t, eng.sessions, 3)
	assert.True(t, strings.HasPrefix(eng.sessions[0], "http:"), eng.sessions[0])
	assert.Equal(t, eng.sessions[0], eng.sessions[1], "a client keeps its session")
	assert.NotEqual(t, eng.sessions[0], eng.sessions[2], "clients must not share a session")

	req, err := http.NewRequest(http.MethodPost, srv.URL+CommandPath, strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set(SessionHeader, "not-a-uuid")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, eng.sessions, 3)
}

func TestCommandEngineFailure(t *testing.T) {
	srv := newTestServer(t, &echoEngine{err: errors.New("engine is closed")}, ServerOptions{})

	client, err := NewClient(srv.URL, ClientOptions{})
	require.NoError(t, err)

	_, err = client.RunCommand(context.Background(), "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "engine is closed")
}

func TestCommandBodyLimit(t *testing.T) {
	eng := &echoEngine{response: "ok"}
	srv := newTestServer(t, eng, ServerOptions{MaxBodyBytes: 8})

	resp, err := http.Post(srv.URL+CommandPath, "application/json", strings.NewReader(strings.Repeat("a", 64)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Empty(t, eng.received)
}

func TestCommandMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &echoEngine{}, ServerOptions{})

	resp, err := http.Get(srv.URL + CommandPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &echoEngine{}, ServerOptions{})

	resp, err := http.Get(srv.URL + HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "remotetest"})
	require.NoError(t, err)

	srv := newTestServer(t, &echoEngine{response: "{}"}, ServerOptions{Metrics: metrics})
	client, err := NewClient(srv.URL, ClientOptions{})
	require.NoError(t, err)
	_, err = client.RunCommand(context.Background(), "{}")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), "remotetest_http_requests_total")
	assert.Contains(t, string(body), `route="/v1/command"`)
}

func TestMetricsEndpointAbsentWhenDisabled(t *testing.T) {
	srv := newTestServer(t, &echoEngine{}, ServerOptions{})

	resp, err := http.Get(srv.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoverer(t *testing.T) {
	panicking := gateway.EngineFunc(func(context.Context, string) (string, error) {
		panic("boom")
	})
	srv := newTestServer(t, panicking, ServerOptions{})

	resp, err := http.Post(srv.URL+CommandPath, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"no scheme", "localhost:8080"},
		{"ftp", "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.baseURL, ClientOptions{})
			assert.Error(t, err)
		})
	}
}

func TestClientClosed(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", ClientOptions{})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.RunCommand(context.Background(), "{}")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url, ClientOptions{})
	require.NoError(t, err)
	_, err = client.RunCommand(context.Background(), "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach engine")
}
