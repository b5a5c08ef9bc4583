package remote

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/telemetry"
)

// Routes served by NewServer.
const (
	CommandPath = "/v1/command"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// SessionHeader carries the caller's session ID. The server issues one on
// the first request that lacks it; the client echoes it on every later
// request so its login is not shared with other callers.
const SessionHeader = "X-Engine-Session"

// DefaultMaxBodyBytes bounds a command body.
const DefaultMaxBodyBytes int64 = 1 << 20

const contentType = "application/json; charset=utf-8"

// ServerOptions configures the HTTP engine server.
type ServerOptions struct {
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics

	// MaxBodyBytes limits a command body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Timeout bounds each request. Zero disables the timeout middleware.
	Timeout time.Duration
}

type server struct {
	engine  gateway.Engine
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	maxBody int64
}

// NewServer returns a handler that runs commands on eng, each caller in
// its own session. The metrics endpoint is mounted only when opts carries
// an enabled collector.
func NewServer(eng gateway.Engine, opts ServerOptions) (http.Handler, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}

	s := &server{
		engine:  eng,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		maxBody: opts.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = telemetry.NopLogger()
	}
	s.logger = s.logger.NewComponentLogger("remote")
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.observe)
	r.Use(s.recoverer)
	if opts.Timeout > 0 {
		r.Use(chimiddleware.Timeout(opts.Timeout))
	}

	r.Get(HealthPath, s.health)
	r.Post(CommandPath, s.command)
	if s.metrics.Registry() != nil {
		r.Handle(MetricsPath, s.metrics.Handler())
	}

	return r, nil
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (s *server) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "command too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read command", http.StatusBadRequest)
		return
	}

	session := r.Header.Get(SessionHeader)
	if session == "" {
		session = uuid.NewString()
	} else if _, err := uuid.Parse(session); err != nil {
		http.Error(w, "invalid "+SessionHeader+" header", http.StatusBadRequest)
		return
	}
	w.Header().Set(SessionHeader, session)

	ctx := engine.WithSession(r.Context(), "http:"+session)
	response, err := s.engine.RunCommand(ctx, string(body))
	if err != nil {
		s.requestLogger(r).WithError(err).Warn("engine call failed")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, response)
}

func (s *server) requestLogger(r *http.Request) *telemetry.Logger {
	return s.logger.WithRequestID(chimiddleware.GetReqID(r.Context()))
}

// statusWriter captures the response status.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// observe logs each request and records it under its route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := telemetry.NewTimer()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		duration := timer.Duration()
		s.metrics.RecordHTTPRequest(r.Method, route, sw.status, duration)

		s.requestLogger(r).WithFields(map[string]interface{}{
			"method":      r.Method,
			"route":       route,
			"status":      sw.status,
			"size":        sw.size,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Debug("request completed")
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.requestLogger(r).WithField("panic", rec).Error("panic recovered")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
