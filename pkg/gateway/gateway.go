// Package gateway owns the connection to a secrets engine and submits encoded
// commands to it, translating every failure into the sdkerr taxonomy.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/sdkerr"
	"github.com/smkit/smkit/pkg/telemetry"
)

// FailureMessage stands in for a failure response that carries no message.
const FailureMessage = "engine reported failure"

// Engine is the single synchronous entry point of a secrets engine. It takes
// one serialized command and returns one serialized response. An error means
// the call could not complete; a command the engine rejected is reported
// inside the response instead.
type Engine interface {
	RunCommand(ctx context.Context, command string) (string, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, command string) (string, error)

// RunCommand calls f.
func (f EngineFunc) RunCommand(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// Gateway submits commands to an Engine one at a time.
type Gateway struct {
	engine  Engine
	timeout time.Duration
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer

	// sem holds one token; the holder is the only in-flight engine call.
	sem chan struct{}
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout bounds every engine call. Zero means no deadline beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithLogger sets the logger. Only debug-level records are written.
func WithLogger(l *telemetry.Logger) Option {
	return func(g *Gateway) { g.logger = l.NewComponentLogger("gateway") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// New creates a gateway around engine. The engine handle is fixed for the
// life of the gateway.
func New(engine Engine, opts ...Option) (*Gateway, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	g := &Gateway{
		engine: engine,
		logger: telemetry.NopLogger(),
		tracer: telemetry.NoopTracer(),
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Submit encodes cmd, runs it on the engine and returns the raw data member
// of a successful response. A response with success=false becomes a remote
// error carrying the engine message verbatim; every other failure becomes a
// transport error. Nothing is retried.
func (g *Gateway) Submit(ctx context.Context, cmd protocol.Command) (json.RawMessage, error) {
	resource, operation := protocol.Tag(cmd)

	ctx, span := g.tracer.StartCommandSpan(ctx, resource, operation)
	defer span.End()

	timer := telemetry.NewTimer()
	g.metrics.RecordCommandStarted(resource, operation)

	data, err := g.submit(ctx, cmd)

	kind := string(sdkerr.KindOf(err))
	g.metrics.RecordCommandCompleted(resource, operation, kind, timer.Duration())
	if err != nil {
		span.SetAttributes(telemetry.AttrErrorKind.String(kind))
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}

	fields := map[string]interface{}{
		"duration_ms": timer.Duration().Milliseconds(),
		"outcome":     outcome(kind),
	}
	if id := telemetry.TraceID(ctx); id != "" {
		fields["trace_id"] = id
	}
	g.logger.WithCommand(resource, operation).WithFields(fields).Debug("command completed")

	return data, err
}

func (g *Gateway) submit(ctx context.Context, cmd protocol.Command) (json.RawMessage, error) {
	input, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return nil, sdkerr.Transport("failed to encode command", err)
	}

	output, err := g.run(ctx, input)
	if err != nil {
		return nil, sdkerr.Transport("engine call failed", err)
	}

	resp, err := protocol.DecodeResponse[json.RawMessage](output)
	if err != nil {
		return nil, sdkerr.Transport("failed to decode response", err)
	}

	if !resp.Success {
		msg := FailureMessage
		if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
			msg = *resp.ErrorMessage
		}
		return nil, sdkerr.Remote(msg)
	}

	if resp.Data == nil {
		return nil, sdkerr.Transport("failed to decode response", protocol.ErrMissingData)
	}
	return *resp.Data, nil
}

type result struct {
	output string
	err    error
}

// run invokes the engine, returning early if ctx or the configured timeout
// expires. An abandoned call keeps running on the engine side and keeps the
// gateway busy until it returns.
func (g *Gateway) run(ctx context.Context, input string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if ctx.Done() == nil {
		defer func() { <-g.sem }()
		return g.engine.RunCommand(ctx, input)
	}

	resultCh := make(chan result, 1)
	go func() {
		defer func() { <-g.sem }()
		out, err := g.engine.RunCommand(ctx, input)
		resultCh <- result{output: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-resultCh:
		return r.output, r.err
	}
}

func outcome(kind string) string {
	if kind == "" {
		return "success"
	}
	return kind
}

// IsDeadline reports whether err is a transport error caused by a deadline.
func IsDeadline(err error) bool {
	return sdkerr.IsTransport(err) && errors.Is(err, context.DeadlineExceeded)
}
