package telemetry

import (
	"context"
	"errors"
)

// Telemetry bundles the logger, tracer, metrics and audit publisher of a process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Audit   *AuditPublisher
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	audit := NewAuditPublisher(cfg.Audit)
	audit.Subscribe(LogSubscriber(logger.NewComponentLogger("audit")))

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Audit:   audit,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry logger to the context, where FromContext
// finds it.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(ctx)
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Audit.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
	)
}
