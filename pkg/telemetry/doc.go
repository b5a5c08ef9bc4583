// Package telemetry provides the observability plumbing shared by the SDK
// client, the engine and the command-line tools.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry), Prometheus metrics and an audit event publisher.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "smengine"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
//	logger := tel.Logger.NewComponentLogger("gateway")
//	logger.WithCommand("secrets", "list").Debug("submitting command")
//
// Log levels: trace, debug, info, warn, error, fatal, disabled.
//
// # Tracing
//
// The gateway opens one client span per command and the engine one server
// span per executed command:
//
//	ctx, span := tel.Tracer.StartCommandSpan(ctx, "secrets", "get")
//	defer span.End()
//
// # Metrics
//
// Every Record method is a no-op on a disabled or nil *Metrics, so callers
// never need to guard them. Handler serves the registry over HTTP.
//
// # Audit
//
// The engine publishes an AuditEvent for every login and every secret or
// project mutation. NewTelemetry subscribes a logger to the publisher.
package telemetry
