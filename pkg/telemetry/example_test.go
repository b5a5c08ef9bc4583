package telemetry_test

import (
	"context"
	"fmt"
	"os"

	"github.com/smkit/smkit/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "smengine"
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("engine started")

	// Output varies, no output specified
}

// Example_auditEvents demonstrates synchronous audit delivery.
func Example_auditEvents() {
	audit := telemetry.NewAuditPublisher(telemetry.AuditConfig{Enabled: true})
	audit.Subscribe(func(event telemetry.AuditEvent) {
		fmt.Println(event.Type, event.ResourceID)
	})

	_ = audit.Publish(telemetry.AuditEvent{
		Type:       telemetry.AuditSecretCreated,
		ResourceID: "6a1b2c3d-0000-4000-8000-000000000001",
		Message:    "secret created",
	})

	// Output: secret.created 6a1b2c3d-0000-4000-8000-000000000001
}

// Example_structuredLogging demonstrates command-scoped logging.
func Example_structuredLogging() {
	logger := telemetry.NewLoggerTo(os.Stdout, telemetry.LoggingConfig{
		Level:  "debug",
		Format: "json",
	})

	logger.NewComponentLogger("gateway").
		WithCommand("secrets", "list").
		Debug("submitting command")

	// Output varies, no output specified
}
