package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/config"
	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/telemetry"
)

const passphraseEnv = "SMENGINE_PASSPHRASE"

var (
	// Global flags
	dbPath     string
	logLevel   string
	logFormat  string
	passphrase string

	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	if version != "" {
		appVersion = version
	}
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smengine",
		Short: "smkit secrets engine",
		Long: `smengine hosts a secrets engine backed by a local SQLite database.

It serves the engine command protocol over HTTP or stdio and administers
the organizations and access tokens that clients log in with.

The storage passphrase is read from $` + passphraseEnv + ` unless --passphrase is given.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDB := filepath.Join(config.DataDir(), "engine.db")
	if v := os.Getenv("SMENGINE_DB"); v != "" {
		defaultDB = v
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "engine database path ($SMENGINE_DB)")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "storage passphrase ($"+passphraseEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "engine log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "engine log format (console, json)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newOrgCommand())
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

// telemetryConfig returns the base telemetry configuration for this process.
func telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "smengine"
	cfg.ServiceVersion = appVersion
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	cfg.Metrics.Enabled = false
	return cfg
}

func resolvePassphrase() (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if v := os.Getenv(passphraseEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("a storage passphrase is required, set $%s or --passphrase", passphraseEnv)
}

// openEngine opens the engine database with the given telemetry. Named
// sessions idle for longer than idle are dropped; zero keeps them.
func openEngine(ctx context.Context, tel *telemetry.Telemetry, idle time.Duration) (*engine.Local, error) {
	pass, err := resolvePassphrase()
	if err != nil {
		return nil, err
	}

	eng, err := engine.OpenLocal(ctx, dbPath, engine.Config{
		Passphrase: pass,
		Logger:     tel.Logger,
		Metrics:    tel.Metrics,
		Tracer:     tel.Tracer,
		Audit:      tel.Audit,

		SessionIdleTimeout: idle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open engine at %s: %w", dbPath, err)
	}
	return eng, nil
}

// withEngine runs fn against an engine opened with default telemetry.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, eng *engine.Local) error) error {
	ctx := cmd.Context()

	tel, err := telemetry.NewTelemetry(telemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	eng, err := openEngine(ctx, tel, 0)
	if err != nil {
		return err
	}
	defer eng.Close()

	return fn(ctx, eng)
}
