package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/remote"
	"github.com/smkit/smkit/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		addr           string
		stdio          bool
		metrics        bool
		traceExporter  string
		otlpEndpoint   string
		requestTimeout time.Duration
		maxBody        int64
		sessionIdle    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine command protocol",
		Long: `Serve the engine over HTTP, or over stdin/stdout with --stdio.

Over HTTP, commands are posted to /v1/command. Every client gets its own
session through the X-Engine-Session header. /healthz reports liveness and
/metrics exposes Prometheus metrics unless --metrics=false.`,
		Example: `  # Serve on the default address
  smengine serve

  # Speak the stream protocol on stdin/stdout (used by smctl --engine-bin)
  smengine serve --stdio

  # Export spans to an OTLP collector
  smengine serve --trace-exporter otlp --otlp-endpoint localhost:4317`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdio && traceExporter == "stdout" {
				return errors.New("--trace-exporter stdout cannot be combined with --stdio")
			}

			cfg := telemetryConfig()
			cfg.Metrics.Enabled = metrics && !stdio
			if traceExporter != "" && traceExporter != "none" {
				cfg.Tracing.Enabled = true
				cfg.Tracing.Exporter = traceExporter
				cfg.Tracing.Endpoint = otlpEndpoint
			}

			tel, err := telemetry.NewTelemetry(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tel.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Telemetry shutdown failed")
				}
			}()

			ctx := cmd.Context()
			eng, err := openEngine(ctx, tel, sessionIdle)
			if err != nil {
				return err
			}
			defer eng.Close()

			if stdio {
				return remote.Serve(ctx, eng, os.Stdin, os.Stdout, tel.Logger)
			}

			handler, err := remote.NewServer(eng, remote.ServerOptions{
				Logger:       tel.Logger,
				Metrics:      tel.Metrics,
				MaxBodyBytes: maxBody,
				Timeout:      requestTimeout,
			})
			if err != nil {
				return err
			}
			return serveHTTP(ctx, addr, handler)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "HTTP listen address")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve the stream protocol on stdin/stdout")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose Prometheus metrics on /metrics")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint (host:port)")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", 30*time.Second, "per-request timeout")
	cmd.Flags().Int64Var(&maxBody, "max-body-bytes", remote.DefaultMaxBodyBytes, "maximum command size")
	cmd.Flags().DurationVar(&sessionIdle, "session-idle-timeout", time.Hour, "drop client sessions unused for this long (0 keeps them)")

	return cmd
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Engine listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
