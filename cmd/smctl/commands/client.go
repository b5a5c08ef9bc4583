package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/config"
	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/remote"
	"github.com/smkit/smkit/pkg/sdk"
	"github.com/smkit/smkit/pkg/stores"
	"github.com/smkit/smkit/pkg/telemetry"
)

// newLogger writes to stderr at $LOG_LEVEL, warn by default.
func newLogger() *telemetry.Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return telemetry.NewLoggerTo(os.Stderr, telemetry.LoggingConfig{Level: level, Format: "console"})
}

var errMissingAccessToken = errors.New("missing access token, pass --access-token or set $" + envAccessToken)

// session is an SDK client bound to an engine for one command.
type session struct {
	client  *sdk.Client
	profile config.Profile
	closer  io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// loadProfile resolves the active profile. A missing profile yields an empty one.
func (a *app) loadProfile(cmd *cobra.Command) (config.Profile, error) {
	cfg, err := config.Load(a.configFile, false)
	if err != nil {
		return config.Profile{}, err
	}

	explicit := cmd.Flags().Changed("profile") || os.Getenv(envProfile) != ""
	p, err := cfg.SelectProfile(a.profile, explicit)
	if err != nil {
		return config.Profile{}, fmt.Errorf("profile %q: %w", a.profile, err)
	}
	if p == nil {
		return config.Profile{}, nil
	}
	return *p, nil
}

func (a *app) settings(p config.Profile) (config.Settings, error) {
	if a.serverURL != "" {
		fromURL, err := config.ProfileFromURL(a.serverURL)
		if err != nil {
			return config.Settings{}, err
		}
		return config.SettingsFromProfile(fromURL)
	}
	if p.ServerBase != "" || (p.ServerAPI != "" && p.ServerIdentity != "") {
		return config.SettingsFromProfile(p)
	}
	return config.DefaultSettings(), nil
}

// dial picks the engine transport: an HTTP engine, a spawned engine process
// or the local database. ephemeral replaces the local database with a
// throwaway in-memory engine for commands that keep no state.
func (a *app) dial(ctx context.Context, p config.Profile, settings config.Settings, ephemeral bool) (gateway.Engine, io.Closer, error) {
	engineURL := a.engineURL
	if engineURL == "" {
		engineURL = p.EngineURL
	}

	switch {
	case engineURL != "":
		log.Debug().Str("url", engineURL).Msg("Using HTTP engine")
		c, err := remote.NewClient(engineURL, remote.ClientOptions{UserAgent: settings.UserAgent})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	case a.engineBin != "":
		log.Debug().Str("bin", a.engineBin).Msg("Spawning engine")
		c, err := remote.StartProcess(ctx, remote.ProcessConfig{
			Path:   a.engineBin,
			Args:   []string{"serve", "--stdio", "--db", a.dbPath, "--log-level", "warn"},
			Stderr: os.Stderr,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}

	path, passphrase := a.dbPath, os.Getenv(envPassphrase)
	if ephemeral {
		path, passphrase = stores.MemoryPath, randomPassphrase()
	} else if passphrase == "" {
		return nil, nil, fmt.Errorf("the local engine needs $%s, or use --engine-url", envPassphrase)
	}

	log.Debug().Str("db", path).Msg("Opening local engine")
	eng, err := engine.OpenLocal(ctx, path, engine.Config{
		Settings:   settings.ClientSettings(),
		Passphrase: passphrase,
		Logger:     newLogger(),
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, eng, nil
}

// connect opens a client without logging in.
func (a *app) connect(cmd *cobra.Command, ephemeral bool) (*session, error) {
	p, err := a.loadProfile(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := a.settings(p)
	if err != nil {
		return nil, err
	}

	transport, closer, err := a.dial(cmd.Context(), p, settings, ephemeral)
	if err != nil {
		return nil, err
	}

	client, err := sdk.NewClient(transport,
		sdk.WithSettings(settings),
		sdk.WithGatewayOptions(gateway.WithTimeout(a.timeout), gateway.WithLogger(newLogger())),
	)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	return &session{client: client, profile: p, closer: closer}, nil
}

// login opens a client and authenticates it with the access token. The
// session is cached in the profile's state directory unless it opts out.
func (a *app) login(cmd *cobra.Command) (*session, error) {
	if a.accessToken == "" {
		return nil, errMissingAccessToken
	}
	token, err := engine.ParseAccessToken(a.accessToken)
	if err != nil {
		return nil, err
	}

	s, err := a.connect(cmd, false)
	if err != nil {
		return nil, err
	}

	var stateFile *string
	if path := s.profile.StatePath(token.ID.String()); path != "" {
		if err := ensureParentDir(path); err != nil {
			log.Warn().Err(err).Msg("Session state disabled")
		} else {
			stateFile = &path
		}
	}

	if _, err := s.client.Auth().LoginAccessToken(cmd.Context(), a.accessToken, stateFile); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// organization returns the organization from the flag or the profile.
func (a *app) organization(p config.Profile) (uuid.UUID, error) {
	raw := a.organizationID
	if raw == "" {
		raw = p.OrganizationID
	}
	if raw == "" {
		return uuid.Nil, errors.New("an organization ID is required, pass --organization-id or set organization_id in the profile")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid organization ID %q: %w", raw, err)
	}
	return id, nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0700)
}

func randomPassphrase() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
