package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/config"
)

// Environment variables read as flag defaults.
const (
	envAccessToken    = "SMCTL_ACCESS_TOKEN"
	envConfigFile     = "SMCTL_CONFIG_FILE"
	envProfile        = "SMCTL_PROFILE"
	envServerURL      = "SMCTL_SERVER_URL"
	envOrganizationID = "SMCTL_ORGANIZATION_ID"
	envEngineURL      = "SMCTL_ENGINE_URL"
	envEngineBin      = "SMCTL_ENGINE_BIN"
	envDB             = "SMENGINE_DB"
	envPassphrase     = "SMENGINE_PASSPHRASE"
)

// app carries the global flags of one command invocation.
type app struct {
	accessToken    string
	configFile     string
	profile        string
	serverURL      string
	organizationID string
	engineURL      string
	engineBin      string
	dbPath         string
	output         string
	colorMode      string
	timeout        time.Duration
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "smctl",
		Short: "Command-line client for the smkit secrets engine",
		Long: `smctl manages secrets and projects through the smkit SDK.

By default it opens the local engine database directly. Point it at a running
engine with --engine-url, or have it spawn one with --engine-bin.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.colorMode {
			case "yes":
				color.NoColor = false
			case "no":
				color.NoColor = true
			case "auto":
			default:
				return fmt.Errorf("invalid --color %q, expected yes, no or auto", a.colorMode)
			}
			if !validOutput(a.output) {
				return fmt.Errorf("invalid --output %q, expected one of %v", a.output, outputFormats)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.accessToken, "access-token", "t", os.Getenv(envAccessToken), "machine access token ($"+envAccessToken+")")
	flags.StringVarP(&a.configFile, "config-file", "f", os.Getenv(envConfigFile), "profile file (default "+config.DefaultPath()+")")
	flags.StringVarP(&a.profile, "profile", "p", envOr(envProfile, config.DefaultProfile), "profile name ($"+envProfile+")")
	flags.StringVarP(&a.serverURL, "server-url", "u", os.Getenv(envServerURL), "server base URL, overrides the profile ($"+envServerURL+")")
	flags.StringVar(&a.organizationID, "organization-id", os.Getenv(envOrganizationID), "organization ID, overrides the profile ($"+envOrganizationID+")")
	flags.StringVar(&a.engineURL, "engine-url", os.Getenv(envEngineURL), "HTTP engine URL, overrides the profile ($"+envEngineURL+")")
	flags.StringVar(&a.engineBin, "engine-bin", os.Getenv(envEngineBin), "spawn this smengine binary in --stdio mode ($"+envEngineBin+")")
	flags.StringVar(&a.dbPath, "db", envOr(envDB, filepath.Join(config.DataDir(), "engine.db")), "local engine database ($"+envDB+")")
	flags.StringVarP(&a.output, "output", "o", "json", fmt.Sprintf("output format %v", outputFormats))
	flags.StringVarP(&a.colorMode, "color", "c", "auto", "colorize output (yes, no, auto)")
	flags.DurationVar(&a.timeout, "timeout", 0, "give up on an engine call after this long (0 waits indefinitely)")

	rootCmd.AddCommand(newSecretCommand(a))
	rootCmd.AddCommand(newProjectCommand(a))
	rootCmd.AddCommand(newGenerateCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
