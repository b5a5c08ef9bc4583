package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/config"
)

// profileEntry is one key of one profile, as listed by "config list".
type profileEntry struct {
	Name  string `json:"profile"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type profileList []profileEntry

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage profiles in the config file",
	}
	cmd.AddCommand(
		newConfigSetCommand(a),
		newConfigDeleteCommand(a),
		newConfigListCommand(a),
	)
	return cmd
}

func keyNames() string {
	keys := config.ProfileKeys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newConfigSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key of the selected profile",
		Long:  "Set a key of the selected profile. Keys: " + keyNames() + ".",
		Example: `  smctl config set server_base https://vault.example.com
  smctl --profile staging config set engine_url http://127.0.0.1:8787`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := config.ProfileKey(args[0])
			if key == config.KeyServerBase {
				if _, err := config.ProfileFromURL(args[1]); err != nil {
					return err
				}
			}
			if err := config.UpdateProfile(a.configFile, a.profile, key, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Set %s on profile %q\n", key, a.profile)
			return nil
		},
	}
}

func newConfigDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the selected profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteProfile(a.configFile, a.profile); err != nil {
				return fmt.Errorf("profile %q: %w", a.profile, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted profile %q\n", a.profile)
			return nil
		},
	}
}

func newConfigListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every profile and its keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configFile, false)
			if err != nil {
				return err
			}

			entries := profileList{}
			for _, name := range cfg.Names() {
				p := cfg.Profiles[name]
				for _, key := range config.ProfileKeys() {
					if v := p.Get(key); v != "" {
						entries = append(entries, profileEntry{Name: name, Key: string(key), Value: v})
					}
				}
			}
			return render(cmd.OutOrStdout(), a.output, entries)
		},
	}
}
