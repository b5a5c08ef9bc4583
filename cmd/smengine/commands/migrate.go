package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/engine"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the engine database",
		Long: `Apply pending schema migrations and initialize the storage key.

Every command migrates on open, so this is only needed to prepare a database
ahead of time or to check that a passphrase matches it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Local) error {
				if err := eng.Store().HealthCheck(ctx); err != nil {
					return fmt.Errorf("database health check failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", dbPath)
				return nil
			})
		},
	}
}
