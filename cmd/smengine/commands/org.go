package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/engine"
)

func newOrgCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(newOrgCreateCommand())
	return cmd
}

func newOrgCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Short:   "Create an organization and print its ID",
		Args:    cobra.ExactArgs(1),
		Example: `  smengine org create acme`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, eng *engine.Local) error {
				id, err := eng.CreateOrganization(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to create organization: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage machine access tokens",
	}
	cmd.AddCommand(newTokenCreateCommand())
	return cmd
}

func newTokenCreateCommand() *cobra.Command {
	var (
		orgID     string
		name      string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an access token and print it",
		Long: `Issue a machine access token for an organization.

The token is printed once and cannot be recovered afterwards.`,
		Example: `  smengine token create --org 6f1c... --name ci --expires-in 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := uuid.Parse(orgID)
			if err != nil {
				return fmt.Errorf("invalid organization ID %q: %w", orgID, err)
			}
			if expiresIn < 0 {
				return fmt.Errorf("--expires-in must not be negative")
			}

			return withEngine(cmd, func(ctx context.Context, eng *engine.Local) error {
				var expiresAt *time.Time
				if expiresIn > 0 {
					t := time.Now().UTC().Add(expiresIn)
					expiresAt = &t
				}

				token, err := eng.IssueAccessToken(ctx, org, name, expiresAt)
				if err != nil {
					return fmt.Errorf("failed to issue access token: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization ID")
	cmd.Flags().StringVar(&name, "name", "", "token name")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime, zero for no expiry")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
