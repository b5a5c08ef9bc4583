package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/protocol"
)

func newSecretCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "secret",
		Aliases: []string{"secrets", "s"},
		Short:   "Manage secrets",
	}
	cmd.AddCommand(
		newSecretGetCommand(a),
		newSecretListCommand(a),
		newSecretCreateCommand(a),
		newSecretEditCommand(a),
		newSecretDeleteCommand(a),
		newSecretSyncCommand(a),
	)
	return cmd
}

func newSecretGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <secret-id>",
		Short: "Show one secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid secret ID %q: %w", args[0], err)
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			secret, err := s.client.Secrets().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, secret)
		},
	}
}

func newSecretListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [project-id]",
		Short: "List the secrets of the organization, optionally only those in a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var project *uuid.UUID
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid project ID %q: %w", args[0], err)
				}
				project = &id
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			org, err := a.organization(s.profile)
			if err != nil {
				return err
			}
			identifiers, err := s.client.Secrets().List(ctx, org)
			if err != nil {
				return err
			}

			secrets := []protocol.SecretResponse{}
			if len(identifiers.Data) > 0 {
				ids := make([]uuid.UUID, 0, len(identifiers.Data))
				for _, ident := range identifiers.Data {
					ids = append(ids, ident.ID)
				}
				full, err := s.client.Secrets().GetByIDs(ctx, ids)
				if err != nil {
					return err
				}
				for _, secret := range full.Data {
					if project == nil || (secret.ProjectID != nil && *secret.ProjectID == *project) {
						secrets = append(secrets, secret)
					}
				}
			}
			return render(cmd.OutOrStdout(), a.output, secrets)
		},
	}
}

func newSecretCreateCommand(a *app) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "create <key> <value> [project-id]",
		Short: "Create a secret",
		Long: `Create a secret. When a project is given the secret belongs to the
project's organization; otherwise --organization-id or the profile decides.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var projectIDs []uuid.UUID
			if len(args) == 3 {
				id, err := uuid.Parse(args[2])
				if err != nil {
					return fmt.Errorf("invalid project ID %q: %w", args[2], err)
				}
				projectIDs = []uuid.UUID{id}
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			var org uuid.UUID
			if len(projectIDs) == 1 {
				project, err := s.client.Projects().Get(ctx, projectIDs[0])
				if err != nil {
					return err
				}
				org = project.OrganizationID
			} else if org, err = a.organization(s.profile); err != nil {
				return err
			}

			var notePtr *string
			if cmd.Flags().Changed("note") {
				notePtr = &note
			}
			secret, err := s.client.Secrets().Create(ctx, org, args[0], args[1], notePtr, projectIDs)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, secret)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "secret note")
	return cmd
}

func newSecretEditCommand(a *app) *cobra.Command {
	var key, value, note, projectID string

	cmd := &cobra.Command{
		Use:   "edit <secret-id>",
		Short: "Change a secret's key, value, note or project",
		Long: `Change a secret. Fields without a flag keep their current value; pass
--project-id "" to detach the secret from its project.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid secret ID %q: %w", args[0], err)
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			current, err := s.client.Secrets().Get(ctx, id)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("key") {
				current.Key = key
			}
			if flags.Changed("value") {
				current.Value = value
			}
			if flags.Changed("note") {
				current.Note = note
			}

			var projectIDs []uuid.UUID
			switch {
			case flags.Changed("project-id") && projectID != "":
				pid, err := uuid.Parse(projectID)
				if err != nil {
					return fmt.Errorf("invalid project ID %q: %w", projectID, err)
				}
				projectIDs = []uuid.UUID{pid}
			case flags.Changed("project-id"):
			case current.ProjectID != nil:
				projectIDs = []uuid.UUID{*current.ProjectID}
			}

			secret, err := s.client.Secrets().Update(ctx, current.OrganizationID, id,
				current.Key, current.Value, &current.Note, projectIDs)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, secret)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "new key")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	cmd.Flags().StringVar(&note, "note", "", "new note")
	cmd.Flags().StringVar(&projectID, "project-id", "", "new project")
	return cmd
}

func newSecretDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <secret-id>...",
		Short: "Delete secrets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.client.Secrets().Delete(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), a.output, result); err != nil {
				return err
			}
			return failedDeletes(len(result.Data), countSecretFailures(result))
		},
	}
}

func newSecretSyncCommand(a *app) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Report whether secrets changed since a time, printing them if so",
		Example: `  smctl secret sync --since 2024-01-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var lastSynced *time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				lastSynced = &t
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			org, err := a.organization(s.profile)
			if err != nil {
				return err
			}
			result, err := s.client.Secrets().Sync(cmd.Context(), org, lastSynced)
			if err != nil {
				return err
			}
			if a.output == "table" {
				fmt.Fprintf(cmd.OutOrStdout(), "changes: %t\n", result.HasChanges)
			}
			return render(cmd.OutOrStdout(), a.output, result)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "last sync time (RFC 3339); omit to fetch everything")
	return cmd
}

func countSecretFailures(r *protocol.SecretsDeleteResponse) int {
	n := 0
	for _, d := range r.Data {
		if d.Error != nil {
			n++
		}
	}
	return n
}

func failedDeletes(total, failed int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d deletions failed", failed, total)
}
