package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newProjectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(
		newProjectGetCommand(a),
		newProjectListCommand(a),
		newProjectCreateCommand(a),
		newProjectEditCommand(a),
		newProjectDeleteCommand(a),
	)
	return cmd
}

func newProjectGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project ID %q: %w", args[0], err)
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			project, err := s.client.Projects().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, project)
		},
	}
}

func newProjectListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the projects of the organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			org, err := a.organization(s.profile)
			if err != nil {
				return err
			}
			projects, err := s.client.Projects().List(cmd.Context(), org)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, projects)
		},
	}
}

func newProjectCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			org, err := a.organization(s.profile)
			if err != nil {
				return err
			}
			project, err := s.client.Projects().Create(cmd.Context(), org, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, project)
		},
	}
}

func newProjectEditCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "edit <project-id>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project ID %q: %w", args[0], err)
			}

			s, err := a.login(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			current, err := s.client.Projects().Get(ctx, id)
			if err != nil {
				return err
			}
			project, err := s.client.Projects().Update(ctx, current.OrganizationID, id, name)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, project)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>...",
		Short: "Delete projects; their secrets are kept and detached",
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

			result, err := s.client.Projects().Delete(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), a.output, result); err != nil {
				return err
			}
			failed := 0
			for _, d := range result.Data {
				if d.Error != nil {
					failed++
				}
			}
			return failedDeletes(len(result.Data), failed)
		},
	}
}
