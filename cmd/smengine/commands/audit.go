package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smkit/smkit/pkg/engine"
	"github.com/smkit/smkit/pkg/stores"
)

func newAuditCommand() *cobra.Command {
	var (
		eventType string
		orgID     string
		limit     int
		offset    int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Example: `  # Last 20 failed logins
  smengine audit --type auth.login_failed --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := stores.AuditFilter{Limit: limit, Offset: offset}
			if eventType != "" {
				filter.Type = &eventType
			}
			if orgID != "" {
				filter.OrganizationID = &orgID
			}

			return withEngine(cmd, func(ctx context.Context, eng *engine.Local) error {
				entries, err := eng.Store().ListAuditEntries(ctx, filter)
				if err != nil {
					return fmt.Errorf("failed to list audit entries: %w", err)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				return writeAuditTable(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "only show events of this type (e.g. secret.created)")
	cmd.Flags().StringVar(&orgID, "org", "", "only show events for this organization")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries, zero for all")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output in JSON format")

	return cmd
}

func writeAuditTable(w io.Writer, entries []*stores.AuditEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tORGANIZATION\tACTOR\tRESOURCE\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339),
			e.Type,
			deref(e.OrganizationID),
			deref(e.ActorID),
			deref(e.ResourceID),
			e.Message,
		)
	}
	return tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
