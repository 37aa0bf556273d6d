package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getscaley/scaley/internal/config"
	"github.com/getscaley/scaley/internal/store"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune the activity log",
	}

	cmd.AddCommand(newLogsListCmd(a))
	cmd.AddCommand(newLogsPruneCmd(a))

	return cmd
}

// ---------- logs list ----------

func newLogsListCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		limit      int
		adminID    int64
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the most recent activity entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				filter := store.ActivityFilter{Limit: limit}
				if adminID > 0 {
					filter.AdminID = &adminID
				}
				entries, total, err := svc.store.ListActivityLogs(ctx, filter)
				if err != nil {
					return fmt.Errorf("list activity: %w", err)
				}
				out := cmd.OutOrStdout()

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}

				if total == 0 {
					fmt.Fprintln(out, "No activity recorded.")
					return nil
				}

				fmt.Fprintf(out, "%-20s %-7s %-6s %-36s %-6s %s\n", "TIME", "ADMIN", "METHOD", "PATH", "STATUS", "IP")
				for _, e := range entries {
					admin := "-"
					if e.AdminID != nil {
						admin = fmt.Sprint(*e.AdminID)
					}
					fmt.Fprintf(out, "%-20s %-7s %-6s %-36s %-6d %s\n",
						e.CreatedAt.Local().Format(time.DateTime), admin, e.Method, e.Path, e.Metadata.StatusCode, e.IP)
				}
				if len(entries) < total {
					fmt.Fprintf(out, "\nShowing %d of %d entries.\n", len(entries), total)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show")
	cmd.Flags().Int64Var(&adminID, "admin-id", 0, "Only entries made by this admin")

	return cmd
}

// ---------- logs prune ----------

func newLogsPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete activity entries older than a cutoff",
		Long: `Delete activity entries older than --older-than. When the flag is not
given, activity.retention from the configuration is used.`,
		Example: `  scaley logs prune --older-than 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(cfg *config.Config, svc *services) error {
				age := cfg.Activity.Retention
				if cmd.Flags().Changed("older-than") {
					age = olderThan
				}
				if age <= 0 {
					return fmt.Errorf("retention must be positive, got %s", age)
				}

				cutoff := time.Now().UTC().Add(-age)
				n, err := svc.store.PruneActivityLogs(ctx, cutoff)
				if err != nil {
					return fmt.Errorf("prune activity: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d activity entries older than %s.\n", n, cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff, e.g. 720h (default: activity.retention)")
	return cmd
}
