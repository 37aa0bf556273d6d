package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getscaley/scaley/internal/config"
	"github.com/getscaley/scaley/internal/model"
	"github.com/getscaley/scaley/internal/service"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create, list and delete the admin accounts that sign in to the dashboard.",
	}

	cmd.AddCommand(newAdminCreateCmd(a))
	cmd.AddCommand(newAdminListCmd(a))
	cmd.AddCommand(newAdminDeleteCmd(a))

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd(a *app) *cobra.Command {
	var in service.CreateAdminInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  scaley admin create --email admin@example.com --name "Ops" --role admin --password secret123
  scaley admin create --email admin@example.com --name "Ops"   # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				if in.Password == "" {
					pw, err := promptPassword(cmd.OutOrStdout())
					if err != nil {
						return err
					}
					in.Password = pw
				}

				admin, err := svc.admins.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %q (id=%d, uuid=%s, roles=%s)\n",
					admin.Email, admin.ID, admin.UUID, formatRoles(admin.Roles))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&in.Name, "name", "", "Admin display name (required)")
	cmd.Flags().StringSliceVar(&in.Roles, "role", []string{model.RoleAdmin}, "Role to assign (repeatable)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		params     service.ListAdminsParams
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				page, err := svc.admins.List(ctx, params)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(page)
				}

				if page.Total == 0 {
					fmt.Fprintln(out, "No admin users found. Use 'scaley admin create' to create one.")
					return nil
				}

				fmt.Fprintf(out, "%-6s %-32s %-24s %-20s\n", "ID", "EMAIL", "NAME", "ROLES")
				fmt.Fprintf(out, "%-6s %-32s %-24s %-20s\n", "--", "-----", "----", "-----")
				for _, admin := range page.Items {
					fmt.Fprintf(out, "%-6d %-32s %-24s %-20s\n", admin.ID, admin.Email, admin.Name, formatRoles(admin.Roles))
				}
				if shown := len(page.Items); shown < page.Total {
					fmt.Fprintf(out, "\nShowing %d of %d (page %d).\n", shown, page.Total, page.Page)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&params.Page, "page", service.DefaultPage, "Page number")
	cmd.Flags().IntVar(&params.PageSize, "page-size", service.DefaultPageSize, "Admins per page")
	cmd.Flags().StringVar(&params.Search, "search", "", "Match email or name")
	cmd.Flags().StringVar(&params.Role, "role", "", "Only admins holding this role")
	cmd.Flags().StringVar(&params.Sort, "sort", "id", "Sort field (id, email, name, createdAt)")
	cmd.Flags().StringVar(&params.Order, "order", "asc", "Sort order (asc or desc)")

	return cmd
}

// ---------- admin delete ----------

func newAdminDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-uuid>",
		Short: "Delete an admin user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				if err := svc.admins.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted admin %s\n", args[0])
				return nil
			})
		},
	}
}

func formatRoles(roles []string) string {
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ",")
}
