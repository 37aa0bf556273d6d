package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getscaley/scaley/internal/config"
	"github.com/getscaley/scaley/internal/model"
)

func newRoleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
		Long:  "Create and list the roles whose permissions gate the admin API.",
	}

	cmd.AddCommand(newRoleListCmd(a))
	cmd.AddCommand(newRoleCreateCmd(a))

	return cmd
}

// ---------- role list ----------

func newRoleListCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				roles, err := svc.store.ListRoles(ctx)
				if err != nil {
					return fmt.Errorf("list roles: %w", err)
				}
				out := cmd.OutOrStdout()

				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(roles)
				}

				if len(roles) == 0 {
					fmt.Fprintln(out, "No roles configured. Run 'scaley seed' to create the defaults.")
					return nil
				}

				fmt.Fprintf(out, "%-20s %s\n", "NAME", "PERMISSIONS")
				fmt.Fprintf(out, "%-20s %s\n", "----", "-----------")
				for _, r := range roles {
					perms := "none"
					if len(r.Permissions) > 0 {
						perms = strings.Join(r.Permissions, ", ")
					}
					fmt.Fprintf(out, "%-20s %s\n", r.Name, perms)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// ---------- role create ----------

func newRoleCreateCmd(a *app) *cobra.Command {
	var (
		name        string
		permissions []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new role",
		Example: `  scaley role create --name auditor --permission activity:read --permission admin:read
  scaley role create --name owner --permission '*'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("--name must not be empty")
			}
			ctx := cmd.Context()
			return a.withServices(ctx, func(_ *config.Config, svc *services) error {
				role := &model.Role{Name: name, Permissions: permissions}
				if err := svc.store.CreateRole(ctx, role); err != nil {
					return fmt.Errorf("create role: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created role %q (id=%d)\n", role.Name, role.ID)
				for _, p := range unknownPermissions(permissions) {
					fmt.Fprintf(cmd.OutOrStdout(), "  note: %q is not a permission the API checks\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Role name (required)")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Permission to grant (repeatable)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func unknownPermissions(perms []string) []string {
	known := map[string]bool{model.WildcardPermission: true}
	for _, p := range model.AllPermissions() {
		known[p] = true
	}
	var unknown []string
	for _, p := range perms {
		if !known[p] {
			unknown = append(unknown, p)
		}
	}
	return unknown
}
