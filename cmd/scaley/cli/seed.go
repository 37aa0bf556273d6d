package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getscaley/scaley/internal/config"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default roles and a superadmin",
		Long: `Ensure the superadmin and admin roles exist and, when --email is given,
create a superadmin with that email unless one is already registered.`,
		Example: `  scaley seed
  scaley seed --email root@example.com   # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withServices(ctx, func(cfg *config.Config, svc *services) error {
				if err := svc.seeder.EnsureDefaultRoles(ctx); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Default roles ensured.")
				if email == "" {
					return nil
				}

				if _, err := svc.store.GetAdminByEmail(ctx, email); err == nil {
					fmt.Fprintf(out, "Admin %q already exists.\n", email)
					return nil
				}
				if password == "" {
					pw, err := promptPassword(out)
					if err != nil {
						return err
					}
					password = pw
				}

				admin, created, err := svc.seeder.SeedSuperAdmin(ctx, email, password, name)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "Created superadmin %q (id=%d)\n", admin.Email, admin.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Superadmin email address")
	cmd.Flags().StringVar(&password, "password", "", "Superadmin password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "Super Admin", "Superadmin display name")

	return cmd
}
