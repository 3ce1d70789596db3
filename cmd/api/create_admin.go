package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/roster/internal/repositories"
	"github.com/BradenHooton/roster/internal/services"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long: `Create an admin account with the given email unless one already exists.
The password may be passed with --password or through ADMIN_PASSWORD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and a password are required")
			}

			ctx := cmd.Context()
			_, logger, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			userService := services.NewUserService(
				repositories.NewUserRepository(db.Pool),
				nil,
				logger,
				pkglogger.NewAuditLogger(logger),
			)

			created, err := userService.EnsureAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}
			if created {
				cmd.Println("admin account created")
			} else {
				cmd.Println("an account with that email already exists")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to ADMIN_PASSWORD)")

	return cmd
}
