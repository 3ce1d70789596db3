package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/roster/internal/config"
	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/observability"
)

// NewRootCmd creates the root command for the roster CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster - user accounts and authentication API",
		Long: `Roster serves the account API: signup, login, profile and password
management, avatar uploads and admin user management.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}

// bootstrap loads configuration and opens the database, which every
// subcommand needs.
func bootstrap(ctx context.Context) (*config.Config, *slog.Logger, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, logger, db, nil
}
