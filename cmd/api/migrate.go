package main

import (
	"github.com/spf13/cobra"

	"github.com/BradenHooton/roster/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Long:      `Apply, roll back, or list the embedded database migrations. Defaults to up.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{database.MigrateUp, database.MigrateDown, database.MigrateStatus},
		RunE:      runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := database.MigrateUp
	if len(args) == 1 {
		command = args[0]
	}

	ctx := cmd.Context()
	_, _, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool, command); err != nil {
		return err
	}

	cmd.Printf("migrate %s completed\n", command)
	return nil
}
