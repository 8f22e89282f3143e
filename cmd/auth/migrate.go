package main

import (
	"fmt"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/migrate"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand and its up/down/version children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQL(cmd, func(db *dbHandle) error {
				if err := migrate.Up(db.raw); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQL(cmd, func(db *dbHandle) error {
				if err := migrate.Down(db.raw, steps); err != nil {
					return fmt.Errorf("roll back migrations: %w", err)
				}
				cmd.Printf("Rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSQL(cmd, func(db *dbHandle) error {
				v, dirty, err := migrate.Version(db.raw)
				if err != nil {
					return fmt.Errorf("read schema version: %w", err)
				}
				cmd.Printf("version %d (dirty=%t)\n", v, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withSQL(cmd *cobra.Command, fn func(*dbHandle) error) error {
	cfg, err := config.LoadForMaintenance()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	return fn(&dbHandle{orm: db, raw: sqlDB})
}
