/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/db"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrations(cmd, "down")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigrations(cmd *cobra.Command, direction string) error {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	pool, err := db.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("open database failed: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(pool, cfg.Database.Driver, direction); err != nil {
		return fmt.Errorf("migrate %s failed: %w", direction, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", direction)
	return nil
}
