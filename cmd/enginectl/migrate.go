package main

import (
	"fmt"

	"ai-plugin-engine/pkg/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the engine tables and vector indexes",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewGormDB(database.GormConfig{DSN: cfg.Database.Connection, MaxOpenConns: 2, LogSQL: verbose})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	err = database.Migrate(db, func(stmt string, err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %q failed: %v\n", stmt, err)
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
	return nil
}
