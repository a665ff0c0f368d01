package main

import (
	"log"

	"ai-plugin-engine/internal/config"
	"ai-plugin-engine/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDB(database.GormConfig{
		DSN:          cfg.Database.Connection,
		MaxOpenConns: 2,
		LogSQL:       true,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running migration...")
	err = database.Migrate(db, func(stmt string, err error) {
		log.Printf("Warn: Failed to execute %q: %v. Continuing...", stmt, err)
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Println("Success: database migration completed.")
}
