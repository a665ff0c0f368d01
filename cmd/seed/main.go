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
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo plugins...")
	for _, p := range demoPlugins() {
		if err := SeedPlugin(db, p); err != nil {
			log.Printf("Error seeding plugin '%s': %v", p.plugin.Slug, err)
		}
	}
	log.Println("Plugin seeding completed! Run `enginectl ingest` on the printed document ids.")
}
