package database

import (
	"fmt"

	"ai-plugin-engine/internal/model"

	"gorm.io/gorm"
)

var setupSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE EXTENSION IF NOT EXISTS vector;`,
}

// Models lists every table the engine owns or reads.
func Models() []interface{} {
	return []interface{}{
		&model.Plugin{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.DecisionTree{},
		&model.QueryLog{},
		&model.ReviewLog{},
		&model.CollaborationSession{},
	}
}

var postMigrationSQL = []string{
	`DROP INDEX IF EXISTS idx_document_chunks_embedding;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_decision_trees_one_active ON decision_trees (plugin_id) WHERE is_active AND deleted_at IS NULL;`,
}

// Migrate installs extensions, runs AutoMigrate and creates the indexes gorm
// tags cannot express. Step failures are reported through warn and skipped
// unless AutoMigrate itself fails.
func Migrate(db *gorm.DB, warn func(stmt string, err error)) error {
	for _, stmt := range setupSQL {
		if err := db.Exec(stmt).Error; err != nil {
			warn(stmt, err)
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range postMigrationSQL {
		if err := db.Exec(stmt).Error; err != nil {
			warn(stmt, err)
		}
	}
	return nil
}
