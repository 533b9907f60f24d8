package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&mirror.SheetDefinition{},
	)
}

// EnsureMirrorIndexes adds the composite index used when listing recent
// definitions of a client for fingerprint matching.
func EnsureMirrorIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sheet_definition_client_updated
		ON sheet_definition(client_key, updated_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_sheet_definition_client_updated: %w", err)
	}
	return nil
}
