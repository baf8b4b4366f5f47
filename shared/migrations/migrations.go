package migrations

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"memberflow/shared/database"
)

func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	err := db.AutoMigrate(
		&database.AccountRecord{},
		&database.JobRecord{},
		&database.SettingRecord{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("database migrations applied")
	return nil
}
