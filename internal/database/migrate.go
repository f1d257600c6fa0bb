package database

import (
	"osgb/internal/models"
	"osgb/pkg/logger"

	"gorm.io/gorm"
)

// Migrate runs the schema migration against the process database.
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	if err := AutoMigrateModels(DB); err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}

// AutoMigrateModels migrates every table on db. Tests call it directly.
func AutoMigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Expert{},
		&models.Physician{},
		&models.SafetyOfficer{},
		&models.Workplace{},
		&models.VisitRecord{},
		&models.QuotaLedgerEntry{},
	)
}
