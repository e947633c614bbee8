package repository

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/safespacehub/plane-tracker-site/internal/config"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

const memoryPath = ":memory:"

func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database
	if cfg.SQLitePath == memoryPath {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Plane{},
		&models.Device{},
		&models.Session{},
		&models.ReportReceipt{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// NewMemoryDatabase opens a migrated in-memory database.
func NewMemoryDatabase() (*gorm.DB, error) {
	return NewDatabase(&config.DatabaseConfig{SQLitePath: memoryPath})
}
