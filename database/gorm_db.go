package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/imagecropper/models"
)

// gormLogLevel maps the global zerolog level onto gorm's coarser levels
func gormLogLevel() logger.LogLevel {
	switch zerolog.GlobalLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return logger.Info
	case zerolog.InfoLevel, zerolog.WarnLevel:
		return logger.Warn
	case zerolog.Disabled:
		return logger.Silent
	default:
		return logger.Error
	}
}

// InitGormDB initializes and returns a GORM database instance
func InitGormDB(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		&log.Logger,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	// write-ahead logging lets crop requests read while workers write
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Warn().Err(err).Msg("database: failed to set WAL mode")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Str("path", dataSourceName).Msg("database: GORM initialized")
	return db, nil
}

// AutoMigrateModels migrates the schema for every model
func AutoMigrateModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Image{}); err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Info().Msg("database: AutoMigrate completed")
	return nil
}
