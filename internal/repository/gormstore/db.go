// Package gormstore implements the relational stores on gorm. Postgres is the
// production target; sqlite serves single-node setups and the package tests.
package gormstore

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
)

const defaultSQLiteDSN = "file:masjidgo.db?_busy_timeout=5000&_foreign_keys=on"

// Open connects to the configured database and migrates the schema.
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey
// on both drivers.
func Open(cfg config.StorageConfig, log *logger.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", "driver", cfg.DBDriver)
	return db, nil
}

// Migrate creates or updates every table the stores use, including the
// partial unique index that allows one open visit per profile.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.UserProfile{},
		&entities.Visit{},
		&entities.AchievementDefinition{},
		&entities.AchievementProgress{},
		&entities.DailyMasjidStats{},
		&entities.LeaderboardSnapshot{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
