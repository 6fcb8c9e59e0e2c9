// Package postgres is the gorm-backed store.Repository.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL and sizes the connection pool. It does not
// migrate; call AutoMigrate for that.
func Open(cfg config.PostgresConfig, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().
		Str("host", cfg.Host).
		Str("db", cfg.DBName).
		Msg("connected to PostgreSQL")

	return db, nil
}

// AutoMigrate creates or updates every table and index.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// translate maps driver errors onto the application taxonomy. Errors that
// already carry a kind pass through untouched.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var kinded apperr.Kinded
	if errors.As(err, &kinded) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.KindConflict, op, "record already exists", err)
	}
	return apperr.Wrap(apperr.KindPersistence, op, "database operation failed", err)
}
