package services

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ease_academy_api/internal/models"
)

// InitDB opens the Postgres database that backs the task outbox
func InitDB(dsn string, debug bool, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "postgres pool")
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("postgres connection established")
	return db, nil
}

// AutoMigrate runs database migrations for the outbox tables
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
		&models.UserNotifPreference{},
	)
	if err != nil {
		return errors.Wrap(err, "migrate outbox tables")
	}

	log.Info("database migrations completed")
	return nil
}
