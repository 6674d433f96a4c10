package config

import (
	"fmt"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bus_tracker/internal/models"
)

var (
	// DB is the globally accessible database handle
	DB *gorm.DB
)

// InitDB opens the database, migrates the tracking tables and stores the
// handle in DB.
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	pg := postgres.Config{DSN: cfg.DSN()}
	if cfg.Driver == "postgres" {
		pg.DriverName = "postgres"
	}

	db, err := gorm.Open(postgres.New(pg), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(&models.Route{}, &models.Stop{}, &models.Bus{}, &models.LocationHistory{})
	if err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	DB = db
	return db, nil
}

// GetDB returns the initialized DB handle
func GetDB() *gorm.DB {
	return DB
}
