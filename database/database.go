package database

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"screenlens/config"
)

func Connect(cfg *config.Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	opts := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch cfg.DBDriver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), opts)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), opts)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if cfg.DBDriver != "postgres" {
		// SQLite needs this for the screens -> projects restrict constraint.
		db.Exec("PRAGMA foreign_keys = ON")
	}

	fmt.Println("Database connected")
	return db
}
