package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cryptogate/cryptogate/app/models"
	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

var DB *gorm.DB

// Open connects to MySQL, retrying cfg.MaxRetries times.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		db, err := gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,   // default size for string fields
			DisableDatetimePrecision:  true,  // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), &gorm.Config{})
		if err == nil {
			return db, nil
		}
		lastErr = err

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, retries, err)
		if i < retries-1 {
			time.Sleep(cfg.RetryDelay)
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

// AutoMigrate creates or updates the gateway tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Package{},
		&models.Client{},
		&models.UsageAlert{},
		&models.UsageSnapshot{},
		&models.PaymentWebhookEvent{},
	)
}

// SetupDatabase opens the global connection and migrates the schema. It panics when the database stays unreachable.
func SetupDatabase(cfg config.DatabaseConfig) {
	db, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	if err := AutoMigrate(db); err != nil {
		panic(fmt.Errorf("auto migrate: %w", err))
	}
	DB = db
}

// GetDB returns the global connection set up by SetupDatabase.
func GetDB() *gorm.DB {
	if DB == nil {
		panic("Database not initialized. Call SetupDatabase first.")
	}
	return DB
}
