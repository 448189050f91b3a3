package database

import (
	"fmt"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB      *gorm.DB
	once    sync.Once
	initErr error
)

// Connect opens the process-wide connection on first use and returns the same
// handle on every later call. There is no teardown; the handle lives as long as
// the process.
func Connect(databaseURL string) (*gorm.DB, error) {
	once.Do(func() {
		if DB != nil {
			return
		}
		DB, initErr = Open(databaseURL)
	})
	return DB, initErr
}

// Use injects an already opened handle, e.g. an in-memory sqlite database in tests.
// It must be called before the first Connect.
func Use(db *gorm.DB) {
	DB = db
}

func GetDB() *gorm.DB {
	return DB
}

// Open creates a new connection. DATABASE_URL selects the dialect:
// postgres://... or postgresql://... for PostgreSQL, sqlite://<file> for SQLite.
func Open(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		databaseURL = "sqlite://forum.db"
	}

	var dialector gorm.Dialector
	var dsn string
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		dialector = postgres.Open(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn = strings.TrimPrefix(databaseURL, "sqlite://")
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q: must start with postgres:// or sqlite://", databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// every sqlite connection gets its own private memory database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	return db, nil
}
