// Package testutil opens throwaway SQLite databases shaped like the MySQL schema.
package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Column types are the plain SQLite spellings. The driver only decodes times for an
// exact DATETIME declaration, and TEXT keeps decimals as written.
var schema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		currency TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_reference TEXT NULL UNIQUE,
		notes TEXT NULL,
		paid_at DATETIME NULL,
		refunded_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE order_events (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		actor_user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		note TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE order_financial_entries (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		event TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		ref_type TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE outbox_messages (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME NULL
	)`,
	`CREATE TABLE payment_webhook_deliveries (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		event_type TEXT NOT NULL,
		reference TEXT NOT NULL,
		order_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error_class TEXT NULL,
		error TEXT NULL,
		archive_key TEXT NULL,
		received_at DATETIME NOT NULL
	)`,
}

// OpenDB returns a file-backed SQLite database in t.TempDir with every table created.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "shop.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY inside transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
