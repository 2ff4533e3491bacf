package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"pehlione.com/shop/internal/modules/events"
	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
)

// applymigration brings a development database up to the current models with AutoMigrate.
// It only adds tables, columns and indexes; createtable holds the canonical schema.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	models := []any{
		&orders.Order{},
		&orders.OrderEvent{},
		&orders.FinancialEntry{},
		&payments.WebhookDelivery{},
		&events.OutboxMessage{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	log.Printf("migrated %d models", len(models))
}
