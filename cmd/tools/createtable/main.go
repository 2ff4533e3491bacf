package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
  id CHAR(36) NOT NULL,
  email VARCHAR(255) NOT NULL,
  currency CHAR(3) NOT NULL,
  total_amount DECIMAL(12,2) NOT NULL,
  status VARCHAR(32) NOT NULL,
  payment_status VARCHAR(32) NOT NULL,
  payment_reference VARCHAR(128) NULL,
  notes VARCHAR(1000) NULL,
  paid_at DATETIME(3) NULL,
  refunded_at DATETIME(3) NULL,
  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  PRIMARY KEY (id),
  UNIQUE KEY ux_orders_payment_reference (payment_reference),
  KEY ix_orders_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS order_events (
  id CHAR(36) NOT NULL,
  order_id CHAR(36) NOT NULL,
  actor_user_id VARCHAR(64) NOT NULL,
  action VARCHAR(32) NOT NULL,
  from_status VARCHAR(32) NOT NULL,
  to_status VARCHAR(32) NOT NULL,
  note VARCHAR(255) NULL,
  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  PRIMARY KEY (id),
  KEY ix_order_events_order_id (order_id),
  CONSTRAINT fk_order_events_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS order_financial_entries (
  id CHAR(36) NOT NULL,
  order_id CHAR(36) NOT NULL,
  event VARCHAR(32) NOT NULL,
  amount DECIMAL(12,2) NOT NULL,
  currency CHAR(3) NOT NULL,
  ref_type VARCHAR(16) NOT NULL,
  ref_id VARCHAR(128) NOT NULL,
  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  PRIMARY KEY (id),
  KEY ix_order_fin_entries_order_created (order_id, created_at),
  KEY ix_order_fin_entries_ref (ref_type, ref_id),
  CONSTRAINT fk_order_fin_entries_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE RESTRICT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS payment_webhook_deliveries (
  id CHAR(36) NOT NULL,
  provider VARCHAR(64) NOT NULL,
  event_type VARCHAR(64) NOT NULL,
  reference VARCHAR(128) NOT NULL,
  order_id VARCHAR(64) NOT NULL,
  outcome VARCHAR(32) NOT NULL,
  error_class VARCHAR(32) NULL,
  error VARCHAR(255) NULL,
  archive_key VARCHAR(255) NULL,
  received_at DATETIME(3) NOT NULL,
  PRIMARY KEY (id),
  KEY ix_webhook_deliveries_reference (reference)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS outbox_messages (
  id CHAR(36) NOT NULL,
  event_type VARCHAR(64) NOT NULL,
  aggregate_id CHAR(36) NOT NULL,
  payload JSON NOT NULL,
  status VARCHAR(16) NOT NULL,
  attempts INT NOT NULL DEFAULT 0,
  last_error VARCHAR(255) NULL,
  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
  published_at DATETIME(3) NULL,
  PRIMARY KEY (id),
  KEY ix_outbox_aggregate (aggregate_id),
  KEY ix_outbox_status_created (status, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required (add multiStatements=true)")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	for _, t := range []string{"orders", "order_events", "order_financial_entries", "payment_webhook_deliveries", "outbox_messages"} {
		log.Printf("%s ok", t)
	}
}
