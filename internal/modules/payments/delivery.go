package payments

import (
	"context"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

// WebhookDelivery is one authenticated webhook call and what became of it. Rows are
// metadata only; the raw body goes to the archive when one is configured.
type WebhookDelivery struct {
	ID         string  `gorm:"type:char(36);primaryKey"`
	Provider   string  `gorm:"type:varchar(64);not null"`
	EventType  string  `gorm:"type:varchar(64);not null"`
	Reference  string  `gorm:"type:varchar(128);not null;index:ix_webhook_deliveries_reference"`
	OrderID    string  `gorm:"type:varchar(64);not null"`
	Outcome    string  `gorm:"type:varchar(32);not null"`
	ErrorClass *string `gorm:"type:varchar(32)"`
	Error      *string `gorm:"type:varchar(255)"`
	ArchiveKey *string `gorm:"type:varchar(255)"`

	ReceivedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (WebhookDelivery) TableName() string { return "payment_webhook_deliveries" }

type DeliveryLog interface {
	Record(ctx context.Context, d WebhookDelivery) error
}

type GormDeliveryLog struct{ db *gorm.DB }

func NewDeliveryLog(db *gorm.DB) *GormDeliveryLog { return &GormDeliveryLog{db: db} }

func (l *GormDeliveryLog) Record(ctx context.Context, d WebhookDelivery) error {
	return l.db.WithContext(ctx).Create(&d).Error
}

// Recent returns the latest deliveries for a reference, newest first.
func (l *GormDeliveryLog) Recent(ctx context.Context, reference string, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []WebhookDelivery
	err := l.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("received_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
