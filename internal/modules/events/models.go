package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TypeOrderPaid     = "order.paid"
	TypeOrderRefunded = "order.refunded"
)

const (
	OutboxPending   = "pending"
	OutboxPublished = "published"
	OutboxFailed    = "failed"
)

type OutboxMessage struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	AggregateID string         `gorm:"type:char(36);not null;index:ix_outbox_aggregate"`
	Payload     datatypes.JSON `gorm:"type:json;not null"`
	Status      string         `gorm:"type:varchar(16);not null;index:ix_outbox_status_created,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   *string        `gorm:"type:varchar(255)"`
	CreatedAt   time.Time      `gorm:"type:datetime(3);not null;index:ix_outbox_status_created,priority:2"`
	PublishedAt *time.Time     `gorm:"type:datetime(3)"`
}

func (OutboxMessage) TableName() string { return "outbox_messages" }

// NewOutboxMessage builds a pending row; callers insert it in their own transaction.
func NewOutboxMessage(eventType, aggregateID string, payload any) (OutboxMessage, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(b),
		Status:      OutboxPending,
		CreatedAt:   time.Now(),
	}, nil
}

type OrderPaid struct {
	OrderID   string    `json:"order_id"`
	Reference string    `json:"reference"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Email     string    `json:"email,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
}

type OrderRefunded struct {
	OrderID    string    `json:"order_id"`
	RefundRef  string    `json:"refund_ref,omitempty"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	Email      string    `json:"email,omitempty"`
	RefundedAt time.Time `json:"refunded_at"`
}
