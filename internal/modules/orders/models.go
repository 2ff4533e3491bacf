package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID               string          `gorm:"type:char(36);primaryKey" json:"id"`
	Email            string          `gorm:"type:varchar(255);not null" json:"email"`
	Currency         string          `gorm:"type:char(3);not null" json:"currency"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status           Status          `gorm:"type:varchar(32);not null;index:ix_orders_status" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(32);not null" json:"payment_status"`
	PaymentReference *string         `gorm:"type:varchar(128);uniqueIndex:ux_orders_payment_reference" json:"payment_reference,omitempty"`
	Notes            *string         `gorm:"type:varchar(1000)" json:"notes,omitempty"`
	PaidAt           *time.Time      `gorm:"type:datetime(3)" json:"paid_at,omitempty"`
	RefundedAt       *time.Time      `gorm:"type:datetime(3)" json:"refunded_at,omitempty"`
	CreatedAt        time.Time       `gorm:"type:datetime(3);not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"type:datetime(3);not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// ExpectedMinorUnits is the amount the gateway must report for this order,
// total_amount × 100. It stays a decimal so a fractional minor unit is never rounded away.
func (o Order) ExpectedMinorUnits() decimal.Decimal {
	return o.TotalAmount.Shift(2)
}

// Reference returns the confirmed payment reference or "".
func (o Order) Reference() string {
	if o.PaymentReference == nil {
		return ""
	}
	return *o.PaymentReference
}

type OrderEvent struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_order_events_order_id" json:"order_id"`
	ActorUserID string    `gorm:"type:varchar(64);not null" json:"actor_user_id"`
	Action      string    `gorm:"type:varchar(32);not null" json:"action"`
	FromStatus  string    `gorm:"type:varchar(32);not null" json:"from_status"`
	ToStatus    string    `gorm:"type:varchar(32);not null" json:"to_status"`
	Note        *string   `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt   time.Time `gorm:"type:datetime(3);not null" json:"created_at"`
}

func (OrderEvent) TableName() string { return "order_events" }

const (
	LedgerPaymentSucceeded = "payment_succeeded"
	LedgerRefundSucceeded  = "refund_succeeded"
)

type FinancialEntry struct {
	ID        string          `gorm:"type:char(36);primaryKey" json:"id"`
	OrderID   string          `gorm:"type:char(36);not null;index:ix_order_fin_entries_order_created,priority:1" json:"order_id"`
	Event     string          `gorm:"type:varchar(32);not null" json:"event"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency  string          `gorm:"type:char(3);not null" json:"currency"`
	RefType   string          `gorm:"type:varchar(16);not null;index:ix_order_fin_entries_ref,priority:1" json:"ref_type"`
	RefID     string          `gorm:"type:varchar(128);not null;index:ix_order_fin_entries_ref,priority:2" json:"ref_id"`
	CreatedAt time.Time       `gorm:"type:datetime(3);not null;index:ix_order_fin_entries_order_created,priority:2" json:"created_at"`
}

func (FinancialEntry) TableName() string { return "order_financial_entries" }

// Actor ids used on audit rows written by the system rather than an admin.
const (
	ActorPaymentWebhook = "system:payment-webhook"
	ActorCheckout       = "system:checkout"
)
