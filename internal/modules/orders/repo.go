package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pehlione.com/shop/internal/modules/events"
)

var ErrReferenceInUse = errors.New("payment reference already recorded on another order")

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// PaymentCommit describes the single financial write made when a payment is confirmed.
type PaymentCommit struct {
	OrderID   string
	Reference string
	// ObservedStatus is the lifecycle status read before the gateway call. The write only
	// lands if it is still current.
	ObservedStatus Status
	NextStatus     Status
	Amount         decimal.Decimal // major units, for the ledger
	Currency       string
	Email          string // carried into the outbox payload for receipts
	At             time.Time
}

// CommitPayment marks the order paid with a compare-and-swap update. It returns false
// without error when no row matched, which callers treat as "someone else got there first".
// Ledger, audit and outbox rows are written in the same transaction as the update.
func (r *Repo) CommitPayment(ctx context.Context, c PaymentCommit) (bool, error) {
	if c.OrderID == "" || c.Reference == "" {
		return false, ErrInvalidOrder
	}
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}

	committed := false
	err := withTxRetry(ctx, r.db, txAttempts, func(tx *gorm.DB) error {
		committed = false
		res := tx.WithContext(ctx).Model(&Order{}).
			Where("id = ? AND status = ? AND payment_reference IS NULL AND payment_status IN ?",
				c.OrderID, string(c.ObservedStatus), paymentStrings(PayableFrom())).
			Select("status", "payment_status", "payment_reference", "paid_at", "updated_at").
			Updates(map[string]any{
				"status":            string(c.NextStatus),
				"payment_status":    string(PaymentPaid),
				"payment_reference": c.Reference,
				"paid_at":           &at,
				"updated_at":        at,
			})
		if res.Error != nil {
			if isDup(res.Error) {
				return fmt.Errorf("%w: %s", ErrReferenceInUse, c.Reference)
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		committed = true

		if err := ensureFinancialEntry(ctx, tx, FinancialEntry{
			ID:        uuid.NewString(),
			OrderID:   c.OrderID,
			Event:     LedgerPaymentSucceeded,
			Amount:    c.Amount,
			Currency:  c.Currency,
			RefType:   "payment",
			RefID:     c.Reference,
			CreatedAt: at,
		}); err != nil {
			return err
		}

		note := "reference=" + c.Reference
		if err := tx.WithContext(ctx).Create(&OrderEvent{
			ID:          uuid.NewString(),
			OrderID:     c.OrderID,
			ActorUserID: ActorPaymentWebhook,
			Action:      "payment_confirmed",
			FromStatus:  string(c.ObservedStatus),
			ToStatus:    string(c.NextStatus),
			Note:        &note,
			CreatedAt:   at,
		}).Error; err != nil {
			return err
		}

		msg, err := events.NewOutboxMessage(events.TypeOrderPaid, c.OrderID, events.OrderPaid{
			OrderID:   c.OrderID,
			Reference: c.Reference,
			Amount:    c.Amount.StringFixed(2),
			Currency:  c.Currency,
			Status:    string(c.NextStatus),
			Email:     c.Email,
			PaidAt:    at,
		})
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&msg).Error
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}

// RefundCommit describes the paid -> refunded write.
type RefundCommit struct {
	OrderID        string
	ActorUserID    string
	RefundRef      string
	ObservedStatus Status
	NextStatus     Status
	Amount         decimal.Decimal
	Currency       string
	Email          string
	Reason         string
	At             time.Time
}

// CommitRefund moves a paid order to refunded. Same contract as CommitPayment.
func (r *Repo) CommitRefund(ctx context.Context, c RefundCommit) (bool, error) {
	if !CanTransition(PaymentPaid, PaymentRefunded, PaymentTransitions) {
		return false, &InvalidTransitionError{From: string(PaymentPaid), To: string(PaymentRefunded)}
	}
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}

	committed := false
	err := withTxRetry(ctx, r.db, txAttempts, func(tx *gorm.DB) error {
		committed = false
		res := tx.WithContext(ctx).Model(&Order{}).
			Where("id = ? AND status = ? AND payment_status = ?",
				c.OrderID, string(c.ObservedStatus), string(PaymentPaid)).
			Select("status", "payment_status", "refunded_at", "updated_at").
			Updates(map[string]any{
				"status":         string(c.NextStatus),
				"payment_status": string(PaymentRefunded),
				"refunded_at":    &at,
				"updated_at":     at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		committed = true

		refID := c.RefundRef
		if refID == "" {
			refID = c.OrderID
		}
		if err := ensureFinancialEntry(ctx, tx, FinancialEntry{
			ID:        uuid.NewString(),
			OrderID:   c.OrderID,
			Event:     LedgerRefundSucceeded,
			Amount:    c.Amount.Neg(),
			Currency:  c.Currency,
			RefType:   "refund",
			RefID:     refID,
			CreatedAt: at,
		}); err != nil {
			return err
		}

		var notePtr *string
		if c.Reason != "" {
			n := c.Reason
			notePtr = &n
		}
		if err := tx.WithContext(ctx).Create(&OrderEvent{
			ID:          uuid.NewString(),
			OrderID:     c.OrderID,
			ActorUserID: c.ActorUserID,
			Action:      "refund",
			FromStatus:  string(c.ObservedStatus),
			ToStatus:    string(c.NextStatus),
			Note:        notePtr,
			CreatedAt:   at,
		}).Error; err != nil {
			return err
		}

		msg, err := events.NewOutboxMessage(events.TypeOrderRefunded, c.OrderID, events.OrderRefunded{
			OrderID:    c.OrderID,
			RefundRef:  c.RefundRef,
			Amount:     c.Amount.StringFixed(2),
			Currency:   c.Currency,
			Status:     string(c.NextStatus),
			Email:      c.Email,
			RefundedAt: at,
		})
		if err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&msg).Error
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}

// SetPaymentStatus moves payment_status between the non-financial states used while a
// checkout is being initialised (pending <-> failed). paid and refunded are never set here.
func (r *Repo) SetPaymentStatus(ctx context.Context, orderID string, from, to PaymentStatus) (bool, error) {
	if to == PaymentPaid || to == PaymentRefunded {
		return false, fmt.Errorf("%w: payment_status=%s", ErrFieldNotWritable, to)
	}
	if !CanTransition(from, to, PaymentTransitions) {
		return false, &InvalidTransitionError{From: string(from), To: string(to)}
	}
	res := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND payment_status = ?", orderID, string(from)).
		Select("payment_status", "updated_at").
		Updates(map[string]any{
			"payment_status": string(to),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func ensureFinancialEntry(ctx context.Context, tx *gorm.DB, e FinancialEntry) error {
	var cnt int64
	if err := tx.WithContext(ctx).
		Model(&FinancialEntry{}).
		Where("ref_type = ? AND ref_id = ? AND event = ?", e.RefType, e.RefID, e.Event).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&e).Error
}

func paymentStrings(in []PaymentStatus) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = string(p)
	}
	return out
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
