package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService is the owner-facing write path. It only ever touches status and notes;
// payment fields belong to the payment path in the payments module.
type AdminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) *AdminService { return &AdminService{db: db} }

// WritableFields is the whitelist for administrative updates.
var WritableFields = map[string]bool{"status": true, "notes": true}

type UpdateInput struct {
	OrderID     string
	ActorUserID string
	Status      *Status
	Notes       *string
}

func (s *AdminService) Update(ctx context.Context, in UpdateInput) (Order, error) {
	if in.OrderID == "" || in.ActorUserID == "" {
		return Order{}, ErrInvalidOrder
	}
	if in.Status == nil && in.Notes == nil {
		return Order{}, ErrNothingToUpdate
	}

	var out Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.WithContext(ctx).First(&o, "id = ?", in.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		from := o.Status
		to := from
		if in.Status != nil {
			to = *in.Status
			if !to.Valid() {
				return &InvalidTransitionError{From: string(from), To: string(to)}
			}
			// checked before the table so a terminal order is refused even if the table changes
			if IsTerminalStatus(from) {
				return fmt.Errorf("%w: %s", ErrTerminal, from)
			}
			if !CanTransition(from, to, StatusTransitions) {
				return &InvalidTransitionError{From: string(from), To: string(to)}
			}
		}

		now := time.Now()
		updates := map[string]any{
			"status":     string(to),
			"updated_at": now,
		}
		cols := []string{"status", "updated_at"}
		if in.Notes != nil {
			n := strings.TrimSpace(*in.Notes)
			if n == "" {
				updates["notes"] = nil
			} else {
				updates["notes"] = n
			}
			cols = append(cols, "notes")
		}

		res := tx.WithContext(ctx).
			Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, string(from)). // optimistic guard
			Select(cols).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		action := "notes"
		if to != from {
			action = "status"
		}
		var notePtr *string
		if in.Notes != nil {
			if n := strings.TrimSpace(*in.Notes); n != "" {
				notePtr = &n
			}
		}
		ev := OrderEvent{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ActorUserID: in.ActorUserID,
			Action:      action,
			FromStatus:  string(from),
			ToStatus:    string(to),
			Note:        notePtr,
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
			return err
		}

		return tx.WithContext(ctx).First(&out, "id = ?", o.ID).Error
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// Delete hard-deletes an order that never took money. Paid (and refunded) orders keep
// their financial history and must be cancelled instead.
func (s *AdminService) Delete(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidOrder
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Where("id = ? AND payment_status NOT IN ?", orderID,
				[]string{string(PaymentPaid), string(PaymentRefunded)}).
			Delete(&Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return tx.WithContext(ctx).Where("order_id = ?", orderID).Delete(&OrderEvent{}).Error
		}

		var o Order
		if err := tx.WithContext(ctx).Select("id", "payment_status").First(&o, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return fmt.Errorf("%w: payment_status=%s", ErrPaidNotDeletable, o.PaymentStatus)
	})
}
