package orders

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is the checkout-side entry point: orders are created here, pending/pending,
// before any payment attempt.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type CreateInput struct {
	Email       string
	Currency    string
	TotalAmount decimal.Decimal
	Notes       string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Order{}, fmt.Errorf("%w: email", ErrInvalidOrder)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if len(currency) != 3 {
		return Order{}, fmt.Errorf("%w: currency", ErrInvalidOrder)
	}
	if !in.TotalAmount.IsPositive() {
		return Order{}, fmt.Errorf("%w: total_amount must be positive", ErrInvalidOrder)
	}
	if !in.TotalAmount.Shift(2).IsInteger() {
		return Order{}, fmt.Errorf("%w: total_amount has more than two decimals", ErrInvalidOrder)
	}

	now := time.Now()
	o := Order{
		ID:            uuid.NewString(),
		Email:         email,
		Currency:      currency,
		TotalAmount:   in.TotalAmount,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if n := strings.TrimSpace(in.Notes); n != "" {
		o.Notes = &n
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&o).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Create(&OrderEvent{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ActorUserID: ActorCheckout,
			Action:      "created",
			FromStatus:  "",
			ToStatus:    string(StatusPending),
			CreatedAt:   now,
		}).Error
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
