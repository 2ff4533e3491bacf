package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pehlione.com/shop/internal/modules/orders"
)

type RefundStore interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	CommitRefund(ctx context.Context, c orders.RefundCommit) (bool, error)
}

type RefundService struct {
	store   RefundStore
	gateway Refunder
	timeout time.Duration
	logger  *slog.Logger
}

func NewRefundService(store RefundStore, gateway Refunder, timeout time.Duration) *RefundService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RefundService{store: store, gateway: gateway, timeout: timeout, logger: slog.Default()}
}

func (s *RefundService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

type RefundOrderInput struct {
	OrderID     string
	ActorUserID string // admin
	Reason      string
}

type RefundOrderResult struct {
	OrderID    string
	RefundRef  string
	Status     string
	Amount     string
	Idempotent bool
}

// commitAttempts bounds how often the refund write is retried when the lifecycle status
// changes between read and write. The gateway refund is already done at that point.
const commitAttempts = 3

// RefundOrder refunds the full paid amount. Calling it on an already refunded order is a
// no-op.
func (s *RefundService) RefundOrder(ctx context.Context, in RefundOrderInput) (RefundOrderResult, error) {
	if in.OrderID == "" || in.ActorUserID == "" {
		return RefundOrderResult{}, ErrNotRefundable
	}

	ord, err := s.load(ctx, in.OrderID)
	if err != nil {
		return RefundOrderResult{}, err
	}
	if ord.PaymentStatus == orders.PaymentRefunded {
		return RefundOrderResult{OrderID: ord.ID, Status: string(ord.PaymentStatus), Amount: ord.TotalAmount.StringFixed(2), Idempotent: true}, nil
	}
	if !orders.CanTransition(ord.PaymentStatus, orders.PaymentRefunded, orders.PaymentTransitions) || ord.Reference() == "" {
		return RefundOrderResult{}, fmt.Errorf("%w: payment_status=%s", ErrNotRefundable, ord.PaymentStatus)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, err := s.gateway.RefundTransaction(gctx, RefundRequest{
		Reference:   ord.Reference(),
		AmountMinor: ord.ExpectedMinorUnits(),
		Reason:      in.Reason,
	})
	cancel()
	if err != nil {
		s.logger.WarnContext(ctx, "gateway refund failed", "order_id", ord.ID, "err", err)
		if errors.Is(err, ErrGatewayDeclined) || errors.Is(err, ErrGatewayUnavailable) {
			return RefundOrderResult{}, err
		}
		return RefundOrderResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	for attempt := 0; attempt < commitAttempts; attempt++ {
		next := ord.Status
		if orders.CanTransition(ord.Status, orders.StatusCancelled, orders.StatusTransitions) {
			next = orders.StatusCancelled
		}

		ok, err := s.store.CommitRefund(ctx, orders.RefundCommit{
			OrderID:        ord.ID,
			ActorUserID:    in.ActorUserID,
			RefundRef:      resp.RefundRef,
			ObservedStatus: ord.Status,
			NextStatus:     next,
			Amount:         ord.TotalAmount,
			Currency:       ord.Currency,
			Email:          ord.Email,
			Reason:         in.Reason,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "refund accepted by gateway but not recorded", "order_id", ord.ID, "refund_ref", resp.RefundRef, "err", err)
			return RefundOrderResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if ok {
			s.logger.InfoContext(ctx, "order refunded", "order_id", ord.ID, "refund_ref", resp.RefundRef, "actor", in.ActorUserID)
			return RefundOrderResult{
				OrderID:   ord.ID,
				RefundRef: resp.RefundRef,
				Status:    resp.Status,
				Amount:    ord.TotalAmount.StringFixed(2),
			}, nil
		}

		if ord, err = s.load(ctx, in.OrderID); err != nil {
			return RefundOrderResult{}, err
		}
		if ord.PaymentStatus == orders.PaymentRefunded {
			return RefundOrderResult{OrderID: ord.ID, RefundRef: resp.RefundRef, Status: string(ord.PaymentStatus), Amount: ord.TotalAmount.StringFixed(2), Idempotent: true}, nil
		}
		if ord.PaymentStatus != orders.PaymentPaid {
			break
		}
	}

	s.logger.ErrorContext(ctx, "refund accepted by gateway but order kept changing", "order_id", ord.ID, "refund_ref", resp.RefundRef)
	return RefundOrderResult{}, ErrConcurrentUpdate
}

func (s *RefundService) load(ctx context.Context, id string) (orders.Order, error) {
	ord, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return orders.Order{}, ErrOrderNotFound
		}
		return orders.Order{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ord, nil
}
