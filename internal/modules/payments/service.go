package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pehlione.com/shop/internal/modules/orders"
)

// CheckoutStore is what starting a payment needs from persistence.
type CheckoutStore interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	SetPaymentStatus(ctx context.Context, orderID string, from, to orders.PaymentStatus) (bool, error)
}

// Service starts gateway checkouts. It never marks an order paid; only a verified
// webhook does that.
type Service struct {
	store   CheckoutStore
	gateway Initializer
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(store CheckoutStore, gateway Initializer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{store: store, gateway: gateway, timeout: timeout, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

type PayOrderInput struct {
	OrderID     string
	CallbackURL string
}

type PayOrderResult struct {
	OrderID          string
	Reference        string
	AuthorizationURL string
	AccessCode       string
	AmountMinor      string
	Currency         string
}

func (s *Service) PayOrder(ctx context.Context, in PayOrderInput) (PayOrderResult, error) {
	if in.OrderID == "" {
		return PayOrderResult{}, ErrOrderNotPayable
	}

	ord, err := s.store.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return PayOrderResult{}, ErrOrderNotFound
		}
		return PayOrderResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if orders.IsTerminalStatus(ord.Status) || !orders.CanReachPaid(ord.PaymentStatus) {
		return PayOrderResult{}, fmt.Errorf("%w: status=%s payment_status=%s", ErrOrderNotPayable, ord.Status, ord.PaymentStatus)
	}

	// retry edge: failed -> pending before asking the gateway again
	if ord.PaymentStatus == orders.PaymentFailed {
		ok, err := s.store.SetPaymentStatus(ctx, ord.ID, orders.PaymentFailed, orders.PaymentPending)
		if err != nil {
			return PayOrderResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !ok {
			return PayOrderResult{}, ErrConcurrentUpdate
		}
	}

	amount := ord.ExpectedMinorUnits()
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gateway.InitializeTransaction(gctx, InitializeRequest{
		OrderID:     ord.ID,
		Email:       ord.Email,
		Currency:    ord.Currency,
		AmountMinor: amount,
		CallbackURL: in.CallbackURL,
	})
	if err != nil {
		if errors.Is(err, ErrGatewayDeclined) {
			if _, ferr := s.store.SetPaymentStatus(ctx, ord.ID, orders.PaymentPending, orders.PaymentFailed); ferr != nil {
				s.logger.ErrorContext(ctx, "failed to mark payment failed", "order_id", ord.ID, "err", ferr)
			}
			s.logger.WarnContext(ctx, "payment initialization declined", "order_id", ord.ID, "err", err)
			return PayOrderResult{}, err
		}
		s.logger.ErrorContext(ctx, "payment initialization failed", "order_id", ord.ID, "err", err)
		if errors.Is(err, ErrGatewayUnavailable) {
			return PayOrderResult{}, err
		}
		return PayOrderResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.logger.InfoContext(ctx, "payment initialized", "order_id", ord.ID, "reference", resp.Reference)
	return PayOrderResult{
		OrderID:          ord.ID,
		Reference:        resp.Reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		AmountMinor:      amount.StringFixed(0),
		Currency:         ord.Currency,
	}, nil
}
