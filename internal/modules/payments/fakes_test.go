package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pehlione.com/shop/internal/modules/orders"
)

var testSecret = []byte("sk_test_webhook")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory order store whose CommitPayment is a mutex-guarded
// compare-and-swap with the same guard as the SQL update.
type memStore struct {
	mu           sync.Mutex
	orders       map[string]orders.Order
	commits      int
	refunds      []orders.RefundCommit
	statusMoves  [][2]orders.PaymentStatus
	getErr       error
	commitErr    error
	beforeCommit func()
}

func newMemStore(list ...orders.Order) *memStore {
	s := &memStore{orders: map[string]orders.Order{}}
	for _, o := range list {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) Get(ctx context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return orders.Order{}, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *memStore) CommitPayment(ctx context.Context, c orders.PaymentCommit) (bool, error) {
	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return false, s.commitErr
	}

	o, ok := s.orders[c.OrderID]
	if !ok || o.Status != c.ObservedStatus || o.PaymentReference != nil ||
		!slices.Contains(orders.PayableFrom(), o.PaymentStatus) {
		return false, nil
	}
	for id, other := range s.orders {
		if id != o.ID && other.Reference() == c.Reference {
			return false, orders.ErrReferenceInUse
		}
	}

	ref := c.Reference
	at := c.At
	o.Status = c.NextStatus
	o.PaymentStatus = orders.PaymentPaid
	o.PaymentReference = &ref
	o.PaidAt = &at
	s.orders[o.ID] = o
	s.commits++
	return true, nil
}

func (s *memStore) CommitRefund(ctx context.Context, c orders.RefundCommit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return false, s.commitErr
	}
	o, ok := s.orders[c.OrderID]
	if !ok || o.Status != c.ObservedStatus || o.PaymentStatus != orders.PaymentPaid {
		return false, nil
	}
	now := time.Now()
	o.Status = c.NextStatus
	o.PaymentStatus = orders.PaymentRefunded
	o.RefundedAt = &now
	s.orders[o.ID] = o
	s.refunds = append(s.refunds, c)
	return true, nil
}

func (s *memStore) SetPaymentStatus(ctx context.Context, id string, from, to orders.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	s.orders[id] = o
	s.statusMoves = append(s.statusMoves, [2]orders.PaymentStatus{from, to})
	return true, nil
}

func (s *memStore) order(id string) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	v     Verification
	err   error

	initCalls int
	initResp  InitializeResponse
	initErr   error

	refundCalls int
	refundResp  RefundResponse
	refundErr   error
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.v, g.err
}

func (g *fakeGateway) InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	return g.initResp, g.initErr
}

func (g *fakeGateway) RefundTransaction(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	return g.refundResp, g.refundErr
}

func (g *fakeGateway) verifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *memArchive) Put(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return nil
}

type memDeliveries struct {
	mu   sync.Mutex
	rows []WebhookDelivery
}

func (d *memDeliveries) Record(ctx context.Context, w WebhookDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = append(d.rows, w)
	return nil
}

func pendingOrder(id, total string) orders.Order {
	return orders.Order{
		ID:            id,
		Email:         "buyer@example.com",
		Currency:      "NGN",
		TotalAmount:   decimal.RequireFromString(total),
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func successVerification(ref, orderID string, minor int64) Verification {
	return Verification{
		Reference: ref,
		Status:    VerificationSuccess,
		Amount:    decimal.NewFromInt(minor),
		Currency:  "NGN",
		OrderID:   orderID,
	}
}

func chargeBody(t *testing.T, event, ref string, orderID any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"reference": ref,
			"amount":    10000,
			"status":    "success",
			"metadata":  map[string]any{"order_id": orderID},
		},
	})
	require.NoError(t, err)
	return b
}

func newEngine(store OrderStore, gw TransactionVerifier) *WebhookService {
	svc := NewWebhookService(store, gw, WebhookConfig{
		Provider:       "paystack",
		Secret:         testSecret,
		GatewayTimeout: time.Second,
		StoreTimeout:   time.Second,
	})
	svc.SetLogger(discardLogger())
	return svc
}
