package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pehlione.com/shop/internal/http/middleware"
	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
	"pehlione.com/shop/internal/shared/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(quietLogger()))
	return r
}

type fakeProcessor struct {
	res       payments.Result
	err       error
	gotBody   []byte
	gotSig    string
	callCount int
}

func (f *fakeProcessor) Handle(ctx context.Context, rawBody []byte, signature string) (payments.Result, error) {
	f.callCount++
	f.gotBody = rawBody
	f.gotSig = signature
	return f.res, f.err
}

func postWebhook(r http.Handler, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set(payments.SignatureHeader, sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		retryAfter string
	}{
		{name: "processed", want: http.StatusOK},
		{name: "bad signature", err: payments.ErrInvalidSignature, want: http.StatusBadRequest},
		{name: "malformed", err: payments.ErrMalformedEvent, want: http.StatusBadRequest},
		{name: "unknown order", err: payments.ErrOrderNotFound, want: http.StatusBadRequest},
		{name: "terminal", err: payments.ErrOrderTerminal, want: http.StatusBadRequest},
		{name: "underpaid", err: payments.ErrAmountMismatch, want: http.StatusBadRequest},
		{name: "gateway down", err: payments.ErrGatewayUnavailable, want: http.StatusServiceUnavailable, retryAfter: "30"},
		{name: "lost race", err: payments.ErrConcurrentUpdate, want: http.StatusServiceUnavailable, retryAfter: "30"},
		{name: "bug", err: errors.New("nil map"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{res: payments.Result{Outcome: payments.OutcomeProcessed}, err: tt.err}
			r := newEngine()
			r.POST("/webhooks/paystack", NewWebhookHandler(quietLogger(), proc).Handle)

			body := []byte(`{"event":"charge.success",  "data":{}}`)
			w := postWebhook(r, body, "abc123")

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			assert.Equal(t, body, proc.gotBody, "handler must pass the raw bytes through")
			assert.Equal(t, "abc123", proc.gotSig)

			var out map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.Equal(t, tt.err == nil, out["received"])
			if tt.err == nil {
				assert.Equal(t, "processed", out["outcome"])
			}
		})
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	proc := &fakeProcessor{}
	r := newEngine()
	r.POST("/webhooks/paystack", NewWebhookHandler(quietLogger(), proc).Handle)

	w := postWebhook(r, bytes.Repeat([]byte("a"), maxWebhookBody+1), "sig")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, proc.callCount)
}

type fakeOrders struct {
	created orders.Order
	err     error
	getErr  error
}

func (f *fakeOrders) Create(ctx context.Context, in orders.CreateInput) (orders.Order, error) {
	if f.err != nil {
		return orders.Order{}, f.err
	}
	o := f.created
	o.Email = in.Email
	o.TotalAmount = in.TotalAmount
	return o, nil
}

func (f *fakeOrders) Get(ctx context.Context, id string) (orders.Order, error) {
	if f.getErr != nil {
		return orders.Order{}, f.getErr
	}
	o := f.created
	o.ID = id
	return o, nil
}

type fakePayments struct {
	res payments.PayOrderResult
	err error
	in  payments.PayOrderInput
}

func (f *fakePayments) PayOrder(ctx context.Context, in payments.PayOrderInput) (payments.PayOrderResult, error) {
	f.in = in
	return f.res, f.err
}

func ordersEngine(o *fakeOrders, p *fakePayments) *gin.Engine {
	h := NewOrdersHandler(o, o, p)
	r := newEngine()
	r.POST("/api/orders", h.Create)
	r.GET("/api/orders/:id", h.Get)
	r.POST("/api/orders/:id/pay", h.Pay)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOrdersHandler_Create(t *testing.T) {
	o := &fakeOrders{created: orders.Order{ID: "ord-1", Status: orders.StatusPending, PaymentStatus: orders.PaymentPending}}
	r := ordersEngine(o, &fakePayments{})

	w := do(r, http.MethodPost, "/api/orders", `{"email":"buyer@example.com","currency":"NGN","total_amount":"125.50"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var got orders.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ord-1", got.ID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("125.5")))

	w = do(r, http.MethodPost, "/api/orders", `{"email":"nope","currency":"NGN","total_amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"email"`)

	o.err = orders.ErrInvalidOrder
	w = do(r, http.MethodPost, "/api/orders", `{"email":"a@example.com","currency":"NGN","total_amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrdersHandler_Get(t *testing.T) {
	o := &fakeOrders{getErr: orders.ErrNotFound}
	w := do(ordersEngine(o, &fakePayments{}), http.MethodGet, "/api/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrdersHandler_Pay(t *testing.T) {
	p := &fakePayments{res: payments.PayOrderResult{OrderID: "ord-1", Reference: "ref_9", AuthorizationURL: "https://pay.example/x", AmountMinor: "12550", Currency: "NGN"}}
	r := ordersEngine(&fakeOrders{}, p)

	w := do(r, http.MethodPost, "/api/orders/ord-1/pay", `{"callback_url":"https://shop.example/return"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ord-1", p.in.OrderID)
	assert.Equal(t, "https://shop.example/return", p.in.CallbackURL)
	assert.Contains(t, w.Body.String(), `"reference":"ref_9"`)

	w = do(r, http.MethodPost, "/api/orders/ord-1/pay", `{"callback_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p.err = payments.ErrOrderNotPayable
	w = do(r, http.MethodPost, "/api/orders/ord-1/pay", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	p.err = payments.ErrGatewayUnavailable
	w = do(r, http.MethodPost, "/api/orders/ord-1/pay", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		want apperr.Kind
	}{
		{orders.ErrInvalidOrder, apperr.Invalid},
		{orders.ErrFieldNotWritable, apperr.Invalid},
		{orders.ErrNothingToUpdate, apperr.Invalid},
		{&orders.InvalidTransitionError{From: "delivered", To: "pending"}, apperr.Conflict},
		{orders.ErrTerminal, apperr.Conflict},
		{orders.ErrPaidNotDeletable, apperr.Conflict},
		{orders.ErrConcurrentUpdate, apperr.Conflict},
		{payments.ErrInvalidSignature, apperr.Unauthorized},
		{payments.ErrOrderNotFound, apperr.NotFound},
		{payments.ErrNotRefundable, apperr.Conflict},
		{payments.ErrGatewayDeclined, apperr.Invalid},
		{payments.ErrStoreUnavailable, apperr.Unavailable},
		{errors.New("boom"), apperr.Internal},
	}
	for _, tt := range tests {
		got := MapError(tt.err)
		require.NotNil(t, got)
		assert.Equal(t, tt.want, got.Kind, "%v", tt.err)
		assert.ErrorIs(t, got, tt.err)
	}
	assert.Nil(t, MapError(nil))
}
