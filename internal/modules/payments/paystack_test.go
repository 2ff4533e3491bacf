package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaystack(t *testing.T, h http.HandlerFunc) *PaystackClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewPaystackClient(PaystackConfig{BaseURL: srv.URL + "/", SecretKey: "sk_test_x"}, srv.Client())
}

func TestPaystack_VerifySuccess(t *testing.T) {
	client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/ref_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_x", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"status":true,"message":"Verification successful","data":{
			"reference":"ref_1","status":"success","amount":10000,"currency":"ngn",
			"paid_at":"2025-03-01T10:15:00.000Z","metadata":{"order_id":42}}}`)
	})

	v, err := client.VerifyTransaction(context.Background(), "ref_1")
	require.NoError(t, err)
	assert.Equal(t, "ref_1", v.Reference)
	assert.Equal(t, VerificationSuccess, v.Status)
	assert.True(t, v.Amount.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "NGN", v.Currency)
	assert.Equal(t, "42", v.OrderID)
	require.NotNil(t, v.PaidAt)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC), v.PaidAt.UTC())
}

func TestPaystack_VerifyEscapesReference(t *testing.T) {
	client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/a%2Fb", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"status":true,"data":{"reference":"a/b","status":"success","amount":1}}`)
	})

	_, err := client.VerifyTransaction(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestPaystack_VerifyFailures(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		wantErr error
	}{
		{name: "server error", code: http.StatusInternalServerError, body: `oops`, wantErr: ErrGatewayUnavailable},
		{name: "bad gateway", code: http.StatusBadGateway, body: ``, wantErr: ErrGatewayUnavailable},
		{name: "rate limited", code: http.StatusTooManyRequests, body: `{}`, wantErr: ErrGatewayUnavailable},
		{name: "unknown transaction", code: http.StatusNotFound, body: `{"status":false,"message":"Transaction reference not found"}`, wantErr: ErrPaymentNotSucceeded},
		{name: "status false", code: http.StatusOK, body: `{"status":false,"message":"nope"}`, wantErr: ErrPaymentNotSucceeded},
		{name: "garbage", code: http.StatusOK, body: `<html>`, wantErr: ErrGatewayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.VerifyTransaction(context.Background(), "ref_1")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaystack_EmptyReference(t *testing.T) {
	client := NewPaystackClient(PaystackConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := client.VerifyTransaction(context.Background(), "  ")
	require.ErrorIs(t, err, ErrPaymentNotSucceeded)
}

func TestPaystack_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewPaystackClient(PaystackConfig{BaseURL: srv.URL}, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.VerifyTransaction(ctx, "ref_1")
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, ClassTransient, Classify(err))
}

func TestPaystack_Initialize(t *testing.T) {
	client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "buyer@example.com", got["email"])
		assert.Equal(t, "12550", got["amount"])
		assert.Equal(t, "NGN", got["currency"])
		assert.Equal(t, map[string]any{"order_id": "ord-1"}, got["metadata"])
		assert.Equal(t, "https://shop.example/return", got["callback_url"])

		_, _ = io.WriteString(w, `{"status":true,"message":"Authorization URL created","data":{
			"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ref_9"}}`)
	})

	resp, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		OrderID:     "ord-1",
		Email:       "buyer@example.com",
		Currency:    "NGN",
		AmountMinor: decimal.RequireFromString("12550"),
		CallbackURL: "https://shop.example/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "ref_9", resp.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", resp.AuthorizationURL)
	assert.Equal(t, "abc", resp.AccessCode)
}

func TestPaystack_InitializeDeclined(t *testing.T) {
	client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":false,"message":"Invalid Email Address Passed"}`)
	})

	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{OrderID: "ord-1"})
	require.ErrorIs(t, err, ErrGatewayDeclined)
	assert.Contains(t, err.Error(), "Invalid Email Address Passed")
}

func TestPaystack_Refund(t *testing.T) {
	client := newTestPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "ref_1", got["transaction"])
		assert.Equal(t, "10000", got["amount"])
		assert.Equal(t, "customer asked", got["merchant_note"])

		_, _ = io.WriteString(w, `{"status":true,"message":"Refund has been queued","data":{"id":3018284,"status":"pending"}}`)
	})

	resp, err := client.RefundTransaction(context.Background(), RefundRequest{
		Reference:   "ref_1",
		AmountMinor: decimal.NewFromInt(10000),
		Reason:      "customer asked",
	})
	require.NoError(t, err)
	assert.Equal(t, "3018284", resp.RefundRef)
	assert.Equal(t, "pending", resp.Status)
}
