package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pehlione.com/shop/internal/tracing"
)

const (
	PaystackProvider       = "paystack"
	paystackDefaultURL     = "https://api.paystack.co"
	paystackMaxBodyBytes   = 1 << 20
	paystackDefaultTimeout = 10 * time.Second
)

type PaystackConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// PaystackClient talks to the Paystack REST API. It never retries; redelivery is left to
// the gateway's own webhook schedule.
type PaystackClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewPaystackClient(cfg PaystackConfig, httpClient *http.Client) *PaystackClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = paystackDefaultURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = paystackDefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout, Transport: tracing.Transport(nil)}
	}
	return &PaystackClient{baseURL: base, secret: cfg.SecretKey, client: httpClient}
}

func (c *PaystackClient) Name() string { return PaystackProvider }

type paystackEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type paystackTransaction struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    *time.Time      `json:"paid_at"`
	Metadata  Metadata        `json:"metadata"`
}

func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Verification{}, fmt.Errorf("%w: empty reference", ErrPaymentNotSucceeded)
	}

	var env paystackEnvelope[paystackTransaction]
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &env)
	if err != nil {
		if errors.Is(err, ErrGatewayDeclined) {
			return Verification{}, fmt.Errorf("%w: %v", ErrPaymentNotSucceeded, err)
		}
		return Verification{}, err
	}

	tx := env.Data
	return Verification{
		Reference: tx.Reference,
		Status:    strings.ToLower(strings.TrimSpace(tx.Status)),
		Amount:    tx.Amount,
		Currency:  strings.ToUpper(tx.Currency),
		OrderID:   tx.Metadata.OrderID,
		PaidAt:    tx.PaidAt,
	}, nil
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	body := map[string]any{
		"email":    req.Email,
		"amount":   req.AmountMinor.StringFixed(0),
		"currency": req.Currency,
		"metadata": map[string]string{"order_id": req.OrderID},
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	var env paystackEnvelope[struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &env); err != nil {
		return InitializeResponse{}, err
	}
	return InitializeResponse{
		Reference:        env.Data.Reference,
		AuthorizationURL: env.Data.AuthorizationURL,
		AccessCode:       env.Data.AccessCode,
	}, nil
}

func (c *PaystackClient) RefundTransaction(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	body := map[string]any{"transaction": req.Reference}
	if req.AmountMinor.IsPositive() {
		body["amount"] = req.AmountMinor.StringFixed(0)
	}
	if req.Reason != "" {
		body["merchant_note"] = req.Reason
	}

	var env paystackEnvelope[struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}]
	if err := c.do(ctx, http.MethodPost, "/refund", body, &env); err != nil {
		return RefundResponse{}, err
	}
	return RefundResponse{RefundRef: env.Data.ID.String(), Status: env.Data.Status}, nil
}

// do sends one request. Transport failures, 429 and 5xx wrap ErrGatewayUnavailable;
// other 4xx and status=false wrap ErrGatewayDeclined.
func (c *PaystackClient) do(ctx context.Context, method, path string, in any, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, paystackMaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s %s returned %d", ErrGatewayUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var e paystackEnvelope[json.RawMessage]
		msg := strconv.Itoa(resp.StatusCode)
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			msg += " " + e.Message
		}
		return fmt.Errorf("%w: %s", ErrGatewayDeclined, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if s, ok := out.(interface{ ok() (bool, string) }); ok {
		if good, msg := s.ok(); !good {
			return fmt.Errorf("%w: %s", ErrGatewayDeclined, msg)
		}
	}
	return nil
}

func (e *paystackEnvelope[T]) ok() (bool, string) { return e.Status, e.Message }
