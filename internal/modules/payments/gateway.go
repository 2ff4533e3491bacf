package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Verification is the gateway's own record of a transaction. Amount is in minor units.
type Verification struct {
	Reference string
	Status    string // success|failed|abandoned|...
	Amount    decimal.Decimal
	Currency  string
	OrderID   string // metadata.order_id recorded at charge time
	PaidAt    *time.Time
}

const VerificationSuccess = "success"

type InitializeRequest struct {
	OrderID     string
	Email       string
	Currency    string
	AmountMinor decimal.Decimal
	CallbackURL string
}

type InitializeResponse struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

type RefundRequest struct {
	Reference   string
	AmountMinor decimal.Decimal
	Reason      string
}

type RefundResponse struct {
	RefundRef string
	Status    string // pending|processing|processed|failed
}

// TransactionVerifier is the only gateway capability the reconciliation engine needs.
// Errors wrapping ErrPaymentNotSucceeded mean the gateway answered "no"; anything else is
// treated as the gateway being unavailable.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (Verification, error)
}

type Initializer interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResponse, error)
}

type Refunder interface {
	RefundTransaction(ctx context.Context, req RefundRequest) (RefundResponse, error)
}

type Gateway interface {
	Name() string
	TransactionVerifier
	Initializer
	Refunder
}
