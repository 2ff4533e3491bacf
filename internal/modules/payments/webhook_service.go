package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/storage"
	"pehlione.com/shop/internal/tracing"
)

// OrderStore is what reconciliation needs from persistence.
type OrderStore interface {
	Get(ctx context.Context, id string) (orders.Order, error)
	CommitPayment(ctx context.Context, c orders.PaymentCommit) (bool, error)
}

type Outcome string

const (
	OutcomeProcessed  Outcome = "processed"
	OutcomeIdempotent Outcome = "idempotent"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeRejected   Outcome = "rejected"
)

type Result struct {
	Outcome   Outcome
	EventType string
	Reference string
	OrderID   string
	Overpaid  bool
}

type WebhookConfig struct {
	Provider       string
	Secret         []byte
	GatewayTimeout time.Duration
	StoreTimeout   time.Duration
}

// WebhookService reconciles gateway charge notifications against orders. The gateway's
// verify endpoint is the source of truth; the webhook body only says which transaction to
// look at.
type WebhookService struct {
	store      OrderStore
	gateway    TransactionVerifier
	cfg        WebhookConfig
	archive    storage.Archive
	deliveries DeliveryLog
	logger     *slog.Logger
	now        func() time.Time
}

func NewWebhookService(store OrderStore, gateway TransactionVerifier, cfg WebhookConfig) *WebhookService {
	if cfg.Provider == "" {
		cfg.Provider = PaystackProvider
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &WebhookService{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *WebhookService) SetArchive(a storage.Archive) {
	s.archive = a
}

func (s *WebhookService) SetDeliveryLog(d DeliveryLog) {
	s.deliveries = d
}

// Handle authenticates and reconciles one webhook call. rawBody must be the exact bytes
// received. A nil error means the caller should acknowledge; Classify(err) tells it how
// to answer otherwise.
func (s *WebhookService) Handle(ctx context.Context, rawBody []byte, signature string) (Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "payments.reconcile", trace.WithAttributes(
		attribute.String("payment.provider", s.cfg.Provider),
	))
	defer span.End()

	if !VerifySignature(rawBody, signature, s.cfg.Secret) {
		s.logger.WarnContext(ctx, "webhook signature rejected", "provider", s.cfg.Provider, "body_bytes", len(rawBody))
		span.SetStatus(codes.Error, "invalid signature")
		return Result{Outcome: OutcomeRejected}, ErrInvalidSignature
	}

	receivedAt := s.now()
	res, archiveKey, err := s.reconcile(ctx, rawBody, receivedAt)
	if err != nil {
		res.Outcome = OutcomeRejected
	}

	span.SetAttributes(
		attribute.String("payment.event", res.EventType),
		attribute.String("payment.reference", res.Reference),
		attribute.String("order.id", res.OrderID),
		attribute.String("payment.outcome", string(res.Outcome)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(Classify(err)))
	}

	s.logResult(ctx, res, err)
	s.recordDelivery(ctx, res, archiveKey, receivedAt, err)
	return res, err
}

func (s *WebhookService) reconcile(ctx context.Context, rawBody []byte, receivedAt time.Time) (Result, string, error) {
	var res Result

	ev, err := ParseEvent(rawBody)
	if err != nil {
		return res, "", err
	}
	res.EventType = ev.Event
	res.Reference = ev.Data.Reference
	res.OrderID = ev.Data.Metadata.OrderID

	archiveKey := s.archiveBody(ctx, rawBody, res.Reference, receivedAt)

	if ev.Event != EventChargeSuccess {
		res.Outcome = OutcomeIgnored
		return res, archiveKey, nil
	}
	if res.Reference == "" || res.OrderID == "" {
		return res, archiveKey, ErrMissingMetadata
	}

	o, err := s.loadOrder(ctx, res.OrderID)
	if err != nil {
		return res, archiveKey, err
	}

	if o.PaymentStatus == orders.PaymentPaid && o.Reference() == res.Reference {
		res.Outcome = OutcomeIdempotent
		return res, archiveKey, nil
	}
	if err := payableOrErr(o); err != nil {
		return res, archiveKey, err
	}

	v, err := s.verify(ctx, res.Reference)
	if err != nil {
		return res, archiveKey, err
	}
	if v.Status != VerificationSuccess {
		return res, archiveKey, fmt.Errorf("%w: gateway status %q", ErrPaymentNotSucceeded, v.Status)
	}
	if v.Reference != "" && v.Reference != res.Reference {
		return res, archiveKey, fmt.Errorf("%w: gateway returned reference %q", ErrMetadataMismatch, v.Reference)
	}

	expected := o.ExpectedMinorUnits()
	if v.Currency != "" && !strings.EqualFold(v.Currency, o.Currency) {
		return res, archiveKey, fmt.Errorf("%w: currency %s, order is %s", ErrAmountMismatch, v.Currency, o.Currency)
	}
	if v.Amount.LessThan(expected) {
		return res, archiveKey, fmt.Errorf("%w: paid %s, expected %s", ErrAmountMismatch, v.Amount, expected)
	}
	if v.Amount.GreaterThan(expected) {
		res.Overpaid = true
		s.logger.WarnContext(ctx, "payment exceeds order total",
			"order_id", o.ID, "reference", res.Reference, "paid_minor", v.Amount.String(), "expected_minor", expected.String())
	}

	if v.OrderID != o.ID {
		return res, archiveKey, fmt.Errorf("%w: gateway order_id %q", ErrMetadataMismatch, v.OrderID)
	}

	next := o.Status
	if orders.CanTransition(o.Status, orders.StatusProcessing, orders.StatusTransitions) {
		next = orders.StatusProcessing
	}
	at := s.now()
	if v.PaidAt != nil && !v.PaidAt.IsZero() {
		at = *v.PaidAt
	}

	committed, err := s.commit(ctx, orders.PaymentCommit{
		OrderID:        o.ID,
		Reference:      res.Reference,
		ObservedStatus: o.Status,
		NextStatus:     next,
		Amount:         v.Amount.Shift(-2),
		Currency:       o.Currency,
		Email:          o.Email,
		At:             at,
	})
	if err != nil {
		return res, archiveKey, err
	}
	if committed {
		res.Outcome = OutcomeProcessed
		return res, archiveKey, nil
	}

	// Lost the compare-and-swap; see what won.
	outcome, err := s.resolveLostRace(ctx, o.ID, res.Reference)
	res.Outcome = outcome
	return res, archiveKey, err
}

func payableOrErr(o orders.Order) error {
	if o.Status == orders.StatusCancelled || o.PaymentStatus == orders.PaymentRefunded {
		return fmt.Errorf("%w: status=%s payment_status=%s", ErrOrderTerminal, o.Status, o.PaymentStatus)
	}
	if o.PaymentStatus == orders.PaymentPaid {
		return fmt.Errorf("%w: %s", ErrPaidOtherReference, o.Reference())
	}
	if !orders.CanReachPaid(o.PaymentStatus) {
		return fmt.Errorf("%w: payment_status=%s", ErrOrderNotPayable, o.PaymentStatus)
	}
	return nil
}

func (s *WebhookService) resolveLostRace(ctx context.Context, orderID, reference string) (Outcome, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.PaymentStatus == orders.PaymentPaid && o.Reference() == reference {
		return OutcomeIdempotent, nil
	}
	if err := payableOrErr(o); err != nil {
		return "", err
	}
	// Still payable but the lifecycle status moved under us.
	return "", fmt.Errorf("%w: status now %s", ErrConcurrentUpdate, o.Status)
}

func (s *WebhookService) loadOrder(ctx context.Context, id string) (orders.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	o, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return orders.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return orders.Order{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return o, nil
}

func (s *WebhookService) verify(ctx context.Context, reference string) (Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	ctx, span := tracing.Tracer().Start(ctx, "payments.verify_transaction")
	defer span.End()

	v, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrPaymentNotSucceeded) || errors.Is(err, ErrGatewayUnavailable) {
			return Verification{}, err
		}
		return Verification{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return v, nil
}

func (s *WebhookService) commit(ctx context.Context, c orders.PaymentCommit) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	ok, err := s.store.CommitPayment(ctx, c)
	if err != nil {
		if errors.Is(err, orders.ErrReferenceInUse) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *WebhookService) archiveBody(ctx context.Context, body []byte, reference string, at time.Time) string {
	if s.archive == nil {
		return ""
	}
	key := storage.WebhookKey(s.cfg.Provider, reference, at)
	actx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.archive.Put(actx, key, body); err != nil {
		s.logger.WarnContext(ctx, "webhook archive failed", "key", key, "err", err)
		return ""
	}
	return key
}

func (s *WebhookService) recordDelivery(ctx context.Context, res Result, archiveKey string, at time.Time, err error) {
	if s.deliveries == nil {
		return
	}
	d := WebhookDelivery{
		ID:         uuid.NewString(),
		Provider:   s.cfg.Provider,
		EventType:  truncate(res.EventType, 64),
		Reference:  truncate(res.Reference, 128),
		OrderID:    truncate(res.OrderID, 64),
		Outcome:    string(res.Outcome),
		ReceivedAt: at,
	}
	if archiveKey != "" {
		d.ArchiveKey = &archiveKey
	}
	if err != nil {
		class := string(Classify(err))
		msg := truncate(err.Error(), 250)
		d.ErrorClass = &class
		d.Error = &msg
	}

	// The caller may already be gone; the record should still land.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	if rerr := s.deliveries.Record(rctx, d); rerr != nil {
		s.logger.WarnContext(ctx, "webhook delivery not recorded", "reference", res.Reference, "err", rerr)
	}
}

func (s *WebhookService) logResult(ctx context.Context, res Result, err error) {
	attrs := []any{
		"provider", s.cfg.Provider,
		"event", res.EventType,
		"reference", res.Reference,
		"order_id", res.OrderID,
		"outcome", res.Outcome,
	}
	if err == nil {
		s.logger.InfoContext(ctx, "webhook reconciled", attrs...)
		return
	}

	class := Classify(err)
	attrs = append(attrs, "class", class, "err", err)
	switch {
	case class.IsClientError():
		s.logger.WarnContext(ctx, "webhook rejected", attrs...)
	default:
		s.logger.ErrorContext(ctx, "webhook reconciliation failed", attrs...)
	}
}
