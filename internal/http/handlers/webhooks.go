package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pehlione.com/shop/internal/http/middleware"
	"pehlione.com/shop/internal/modules/payments"
)

const maxWebhookBody = 1 << 20

type WebhookProcessor interface {
	Handle(ctx context.Context, rawBody []byte, signature string) (payments.Result, error)
}

type WebhookHandler struct {
	Logger *slog.Logger
	Svc    WebhookProcessor
}

func NewWebhookHandler(logger *slog.Logger, svc WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Svc: svc}
}

// POST /webhooks/paystack
// The body is read raw; the signature covers the exact bytes.
func (h *WebhookHandler) Handle(c *gin.Context) {
	rid := middleware.GetRequestID(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"received": false, "error": "invalid body", "request_id": rid})
		return
	}

	res, err := h.Svc.Handle(c.Request.Context(), body, c.GetHeader(payments.SignatureHeader))
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": res.Outcome})
		return
	}

	class := payments.Classify(err)
	switch {
	case class.IsClientError():
		c.JSON(http.StatusBadRequest, gin.H{"received": false, "error": string(class), "request_id": rid})
	case class == payments.ClassTransient:
		// ask the gateway to redeliver
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(RetryAfter.Seconds()))))
		c.JSON(http.StatusServiceUnavailable, gin.H{"received": false, "error": string(class), "request_id": rid})
	default:
		h.Logger.ErrorContext(c.Request.Context(), "webhook internal error", "request_id", rid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"received": false, "error": "internal", "request_id": rid})
	}
}
