package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pehlione.com/shop/internal/http/middleware"
	"pehlione.com/shop/internal/http/validation"
	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
	"pehlione.com/shop/internal/shared/apperr"
)

type OrderCreator interface {
	Create(ctx context.Context, in orders.CreateInput) (orders.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, id string) (orders.Order, error)
}

type PaymentStarter interface {
	PayOrder(ctx context.Context, in payments.PayOrderInput) (payments.PayOrderResult, error)
}

type OrdersHandler struct {
	Orders   OrderCreator
	Reader   OrderReader
	Payments PaymentStarter
}

func NewOrdersHandler(svc OrderCreator, reader OrderReader, pay PaymentStarter) *OrdersHandler {
	return &OrdersHandler{Orders: svc, Reader: reader, Payments: pay}
}

type createOrderRequest struct {
	Email       string          `json:"email" binding:"required,email,max=255"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes" binding:"max=1000"`
}

// POST /api/orders
func (h *OrdersHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid order.", validation.FromBindError(err, &req)))
		return
	}

	o, err := h.Orders.Create(c.Request.Context(), orders.CreateInput{
		Email:       req.Email,
		Currency:    req.Currency,
		TotalAmount: req.TotalAmount,
		Notes:       req.Notes,
	})
	if err != nil {
		middleware.Fail(c, MapError(err))
		return
	}
	c.JSON(http.StatusCreated, o)
}

// GET /api/orders/:id
func (h *OrdersHandler) Get(c *gin.Context) {
	o, err := h.Reader.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, o)
}

type payOrderRequest struct {
	CallbackURL string `json:"callback_url" binding:"omitempty,url,max=512"`
}

// POST /api/orders/:id/pay
// Starts a gateway checkout. The order is only marked paid by the webhook.
func (h *OrdersHandler) Pay(c *gin.Context) {
	var req payOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
			return
		}
	}

	res, err := h.Payments.PayOrder(c.Request.Context(), payments.PayOrderInput{
		OrderID:     c.Param("id"),
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		middleware.Fail(c, MapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":          res.OrderID,
		"reference":         res.Reference,
		"authorization_url": res.AuthorizationURL,
		"access_code":       res.AccessCode,
		"amount_minor":      res.AmountMinor,
		"currency":          res.Currency,
	})
}
