package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pehlione.com/shop/internal/http/handlers"
	"pehlione.com/shop/internal/http/middleware"
	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
	"pehlione.com/shop/internal/shared/apperr"
)

const pageSize = 30

type OrdersHandler struct {
	Repo       *orders.Repo
	Admin      *orders.AdminService
	RefundSvc  *payments.RefundService
	Deliveries *payments.GormDeliveryLog
}

func NewOrdersHandler(repo *orders.Repo, admin *orders.AdminService, refundSvc *payments.RefundService, deliveries *payments.GormDeliveryLog) *OrdersHandler {
	return &OrdersHandler{Repo: repo, Admin: admin, RefundSvc: refundSvc, Deliveries: deliveries}
}

// GET /admin/orders?q=&status=&payment_status=&page=
func (h *OrdersHandler) List(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	payStatus := strings.TrimSpace(c.Query("payment_status"))
	if status != "" && !orders.Status(status).Valid() {
		middleware.Fail(c, apperr.InvalidErr("Unknown status.", map[string]string{"status": "unknown value"}))
		return
	}
	if payStatus != "" && !orders.PaymentStatus(payStatus).Valid() {
		middleware.Fail(c, apperr.InvalidErr("Unknown payment status.", map[string]string{"payment_status": "unknown value"}))
		return
	}

	page := parseInt(c.Query("page"), 1)
	res, err := h.Repo.AdminList(c.Request.Context(), orders.AdminListParams{
		Q:             strings.TrimSpace(c.Query("q")),
		Status:        status,
		PaymentStatus: payStatus,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       res.Items,
		"total":       res.Total,
		"page":        page,
		"total_pages": pagesFromTotal(res.Total, pageSize),
	})
}

// GET /admin/orders/:id
func (h *OrdersHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	o, ev, err := h.Repo.AdminGetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	fin, err := h.Repo.AdminListFinancial(ctx, id)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := gin.H{
		"order":     o,
		"events":    ev,
		"financial": fin,
	}
	if h.Deliveries != nil && o.Reference() != "" {
		d, err := h.Deliveries.Recent(ctx, o.Reference(), 20)
		if err != nil {
			middleware.Fail(c, apperr.Wrap(err))
			return
		}
		out["webhook_deliveries"] = d
	}
	c.JSON(http.StatusOK, out)
}

// PATCH /admin/orders/:id
// Only status and notes may be sent. Any other key, payment fields included, is a 400.
func (h *OrdersHandler) Update(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Request body is invalid.", nil))
		return
	}

	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil || raw == nil {
		middleware.Fail(c, apperr.InvalidErr("Request body must be a JSON object.", nil))
		return
	}

	fields := map[string]string{}
	for k := range raw {
		if !orders.WritableFields[k] {
			fields[k] = "field is not writable"
		}
	}
	if len(fields) > 0 {
		middleware.Fail(c, apperr.InvalidErr("Only status and notes can be changed.", fields).WithErr(orders.ErrFieldNotWritable))
		return
	}

	in := orders.UpdateInput{OrderID: c.Param("id"), ActorUserID: middleware.Actor(c)}
	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil || !orders.Status(s).Valid() {
			middleware.Fail(c, apperr.InvalidErr("Invalid status.", map[string]string{"status": "unknown value"}))
			return
		}
		st := orders.Status(s)
		in.Status = &st
	}
	if v, ok := raw["notes"]; ok {
		var n *string
		if err := json.Unmarshal(v, &n); err != nil {
			middleware.Fail(c, apperr.InvalidErr("Invalid notes.", map[string]string{"notes": "must be a string"}))
			return
		}
		if n == nil {
			empty := ""
			n = &empty
		}
		if len(*n) > 1000 {
			middleware.Fail(c, apperr.InvalidErr("Invalid notes.", map[string]string{"notes": "must be at most 1000 characters"}))
			return
		}
		in.Notes = n
	}

	o, err := h.Admin.Update(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, handlers.MapError(err))
		return
	}
	c.JSON(http.StatusOK, o)
}

// DELETE /admin/orders/:id
func (h *OrdersHandler) Delete(c *gin.Context) {
	if err := h.Admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, handlers.MapError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

type refundRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// POST /admin/orders/:id/refund
func (h *OrdersHandler) Refund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.Fail(c, apperr.InvalidErr("Invalid request.", nil))
			return
		}
	}

	res, err := h.RefundSvc.RefundOrder(c.Request.Context(), payments.RefundOrderInput{
		OrderID:     c.Param("id"),
		ActorUserID: middleware.Actor(c),
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		middleware.Fail(c, handlers.MapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":   res.OrderID,
		"refund_ref": res.RefundRef,
		"status":     res.Status,
		"amount":     res.Amount,
		"idempotent": res.Idempotent,
	})
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func pagesFromTotal(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}
