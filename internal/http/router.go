package apphttp

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"pehlione.com/shop/internal/http/handlers"
	"pehlione.com/shop/internal/http/handlers/admin"
	"pehlione.com/shop/internal/http/middleware"
)

type Deps struct {
	Logger         *slog.Logger
	Webhooks       *handlers.WebhookHandler
	Orders         *handlers.OrdersHandler
	AdminOrders    *admin.OrdersHandler
	AdminJWTSecret []byte
	WebhookLimiter *middleware.RateLimiter
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func() error
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		// ErrorHandler wraps Recovery so a recovered panic is still rendered.
		middleware.ErrorHandler(d.Logger),
		middleware.Recovery(d.Logger),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if d.Webhooks != nil {
		r.POST("/webhooks/paystack", middleware.RateLimit(d.WebhookLimiter), d.Webhooks.Handle)
	}

	api := r.Group("/api")
	if d.Orders != nil {
		api.POST("/orders", d.Orders.Create)
		api.GET("/orders/:id", d.Orders.Get)
		api.POST("/orders/:id/pay", d.Orders.Pay)
	}

	if d.AdminOrders != nil {
		adm := api.Group("/admin", middleware.RequireAdmin(d.AdminJWTSecret))
		adm.GET("/orders", d.AdminOrders.List)
		adm.GET("/orders/:id", d.AdminOrders.Detail)
		adm.PATCH("/orders/:id", d.AdminOrders.Update)
		adm.DELETE("/orders/:id", d.AdminOrders.Delete)
		adm.POST("/orders/:id/refund", d.AdminOrders.Refund)
	}

	return r
}
