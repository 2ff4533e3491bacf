package apphttp

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pehlione.com/shop/internal/http/handlers"
	"pehlione.com/shop/internal/http/handlers/admin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouter_Health(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ready := error(nil)
	r := NewRouter(Deps{Logger: logger, Ready: func() error { return ready }})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	ready = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(Deps{
		Logger:         logger,
		AdminOrders:    &admin.OrdersHandler{},
		Webhooks:       handlers.NewWebhookHandler(logger, nil),
		AdminJWTSecret: []byte("secret"),
	})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/orders"},
		{http.MethodPatch, "/api/admin/orders/x"},
		{http.MethodDelete, "/api/admin/orders/x"},
		{http.MethodPost, "/api/admin/orders/x/refund"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}
