package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pehlione.com/shop/internal/shared/apperr"
)

const (
	CtxKeyActor = "actor"

	RoleAdmin = "admin"
)

// AdminClaims is the bearer token payload for /admin routes.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAdmin accepts an HS256 bearer token with role=admin and stores its subject as
// the acting user.
func RequireAdmin(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			Fail(c, apperr.UnauthorizedErr("Authentication required.").WithErr(err))
			return
		}
		if claims.Role != RoleAdmin {
			Fail(c, apperr.ForbiddenErr("Admin role required."))
			return
		}

		actor := claims.Subject
		if actor == "" {
			actor = "admin"
		}
		c.Set(CtxKeyActor, actor)
		c.Next()
	}
}

func Actor(c *gin.Context) string {
	return c.GetString(CtxKeyActor)
}

func parseBearer(header string, secret []byte) (*AdminClaims, error) {
	if len(secret) == 0 {
		return nil, errors.New("admin secret not configured")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("missing bearer token")
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
