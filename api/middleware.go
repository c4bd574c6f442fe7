package api

import (
	"strings"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/service/accounts"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	claimsKey       = "claims"
)

type TokenParser interface {
	ParseToken(raw string) (*accounts.Claims, error)
}

// RequestID reuses the caller's X-Request-ID or generates one and stores it in the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "http request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"remote_addr", c.ClientIP(),
		)
	}
}

// Authenticate requires a valid bearer token and exposes its claims to later handlers.
func Authenticate(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			respondError(c, domain.ErrUnauthorized)
			return
		}
		claims, err := parser.ParseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithAccountID(c.Request.Context(), claims.AccountID))
		c.Next()
	}
}

// RequireRoles passes when the caller holds any of the roles. Owner always passes.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	allowed := append([]domain.Role{domain.RoleOwner}, roles...)
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			respondError(c, domain.ErrUnauthorized)
			return
		}
		if !claims.HasRole(allowed...) {
			respondError(c, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*accounts.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*accounts.Claims)
	return claims, ok
}
