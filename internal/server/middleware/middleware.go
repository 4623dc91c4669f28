// Package middleware holds the gin middlewares shared by every API route.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

const (
	userKey  = "auth.user"
	tokenKey = "auth.token"

	// CSRFHeader carries the token issued by the csrf endpoint.
	CSRFHeader = "X-CSRFToken"
)

// Authenticator resolves the owner of an API token.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*models.User, error)
}

// CSRFVerifier checks a CSRF token.
type CSRFVerifier interface {
	VerifyCSRF(token string) error
}

// Logger writes one access log line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// CORS allows the storefront origins to call the API with credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", CSRFHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// TokenFromHeader extracts the key of an "Authorization: Token <key>" header.
func TokenFromHeader(header string) (string, bool) {
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}

// Authenticate attaches the token owner to the context. Requests without a header pass
// through anonymously; a malformed or unknown token is rejected.
func Authenticate(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		key, ok := TokenFromHeader(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token header. No credentials provided."})
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), key)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, key)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		c.Next()
	}
}

// RequireStaff rejects anonymous and non-staff requests.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		if !user.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}

// StaffWrites lets safe methods through and requires staff for the rest.
func StaffWrites() gin.HandlerFunc {
	staff := RequireStaff()
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			staff(c)
		}
	}
}

// CSRF requires a valid token in the X-CSRFToken header.
func CSRF(v CSRFVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.VerifyCSRF(c.GetHeader(CSRFHeader)); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "CSRF Failed: CSRF token missing or incorrect."})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// CurrentToken returns the API token used for the request.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
