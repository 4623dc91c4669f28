package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/server/middleware"
	"github.com/mamadbah2/vaccine-orders/internal/service/auth"
)

const csrfCookie = "csrftoken"

// AuthHandler serves login, logout, registration and the CSRF bootstrap.
type AuthHandler struct {
	svc     *auth.Service
	csrfTTL time.Duration
	logger  *zap.Logger
}

// NewAuthHandler constructs the HTTP handler adapter.
func NewAuthHandler(svc *auth.Service, csrfTTL time.Duration, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, csrfTTL: csrfTTL, logger: logger}
}

// CurrentUser returns the authenticated user or null.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CSRF issues a token that login and register expect in the X-CSRFToken header.
func (h *AuthHandler) CSRF(c *gin.Context) {
	token, err := h.svc.IssueCSRF()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(csrfCookie, token, int(h.csrfTTL.Seconds()), "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"detail": "CSRF cookie set", "csrfToken": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := bindJSON(c.Request, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	missing := gin.H{}
	if req.Username == "" {
		missing["username"] = []string{"This field is required."}
	}
	if req.Password == "" {
		missing["password"] = []string{"This field is required."}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, missing)
		return
	}

	token, _, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := bindJSON(c.Request, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
