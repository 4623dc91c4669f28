package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/server/middleware"
	"github.com/mamadbah2/vaccine-orders/internal/service/orders"
)

// OrderHandler serves checkout and the order back office.
type OrderHandler struct {
	svc    *orders.Service
	logger *zap.Logger
}

// NewOrderHandler constructs the HTTP handler adapter.
func NewOrderHandler(svc *orders.Service, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{svc: svc, logger: logger}
}

// List returns the caller's orders, or every order for staff. ?status= narrows the list.
func (h *OrderHandler) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	status := models.OrderStatus(strings.TrimSpace(c.Query("status")))

	list, err := h.svc.List(c.Request.Context(), *user, status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	user, _ := middleware.CurrentUser(c)

	o, err := h.svc.Get(c.Request.Context(), *user, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Create(c *gin.Context) {
	var in models.NewOrder
	if err := bindJSON(c.Request, &in); err != nil {
		writeError(c, h.logger, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	o, err := h.svc.Create(c.Request.Context(), *user, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) SetStatus(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	var req models.SetStatusRequest
	if err := bindJSON(c.Request, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	if _, err := h.svc.SetStatus(c.Request.Context(), *user, id, req.Status); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Status updated."})
}

type internalNoteRequest struct {
	Note string `json:"note"`
}

func (h *OrderHandler) AddInternalNote(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	var req internalNoteRequest
	if err := bindJSON(c.Request, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	if _, err := h.svc.AddInternalNote(c.Request.Context(), *user, id, req.Note); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Internal note added."})
}
