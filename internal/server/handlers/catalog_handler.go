package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/server/middleware"
	"github.com/mamadbah2/vaccine-orders/internal/service/catalog"
)

// CatalogHandler serves products, dose packs, batches and inventory logs.
type CatalogHandler struct {
	svc    *catalog.Service
	logger *zap.Logger
}

// NewCatalogHandler constructs the HTTP handler adapter.
func NewCatalogHandler(svc *catalog.Service, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{svc: svc, logger: logger}
}

// Products

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	p, err := h.svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var p models.Product
	img, closer, err := bindEntity(c, &p, productForm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer closeQuietly(closer)

	p.ID = 0
	created, err := h.svc.CreateProduct(c.Request.Context(), p, img)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProduct serves PUT and PATCH; the body is decoded over the stored product.
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	existing, err := h.svc.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	p := *existing
	img, closer, err := bindEntity(c, &p, productForm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer closeQuietly(closer)

	p.ID = id
	updated, err := h.svc.UpdateProduct(c.Request.Context(), p, img)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	if err := h.svc.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Dose packs

func (h *CatalogHandler) ListDosePacks(c *gin.Context) {
	productID, err := queryID(c, "product")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	packs, err := h.svc.ListDosePacks(c.Request.Context(), productID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, packs)
}

func (h *CatalogHandler) GetDosePack(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	d, err := h.svc.GetDosePack(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *CatalogHandler) CreateDosePack(c *gin.Context) {
	var d models.DosePack
	if err := bindJSON(c.Request, &d); err != nil {
		writeError(c, h.logger, err)
		return
	}
	d.ID = 0
	created, err := h.svc.CreateDosePack(c.Request.Context(), d)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CatalogHandler) UpdateDosePack(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	existing, err := h.svc.GetDosePack(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	d := *existing
	if err := bindJSON(c.Request, &d); err != nil {
		writeError(c, h.logger, err)
		return
	}
	d.ID = id
	updated, err := h.svc.UpdateDosePack(c.Request.Context(), d)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CatalogHandler) DeleteDosePack(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	if err := h.svc.DeleteDosePack(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Batches

func (h *CatalogHandler) ListBatches(c *gin.Context) {
	productID, err := queryID(c, "product")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	batches, err := h.svc.ListBatches(c.Request.Context(), productID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func (h *CatalogHandler) GetBatch(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	b, err := h.svc.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *CatalogHandler) CreateBatch(c *gin.Context) {
	var b models.Batch
	img, closer, err := bindEntity(c, &b, batchForm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer closeQuietly(closer)

	actor, _ := middleware.CurrentUser(c)
	b.ID = 0
	created, err := h.svc.CreateBatch(c.Request.Context(), actor, b, img)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateBatch serves PUT and PATCH; the body is decoded over the stored batch.
func (h *CatalogHandler) UpdateBatch(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	existing, err := h.svc.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	b := *existing
	img, closer, err := bindEntity(c, &b, batchForm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer closeQuietly(closer)

	b.ID = id
	updated, err := h.svc.UpdateBatch(c.Request.Context(), b, img)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CatalogHandler) DeleteBatch(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	if err := h.svc.DeleteBatch(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LowStock lists batches with few packs left or close to expiry.
func (h *CatalogHandler) LowStock(c *gin.Context) {
	batches, err := h.svc.LowStock(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

type bulkUpdateRequest struct {
	Updates []models.StockUpdate `json:"updates"`
}

func (h *CatalogHandler) BulkUpdateStock(c *gin.Context) {
	var req bulkUpdateRequest
	if err := bindJSON(c.Request, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	actor, _ := middleware.CurrentUser(c)
	if _, err := h.svc.BulkUpdateStock(c.Request.Context(), actor, req.Updates); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": fmt.Sprintf("Updated %d batches", len(req.Updates))})
}

// Inventory logs

func (h *CatalogHandler) ListLogs(c *gin.Context) {
	productID, err := queryID(c, "product")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	logs, err := h.svc.ListLogs(c.Request.Context(), productID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *CatalogHandler) GetLog(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	logs, err := h.svc.ListLogs(c.Request.Context(), 0)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	for _, l := range logs {
		if l.ID == id {
			c.JSON(http.StatusOK, l)
			return
		}
	}
	c.JSON(http.StatusNotFound, notFound)
}
