package vaxapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

func idPath(collection string, id int64) string {
	return fmt.Sprintf("/%s/%d/", collection, id)
}

func productQuery(productID int64) map[string]string {
	if productID == 0 {
		return nil
	}
	return map[string]string{"product": strconv.FormatInt(productID, 10)}
}

// Auth

type csrfResponse struct {
	Detail    string `json:"detail"`
	CSRFToken string `json:"csrfToken"`
}

// CSRF fetches a fresh CSRF token.
func (c *Client) CSRF(ctx context.Context) (string, error) {
	var out csrfResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/csrf/", anonymous: true}, &out); err != nil {
		return "", err
	}
	return out.CSRFToken, nil
}

// CurrentUser returns the token owner, or nil when the backend reports no session.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out *models.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/user/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges credentials for an API token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out models.AuthToken
	err := c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/auth/login/",
		anonymous: true,
		csrf:      true,
		body:      models.LoginRequest{Username: username, Password: password},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Key, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/auth/logout/", auth: true}, nil)
}

// Register creates a shopper account.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register/", anonymous: true, csrf: true, body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Products

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "/products/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id int64) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: idPath("products", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct posts p as JSON, or as multipart when img is set.
func (c *Client) CreateProduct(ctx context.Context, p models.Product, img *Image) (*models.Product, error) {
	in := call{method: http.MethodPost, path: "/products/", auth: true}
	if img != nil {
		in.form = productFields(p)
		in.image = img
	} else {
		in.body = productPayload(p)
	}
	var out models.Product
	if err := c.do(ctx, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct patches the given fields of a product.
func (c *Client) UpdateProduct(ctx context.Context, id int64, fields map[string]any) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, call{method: http.MethodPatch, path: idPath("products", id), auth: true, body: fields}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dose packs

// DosePacks lists the packs of one product, or all packs when productID is 0.
func (c *Client) DosePacks(ctx context.Context, productID int64) ([]models.DosePack, error) {
	var out []models.DosePack
	if err := c.do(ctx, call{method: http.MethodGet, path: "/dosepacks/", query: productQuery(productID)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDosePack(ctx context.Context, d models.DosePack) (*models.DosePack, error) {
	body := map[string]any{"product": d.ProductID, "doses": d.Doses, "units_per_pack": d.UnitsPerPack}
	var out models.DosePack
	if err := c.do(ctx, call{method: http.MethodPost, path: "/dosepacks/", auth: true, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDosePack(ctx context.Context, id int64, doses, unitsPerPack int) (*models.DosePack, error) {
	body := map[string]any{"doses": doses, "units_per_pack": unitsPerPack}
	var out models.DosePack
	if err := c.do(ctx, call{method: http.MethodPatch, path: idPath("dosepacks", id), auth: true, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDosePack(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: idPath("dosepacks", id), auth: true}, nil)
}

// Batches

// Batches lists batches by expiry, for one product or all when productID is 0.
func (c *Client) Batches(ctx context.Context, productID int64) ([]models.Batch, error) {
	var out []models.Batch
	if err := c.do(ctx, call{method: http.MethodGet, path: "/batches/", auth: true, query: productQuery(productID)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBatch posts b as JSON, or as multipart when img is set.
func (c *Client) CreateBatch(ctx context.Context, b models.Batch, img *Image) (*models.Batch, error) {
	in := call{method: http.MethodPost, path: "/batches/", auth: true}
	if img != nil {
		in.form = batchFields(b)
		in.image = img
	} else {
		in.body = batchPayload(b)
	}
	var out models.Batch
	if err := c.do(ctx, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceBatch PUTs b, as multipart when img is set.
func (c *Client) ReplaceBatch(ctx context.Context, b models.Batch, img *Image) (*models.Batch, error) {
	in := call{method: http.MethodPut, path: idPath("batches", b.ID), auth: true}
	if img != nil {
		in.form = batchFields(b)
		in.image = img
	} else {
		in.body = batchPayload(b)
	}
	var out models.Batch
	if err := c.do(ctx, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBatch patches the given fields of a batch.
func (c *Client) UpdateBatch(ctx context.Context, id int64, fields map[string]any) (*models.Batch, error) {
	var out models.Batch
	if err := c.do(ctx, call{method: http.MethodPatch, path: idPath("batches", id), auth: true, body: fields}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBatch(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: idPath("batches", id), auth: true}, nil)
}

// LowStock lists batches with few packs left or close to expiry.
func (c *Client) LowStock(ctx context.Context) ([]models.Batch, error) {
	var out []models.Batch
	if err := c.do(ctx, call{method: http.MethodGet, path: "/batches/low_stock/", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// BulkUpdateStock applies several stock adjustments and returns the server summary.
func (c *Client) BulkUpdateStock(ctx context.Context, updates []models.StockUpdate) (string, error) {
	var out detailResponse
	body := map[string]any{"updates": updates}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/batches/bulk_update_stock/", auth: true, body: body}, &out); err != nil {
		return "", err
	}
	return out.Detail, nil
}

// InventoryLogs lists stock movements newest first.
func (c *Client) InventoryLogs(ctx context.Context, productID int64) ([]models.InventoryLog, error) {
	var out []models.InventoryLog
	if err := c.do(ctx, call{method: http.MethodGet, path: "/inventory-logs/", auth: true, query: productQuery(productID)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders

// Orders lists visible orders, optionally narrowed to one status.
func (c *Client) Orders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var query map[string]string
	if status != "" {
		query = map[string]string{"status": string(status)}
	}
	var out []models.Order
	if err := c.do(ctx, call{method: http.MethodGet, path: "/orders/", auth: true, query: query}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Order(ctx context.Context, id int64) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, call{method: http.MethodGet, path: idPath("orders", id), auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder submits a checkout payload.
func (c *Client) CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error) {
	var out models.Order
	if err := c.do(ctx, call{method: http.MethodPost, path: "/orders/", auth: true, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetStatus asks the backend to move an order to status.
func (c *Client) SetStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	body := models.SetStatusRequest{Status: status}
	return c.do(ctx, call{method: http.MethodPost, path: idPath("orders", id) + "set_status/", auth: true, body: body}, nil)
}

// AddInternalNote appends a staff note to an order.
func (c *Client) AddInternalNote(ctx context.Context, id int64, note string) error {
	body := map[string]string{"note": note}
	return c.do(ctx, call{method: http.MethodPost, path: idPath("orders", id) + "add_internal_note/", auth: true, body: body}, nil)
}

// Payloads

func productPayload(p models.Product) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"name":                 p.Name,
		"brand":                p.Brand,
		"species":              p.Species,
		"product_type":         p.Type,
		"manufacturer":         p.Manufacturer,
		"description":          p.Description,
		"active_ingredients":   p.ActiveIngredients,
		"cold_chain_required":  p.ColdChainRequired,
		"storage_temp_range":   p.StorageTempRange,
		"minimum_order_qty":    p.MinimumOrderQty,
		"lead_time_days":       p.LeadTimeDays,
		"administration_notes": p.AdministrationNotes,
		"image_alt":            p.ImageAlt,
		"tags":                 tags,
	}
}

func productFields(p models.Product) map[string]string {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, _ := json.Marshal(tags)
	return map[string]string{
		"name":                 p.Name,
		"brand":                p.Brand,
		"species":              string(p.Species),
		"product_type":         string(p.Type),
		"manufacturer":         p.Manufacturer,
		"description":          p.Description,
		"active_ingredients":   p.ActiveIngredients,
		"cold_chain_required":  strconv.FormatBool(p.ColdChainRequired),
		"storage_temp_range":   p.StorageTempRange,
		"minimum_order_qty":    strconv.Itoa(p.MinimumOrderQty),
		"lead_time_days":       strconv.Itoa(p.LeadTimeDays),
		"administration_notes": p.AdministrationNotes,
		"image_alt":            p.ImageAlt,
		"tags":                 string(rawTags),
	}
}

func batchPayload(b models.Batch) map[string]any {
	out := map[string]any{
		"product":           b.ProductID,
		"batch_number":      b.BatchNumber,
		"expiry_date":       b.ExpiryDate,
		"quantity":          b.Quantity,
		"quantity_reserved": b.QuantityReserved,
		"storage_location":  b.StorageLocation,
		"image_alt":         b.ImageAlt,
	}
	if b.Status != "" {
		out["status"] = b.Status
	}
	return out
}

func batchFields(b models.Batch) map[string]string {
	out := map[string]string{
		"product":           strconv.FormatInt(b.ProductID, 10),
		"batch_number":      b.BatchNumber,
		"expiry_date":       b.ExpiryDate,
		"quantity":          strconv.Itoa(b.Quantity),
		"quantity_reserved": strconv.Itoa(b.QuantityReserved),
		"storage_location":  b.StorageLocation,
		"image_alt":         b.ImageAlt,
	}
	if b.Status != "" {
		out["status"] = string(b.Status)
	}
	return out
}
