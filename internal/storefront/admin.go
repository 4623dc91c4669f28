package storefront

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
	"github.com/mamadbah2/vaccine-orders/pkg/clients/vaxapi"
)

const (
	// ErrMissingFields rejects a product draft with an empty required field.
	ErrMissingFields = userError("Please fill in all required fields (marked with *).")
	// ErrNoPacks rejects a product draft without dose packs.
	ErrNoPacks = userError("At least one dose pack is required.")
	// ErrInvalidPack rejects a dose pack with a zero figure.
	ErrInvalidPack = userError("All dose pack fields are required and must be greater than 0.")
)

// AdminAPI is the staff side of the backend.
type AdminAPI interface {
	Products(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, p models.Product, img *vaxapi.Image) (*models.Product, error)
	CreateDosePack(ctx context.Context, d models.DosePack) (*models.DosePack, error)
	UpdateDosePack(ctx context.Context, id int64, doses, unitsPerPack int) (*models.DosePack, error)
	DeleteDosePack(ctx context.Context, id int64) error
	Batches(ctx context.Context, productID int64) ([]models.Batch, error)
	CreateBatch(ctx context.Context, b models.Batch, img *vaxapi.Image) (*models.Batch, error)
	UpdateBatch(ctx context.Context, id int64, fields map[string]any) (*models.Batch, error)
}

// PackDraft is a dose pack entered on the new product form.
type PackDraft struct {
	Doses        int
	UnitsPerPack int
}

// ProductDraft is the new product form.
type ProductDraft struct {
	Product models.Product
	Image   *vaxapi.Image
	Packs   []PackDraft
}

// Validate applies the form checks run before anything is sent.
func (d ProductDraft) Validate() error {
	p := d.Product
	required := []string{
		p.Name, p.Brand, string(p.Species), string(p.Type), p.Description,
		p.ActiveIngredients, p.StorageTempRange, p.AdministrationNotes,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return ErrMissingFields
		}
	}
	if len(d.Packs) == 0 {
		return ErrNoPacks
	}
	for _, pk := range d.Packs {
		if pk.Doses <= 0 || pk.UnitsPerPack <= 0 {
			return ErrInvalidPack
		}
	}
	return nil
}

// Admin is the staff product and inventory pages.
type Admin struct {
	api    AdminAPI
	logger *zap.Logger
	now    func() time.Time
}

func NewAdmin(api AdminAPI, logger *zap.Logger) *Admin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Admin{api: api, logger: logger, now: time.Now}
}

// CreateProduct creates the product, then each of its dose packs in order. Packs are not
// rolled back: if one fails, the product and the packs created so far are returned with
// the error.
func (a *Admin) CreateProduct(ctx context.Context, d ProductDraft) (*models.Product, []models.DosePack, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	p, err := a.api.CreateProduct(ctx, d.Product, d.Image)
	if err != nil {
		return nil, nil, fmt.Errorf("create product: %w", err)
	}

	packs := make([]models.DosePack, 0, len(d.Packs))
	for _, pk := range d.Packs {
		created, err := a.api.CreateDosePack(ctx, models.DosePack{ProductID: p.ID, Doses: pk.Doses, UnitsPerPack: pk.UnitsPerPack})
		if err != nil {
			a.logger.Warn("dose pack creation failed, product left without all packs",
				zap.Int64("product_id", p.ID), zap.Int("doses", pk.Doses), zap.Error(err))
			return p, packs, fmt.Errorf("create dose pack of %d doses: %w", pk.Doses, err)
		}
		packs = append(packs, *created)
	}
	p.DosePacks = packs
	a.logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name), zap.Int("dose_packs", len(packs)))
	return p, packs, nil
}

// UpdateDosePack changes both pack figures.
func (a *Admin) UpdateDosePack(ctx context.Context, id int64, doses, unitsPerPack int) (*models.DosePack, error) {
	if doses <= 0 || unitsPerPack <= 0 {
		return nil, ErrInvalidPack
	}
	return a.api.UpdateDosePack(ctx, id, doses, unitsPerPack)
}

// DeleteDosePack removes a pack.
func (a *Admin) DeleteDosePack(ctx context.Context, id int64) error {
	return a.api.DeleteDosePack(ctx, id)
}

// CreateBatch registers a new batch, with an optional image.
func (a *Admin) CreateBatch(ctx context.Context, b models.Batch, img *vaxapi.Image) (*models.Batch, error) {
	created, err := a.api.CreateBatch(ctx, b, img)
	if err != nil {
		return nil, fmt.Errorf("create batch %s: %w", b.BatchNumber, err)
	}
	return created, nil
}

// EditBatch saves the batch edit row: staff enter the available quantity and the stored
// quantity becomes available plus what is already reserved. A negative value counts as 0.
func (a *Admin) EditBatch(ctx context.Context, b models.Batch, available int, expiryDate string) (*models.Batch, error) {
	if available < 0 {
		available = 0
	}
	fields := map[string]any{"quantity": available + b.QuantityReserved}
	if expiryDate != "" {
		fields["expiry_date"] = expiryDate
	}
	updated, err := a.api.UpdateBatch(ctx, b.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("update batch %s: %w", b.BatchNumber, err)
	}
	return updated, nil
}

// ProductBatches lists the batches of one product.
func (a *Admin) ProductBatches(ctx context.Context, productID int64) ([]models.Batch, error) {
	return a.api.Batches(ctx, productID)
}

// StockBadge labels a batch by its available quantity.
func StockBadge(available int) string {
	switch stock.LevelOf(available) {
	case stock.LevelOut:
		return "Out of Stock"
	case stock.LevelLow:
		return "Low Stock"
	default:
		return "In Stock"
	}
}

var expiryBadges = map[stock.ExpiryLevel]string{
	stock.ExpiryExpired: "Expired",
	stock.ExpirySoon:    "Expiring Soon",
	stock.ExpiryWatch:   "60+ days",
	stock.ExpirySafe:    "Safe",
	stock.ExpiryUnknown: "Unknown",
}

// ExpiryBadge labels an expiry level.
func ExpiryBadge(l stock.ExpiryLevel) string {
	return expiryBadges[l]
}

// BatchRow is one batch under an inventory row.
type BatchRow struct {
	Batch    models.Batch
	DaysLeft int
	Expiry   stock.ExpiryLevel
	Badge    string
}

// InventoryRow is one product on the inventory page.
type InventoryRow struct {
	Product models.Product
	Stock   int
	Badge   string
	Batches []BatchRow
}

// InventorySort orders the inventory table.
type InventorySort string

const (
	SortByName  InventorySort = "name"
	SortByStock InventorySort = "stock"
)

// Inventory is the inventory page.
type Inventory struct {
	Rows       []InventoryRow
	OutOfStock int
}

// Inventory fetches every product and builds the table. search matches name, brand or
// species; rows are sorted by name, or by ascending stock.
func (a *Admin) Inventory(ctx context.Context, search string, by InventorySort) (Inventory, error) {
	products, err := a.api.Products(ctx)
	if err != nil {
		return Inventory{}, fmt.Errorf("list products: %w", err)
	}
	return BuildInventory(products, search, by, a.now()), nil
}

// BuildInventory derives the inventory table from products with nested packs and batches.
func BuildInventory(products []models.Product, search string, by InventorySort, today time.Time) Inventory {
	var inv Inventory
	for _, p := range products {
		displayed := stock.DisplayedFor(p)
		if displayed == 0 {
			inv.OutOfStock++
		}
		if !repository.ContainsFold(p.Name, search) && !repository.ContainsFold(p.Brand, search) && !repository.ContainsFold(string(p.Species), search) {
			continue
		}

		row := InventoryRow{Product: p, Stock: displayed, Badge: "In Stock"}
		if displayed == 0 {
			row.Badge = "Out of Stock"
		}
		for _, b := range p.Batches {
			br := BatchRow{Batch: b, Expiry: stock.ExpiryOf(b, today)}
			if exp, err := b.Expiry(); err == nil {
				br.DaysLeft = stock.DaysUntil(today, exp)
			}
			br.Badge = ExpiryBadge(br.Expiry)
			row.Batches = append(row.Batches, br)
		}
		inv.Rows = append(inv.Rows, row)
	}

	sort.SliceStable(inv.Rows, func(i, j int) bool {
		if by == SortByStock {
			return inv.Rows[i].Stock < inv.Rows[j].Stock
		}
		return inv.Rows[i].Product.Name < inv.Rows[j].Product.Name
	})
	return inv
}
