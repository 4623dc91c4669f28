// Package catalog manages products, dose packs, batches and the inventory log.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
	"github.com/mamadbah2/vaccine-orders/internal/storage"
)

const (
	// LowStockQuantity flags batches holding at most this many packs.
	LowStockQuantity = 100
	// ExpiringWithinDays flags batches expiring sooner than this.
	ExpiringWithinDays = 30
)

// Upload is an image attached to a create or update request.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Service implements the catalog use cases.
type Service struct {
	store  repository.Store
	images storage.ImageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a catalog service. images may be nil when uploads are disabled.
func NewService(store repository.Store, images storage.ImageStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, images: images, logger: logger, now: time.Now}
}

// Products

// ListProducts returns every product with its dose packs, batches and stock totals.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	packs, err := s.store.ListDosePacks(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list dose packs: %w", err)
	}
	batches, err := s.store.ListBatches(ctx, repository.BatchFilter{})
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	packsBy := make(map[int64][]models.DosePack)
	for _, d := range packs {
		packsBy[d.ProductID] = append(packsBy[d.ProductID], d)
	}
	batchesBy := make(map[int64][]models.Batch)
	for _, b := range batches {
		batchesBy[b.ProductID] = append(batchesBy[b.ProductID], b)
	}

	for i := range products {
		decorate(&products[i], packsBy[products[i].ID], batchesBy[products[i].ID])
	}
	return products, nil
}

// GetProduct returns one decorated product.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, p *models.Product) error {
	packs, err := s.store.ListDosePacks(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list dose packs: %w", err)
	}
	batches, err := s.store.ListBatches(ctx, repository.BatchFilter{ProductID: p.ID})
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}
	decorate(p, packs, batches)
	return nil
}

func decorate(p *models.Product, packs []models.DosePack, batches []models.Batch) {
	if packs == nil {
		packs = []models.DosePack{}
	}
	if batches == nil {
		batches = []models.Batch{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.DosePacks = packs
	p.Batches = batches
	p.TotalStock = stock.TotalAvailable(batches)
	p.TotalUnits = stock.TotalUnits(packs)
}

func validateProduct(p *models.Product) error {
	v := &apperror.ValidationError{}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		v.Add("name", "This field is required.")
	}
	if !p.Species.Valid() {
		v.Add("species", fmt.Sprintf("\"%s\" is not a valid choice.", p.Species))
	}
	if !p.Type.Valid() {
		v.Add("product_type", fmt.Sprintf("\"%s\" is not a valid choice.", p.Type))
	}
	if p.MinimumOrderQty < 0 {
		v.Add("minimum_order_qty", "Ensure this value is greater than or equal to 0.")
	}
	if p.LeadTimeDays < 0 {
		v.Add("lead_time_days", "Ensure this value is greater than or equal to 0.")
	}
	if p.AvailableStock < 0 {
		v.Add("available_stock", "Ensure this value is greater than or equal to 0.")
	}
	return v.OrNil()
}

func (s *Service) attachImage(ctx context.Context, folder string, img *Upload) (string, error) {
	if img == nil {
		return "", nil
	}
	if s.images == nil {
		return "", apperror.Invalid("image", "Image uploads are not configured.")
	}
	url, err := s.images.Save(ctx, folder, img.Filename, img.Body)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

// CreateProduct validates and stores p, applying defaults and the optional image.
func (s *Service) CreateProduct(ctx context.Context, p models.Product, img *Upload) (*models.Product, error) {
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	url, err := s.attachImage(ctx, "products", img)
	if err != nil {
		return nil, err
	}
	if url != "" {
		p.ImageURL = url
	}
	p.ApplyDefaults()

	if err := s.store.CreateProduct(ctx, &p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	decorate(&p, nil, nil)
	return &p, nil
}

// UpdateProduct replaces the stored product with p.
func (s *Service) UpdateProduct(ctx context.Context, p models.Product, img *Upload) (*models.Product, error) {
	existing, err := s.store.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	url, err := s.attachImage(ctx, "products", img)
	if err != nil {
		return nil, err
	}
	if url != "" {
		p.ImageURL = url
	}
	p.CreatedAt = existing.CreatedAt
	p.ApplyDefaults()

	if err := s.store.UpdateProduct(ctx, &p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if err := s.load(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes the product with its dose packs and batches.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// Dose packs

func (s *Service) validateDosePack(ctx context.Context, d models.DosePack) error {
	v := &apperror.ValidationError{}
	if d.ProductID == 0 {
		v.Add("product", "This field is required.")
	} else if _, err := s.store.GetProduct(ctx, d.ProductID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		v.Add("product", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", d.ProductID))
	}
	if d.Doses <= 0 {
		v.Add("doses", "Ensure this value is greater than or equal to 1.")
	}
	if d.UnitsPerPack < 0 {
		v.Add("units_per_pack", "Ensure this value is greater than or equal to 0.")
	}
	return v.OrNil()
}

// ListDosePacks returns the packs of one product, or all when productID is 0.
func (s *Service) ListDosePacks(ctx context.Context, productID int64) ([]models.DosePack, error) {
	return s.store.ListDosePacks(ctx, productID)
}

// GetDosePack returns one dose pack.
func (s *Service) GetDosePack(ctx context.Context, id int64) (*models.DosePack, error) {
	return s.store.GetDosePack(ctx, id)
}

// CreateDosePack validates and stores d.
func (s *Service) CreateDosePack(ctx context.Context, d models.DosePack) (*models.DosePack, error) {
	if err := s.validateDosePack(ctx, d); err != nil {
		return nil, err
	}
	if err := s.store.CreateDosePack(ctx, &d); err != nil {
		return nil, fmt.Errorf("create dose pack: %w", err)
	}
	return &d, nil
}

// UpdateDosePack replaces the stored dose pack with d.
func (s *Service) UpdateDosePack(ctx context.Context, d models.DosePack) (*models.DosePack, error) {
	if _, err := s.store.GetDosePack(ctx, d.ID); err != nil {
		return nil, err
	}
	if err := s.validateDosePack(ctx, d); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDosePack(ctx, &d); err != nil {
		return nil, fmt.Errorf("update dose pack: %w", err)
	}
	return &d, nil
}

// DeleteDosePack removes one dose pack.
func (s *Service) DeleteDosePack(ctx context.Context, id int64) error {
	return s.store.DeleteDosePack(ctx, id)
}

// Batches

func (s *Service) validateBatch(ctx context.Context, b *models.Batch) (*models.Product, error) {
	v := &apperror.ValidationError{}
	var product *models.Product
	if b.ProductID == 0 {
		v.Add("product", "This field is required.")
	} else {
		p, err := s.store.GetProduct(ctx, b.ProductID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			v.Add("product", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", b.ProductID))
		case err != nil:
			return nil, err
		default:
			product = p
		}
	}
	b.BatchNumber = strings.TrimSpace(b.BatchNumber)
	if b.BatchNumber == "" {
		v.Add("batch_number", "This field is required.")
	}
	if _, err := b.Expiry(); err != nil {
		v.Add("expiry_date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	if b.Quantity < 0 {
		v.Add("quantity", "Ensure this value is greater than or equal to 0.")
	}
	if b.QuantityReserved < 0 {
		v.Add("quantity_reserved", "Ensure this value is greater than or equal to 0.")
	} else if b.QuantityReserved > b.Quantity {
		v.Add("quantity", "Quantity cannot be lower than the reserved quantity.")
	}
	if b.Status == "" {
		b.Status = models.BatchAvailable
	} else if !b.Status.Valid() {
		v.Add("status", fmt.Sprintf("\"%s\" is not a valid choice.", b.Status))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return product, nil
}

func conflictAsValidation(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return apperror.Invalid("batch_number", "batch with this batch number already exists.")
	}
	return err
}

// ListBatches returns batches ordered by expiry, optionally for one product.
func (s *Service) ListBatches(ctx context.Context, productID int64) ([]models.Batch, error) {
	return s.store.ListBatches(ctx, repository.BatchFilter{ProductID: productID})
}

// GetBatch returns one batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (*models.Batch, error) {
	return s.store.GetBatch(ctx, id)
}

// CreateBatch stores b and records a received log entry.
func (s *Service) CreateBatch(ctx context.Context, actor *models.User, b models.Batch, img *Upload) (*models.Batch, error) {
	product, err := s.validateBatch(ctx, &b)
	if err != nil {
		return nil, err
	}
	url, err := s.attachImage(ctx, "batches", img)
	if err != nil {
		return nil, err
	}
	if url != "" {
		b.ImageURL = url
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.CreateBatch(ctx, &b); err != nil {
			return conflictAsValidation(err)
		}
		return s.appendLog(ctx, logEntry{
			product: product,
			batch:   &b,
			action:  models.LogReceived,
			delta:   b.Quantity,
			reason:  "Batch received",
			actor:   actor,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch created", zap.Int64("batch_id", b.ID), zap.String("batch_number", b.BatchNumber))
	return &b, nil
}

// UpdateBatch replaces the stored batch with b.
func (s *Service) UpdateBatch(ctx context.Context, b models.Batch, img *Upload) (*models.Batch, error) {
	existing, err := s.store.GetBatch(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.validateBatch(ctx, &b); err != nil {
		return nil, err
	}
	url, err := s.attachImage(ctx, "batches", img)
	if err != nil {
		return nil, err
	}
	if url != "" {
		b.ImageURL = url
	}
	b.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateBatch(ctx, &b); err != nil {
		return nil, conflictAsValidation(err)
	}
	return &b, nil
}

// DeleteBatch removes one batch.
func (s *Service) DeleteBatch(ctx context.Context, id int64) error {
	return s.store.DeleteBatch(ctx, id)
}

// LowStock returns batches holding few packs or expiring within a month.
func (s *Service) LowStock(ctx context.Context) ([]models.Batch, error) {
	batches, err := s.store.ListBatches(ctx, repository.BatchFilter{})
	if err != nil {
		return nil, err
	}
	limit := truncate(s.now()).AddDate(0, 0, ExpiringWithinDays)
	out := make([]models.Batch, 0)
	for _, b := range batches {
		exp, err := b.Expiry()
		if b.Quantity <= LowStockQuantity || (err == nil && exp.Before(limit)) {
			out = append(out, b)
		}
	}
	return out, nil
}

// BulkUpdateStock applies quantity and location changes, logging each adjustment. Unknown
// batch ids are skipped. The returned count is the number of updates submitted.
func (s *Service) BulkUpdateStock(ctx context.Context, actor *models.User, updates []models.StockUpdate) (int, error) {
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			b, err := s.store.GetBatch(ctx, u.BatchID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			old := b.Quantity
			if u.Quantity != nil {
				if *u.Quantity < b.QuantityReserved {
					return apperror.BadRequest(fmt.Sprintf("Batch %s cannot hold fewer than its %d reserved packs.", b.BatchNumber, b.QuantityReserved))
				}
				b.Quantity = *u.Quantity
			}
			if u.StorageLocation != nil {
				b.StorageLocation = *u.StorageLocation
			}
			if err := s.store.UpdateBatch(ctx, b); err != nil {
				return err
			}
			reason := u.Reason
			if reason == "" {
				reason = "Bulk adjustment"
			}
			product, err := s.store.GetProduct(ctx, b.ProductID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := s.appendLog(ctx, logEntry{product: product, batch: b, action: models.LogAdjusted, delta: b.Quantity - old, reason: reason, actor: actor}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updates), nil
}

// ExpireBatches marks batches past their expiry date as expired and logs the write-off.
func (s *Service) ExpireBatches(ctx context.Context, today time.Time) (int, error) {
	batches, err := s.store.ListBatches(ctx, repository.BatchFilter{})
	if err != nil {
		return 0, err
	}
	day := truncate(today)
	expired := 0
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		for i := range batches {
			b := &batches[i]
			exp, err := b.Expiry()
			if err != nil || !exp.Before(day) || b.Status == models.BatchExpired || b.Status == models.BatchShipped {
				continue
			}
			b.Status = models.BatchExpired
			if err := s.store.UpdateBatch(ctx, b); err != nil {
				return err
			}
			product, err := s.store.GetProduct(ctx, b.ProductID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := s.appendLog(ctx, logEntry{product: product, batch: b, action: models.LogExpired, delta: -b.Available(), reason: "Batch expired on " + b.ExpiryDate}); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("expired batches swept", zap.Int("count", expired))
	}
	return expired, nil
}

// Inventory log

// ListLogs returns the inventory log newest first, optionally for one product.
func (s *Service) ListLogs(ctx context.Context, productID int64) ([]models.InventoryLog, error) {
	return s.store.ListLogs(ctx, productID)
}

type logEntry struct {
	product *models.Product
	batch   *models.Batch
	action  models.LogAction
	delta   int
	reason  string
	actor   *models.User
}

func (s *Service) appendLog(ctx context.Context, e logEntry) error {
	l := models.InventoryLog{Action: e.action, QuantityChanged: e.delta, Reason: e.reason}
	if e.product != nil {
		l.ProductID = e.product.ID
		l.ProductName = e.product.Name
	}
	if e.batch != nil {
		id := e.batch.ID
		l.BatchID = &id
		l.BatchNumber = e.batch.BatchNumber
		if l.ProductID == 0 {
			l.ProductID = e.batch.ProductID
		}
	}
	if e.actor != nil {
		id := e.actor.ID
		l.PerformedBy = &id
		l.PerformedByUsername = e.actor.Username
	}
	if err := s.store.AppendLog(ctx, &l); err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
