// Package reporting builds the daily inventory digest sent to operations.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
)

// ProductStock is a product whose displayed stock needs attention.
type ProductStock struct {
	ID        int64
	Name      string
	Displayed int
}

// ExpiringBatch is a batch close to (or past) its expiry date.
type ExpiringBatch struct {
	BatchNumber string
	ProductName string
	ExpiryDate  string
	DaysLeft    int
	Available   int
}

// Digest is the inventory snapshot for one day.
type Digest struct {
	Date          time.Time
	OutOfStock    []ProductStock
	LowStock      []ProductStock
	Expiring      []ExpiringBatch
	PendingOrders int
}

// Empty reports whether nothing needs attention.
func (d Digest) Empty() bool {
	return len(d.OutOfStock) == 0 && len(d.LowStock) == 0 && len(d.Expiring) == 0 && d.PendingOrders == 0
}

// Text renders the digest as a plain message.
func (d Digest) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory digest %s\n", d.Date.Format(models.DateLayout))
	if d.Empty() {
		b.WriteString("All products in stock, no batches expiring, no pending orders.")
		return b.String()
	}
	if len(d.OutOfStock) > 0 {
		b.WriteString("Out of stock:\n")
		for _, p := range d.OutOfStock {
			fmt.Fprintf(&b, "- %s\n", p.Name)
		}
	}
	if len(d.LowStock) > 0 {
		b.WriteString("Low stock:\n")
		for _, p := range d.LowStock {
			fmt.Fprintf(&b, "- %s: %d\n", p.Name, p.Displayed)
		}
	}
	if len(d.Expiring) > 0 {
		b.WriteString("Expiring batches:\n")
		for _, e := range d.Expiring {
			fmt.Fprintf(&b, "- %s (%s) %s, %d days, %d available\n", e.BatchNumber, e.ProductName, e.ExpiryDate, e.DaysLeft, e.Available)
		}
	}
	fmt.Fprintf(&b, "Orders awaiting confirmation: %d", d.PendingOrders)
	return b.String()
}

// Service computes digests from the store.
type Service struct {
	store             repository.Store
	lowStockThreshold int
	expiryWindowDays  int
	logger            *zap.Logger
}

// NewService wires a reporting service instance.
func NewService(store repository.Store, lowStockThreshold, expiryWindowDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = stock.LowStockThreshold
	}
	return &Service{store: store, lowStockThreshold: lowStockThreshold, expiryWindowDays: expiryWindowDays, logger: logger}
}

// InventoryDigest uses the same displayed-stock rule shoppers see.
func (s *Service) InventoryDigest(ctx context.Context, today time.Time) (Digest, error) {
	d := Digest{Date: today}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return d, fmt.Errorf("load products: %w", err)
	}
	packs, err := s.store.ListDosePacks(ctx, 0)
	if err != nil {
		return d, fmt.Errorf("load dose packs: %w", err)
	}
	batches, err := s.store.ListBatches(ctx, repository.BatchFilter{})
	if err != nil {
		return d, fmt.Errorf("load batches: %w", err)
	}

	names := make(map[int64]string, len(products))
	for i := range products {
		p := &products[i]
		names[p.ID] = p.Name
		for _, dp := range packs {
			if dp.ProductID == p.ID {
				p.DosePacks = append(p.DosePacks, dp)
			}
		}
		for _, b := range batches {
			if b.ProductID == p.ID && b.Status != models.BatchExpired {
				p.Batches = append(p.Batches, b)
			}
		}

		shown := stock.DisplayedFor(*p)
		switch {
		case shown <= 0:
			d.OutOfStock = append(d.OutOfStock, ProductStock{ID: p.ID, Name: p.Name})
		case shown < s.lowStockThreshold:
			d.LowStock = append(d.LowStock, ProductStock{ID: p.ID, Name: p.Name, Displayed: shown})
		}
	}

	for _, b := range batches {
		if b.Status == models.BatchExpired || b.Available() <= 0 {
			continue
		}
		exp, err := b.Expiry()
		if err != nil {
			s.logger.Debug("skip batch with invalid expiry", zap.String("batch", b.BatchNumber), zap.String("value", b.ExpiryDate))
			continue
		}
		days := stock.DaysUntil(today, exp)
		if days > s.expiryWindowDays {
			continue
		}
		d.Expiring = append(d.Expiring, ExpiringBatch{
			BatchNumber: b.BatchNumber,
			ProductName: names[b.ProductID],
			ExpiryDate:  b.ExpiryDate,
			DaysLeft:    days,
			Available:   b.Available(),
		})
	}

	pending, err := s.store.ListOrders(ctx, repository.OrderFilter{Status: models.StatusRequested})
	if err != nil {
		return d, fmt.Errorf("load pending orders: %w", err)
	}
	d.PendingOrders = len(pending)

	return d, nil
}
