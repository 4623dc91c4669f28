package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
)

// reserve holds packs for every item, oldest expiry first. A line that picked a batch draws
// from it before the others. Packs no batch can cover are deducted from the item's dose pack
// when the product has dose packs; otherwise confirmation fails.
func (s *Service) reserve(ctx context.Context, o *models.Order, actor models.User) error {
	touched := make(map[int64]*models.Product)

	for i := range o.Items {
		item := &o.Items[i]
		product, err := s.store.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		touched[product.ID] = product

		remaining := item.Quantity
		if remaining <= 0 {
			continue
		}
		unitsPerPack, err := s.unitsPerPack(ctx, item)
		if err != nil {
			return err
		}

		batches, err := s.store.ListBatches(ctx, repository.BatchFilter{ProductID: product.ID})
		if err != nil {
			return err
		}
		for _, b := range preferBatch(batches, item.BatchID) {
			if b.Status == models.BatchExpired {
				continue
			}
			available := b.Available()
			if available <= 0 {
				continue
			}
			take := min(available, remaining)
			b.QuantityReserved += take
			if err := s.store.UpdateBatch(ctx, &b); err != nil {
				return fmt.Errorf("reserve batch %s: %w", b.BatchNumber, err)
			}
			if err := s.log(ctx, o, product, &b, models.LogReserved, -take*unitsPerPack,
				"Confirmed order "+o.OrderNumber, actor); err != nil {
				return err
			}
			item.Reservations = append(item.Reservations, models.Reservation{BatchID: b.ID, Quantity: take, UnitsPerPack: unitsPerPack})
			remaining -= take
			if remaining == 0 {
				break
			}
		}

		if remaining == 0 {
			continue
		}
		packs, err := s.store.ListDosePacks(ctx, product.ID)
		if err != nil {
			return err
		}
		if len(packs) == 0 {
			return &apperror.Error{
				Kind: ErrInsufficientStock,
				Detail: fmt.Sprintf("Error confirming order: Insufficient stock for product %d - needs %d, short %d",
					product.ID, item.Quantity, remaining),
			}
		}
		if item.DosePackID == nil {
			continue
		}
		pack, err := s.store.GetDosePack(ctx, *item.DosePackID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		before := pack.UnitsPerPack
		pack.UnitsPerPack = max(0, pack.UnitsPerPack-remaining)
		if err := s.store.UpdateDosePack(ctx, pack); err != nil {
			return fmt.Errorf("deduct dose pack %d: %w", pack.ID, err)
		}
		deducted := before - pack.UnitsPerPack
		item.PackUnitsDeducted += deducted
		if err := s.log(ctx, o, product, nil, models.LogConfirmed, -deducted,
			fmt.Sprintf("Confirmed order %s (no batches, deducted from dose pack)", o.OrderNumber), actor); err != nil {
			return err
		}
	}

	return s.syncAvailable(ctx, touched)
}

// release undoes what reserve recorded on each item.
func (s *Service) release(ctx context.Context, o *models.Order, actor models.User) error {
	touched := make(map[int64]*models.Product)

	for i := range o.Items {
		item := &o.Items[i]
		if len(item.Reservations) == 0 && item.PackUnitsDeducted == 0 {
			continue
		}
		product, err := s.store.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			item.Reservations = nil
			item.PackUnitsDeducted = 0
			continue
		}
		if err != nil {
			return err
		}
		touched[product.ID] = product

		for _, r := range item.Reservations {
			b, err := s.store.GetBatch(ctx, r.BatchID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			back := min(r.Quantity, b.QuantityReserved)
			b.QuantityReserved -= back
			r.Quantity = back
			if err := s.store.UpdateBatch(ctx, b); err != nil {
				return fmt.Errorf("release batch %s: %w", b.BatchNumber, err)
			}
			if err := s.log(ctx, o, product, b, models.LogReturned, r.Units(),
				"Cancelled order "+o.OrderNumber, actor); err != nil {
				return err
			}
		}
		item.Reservations = nil

		if item.PackUnitsDeducted > 0 && item.DosePackID != nil {
			pack, err := s.store.GetDosePack(ctx, *item.DosePackID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return err
			default:
				pack.UnitsPerPack += item.PackUnitsDeducted
				if err := s.store.UpdateDosePack(ctx, pack); err != nil {
					return fmt.Errorf("restore dose pack %d: %w", pack.ID, err)
				}
				if err := s.log(ctx, o, product, nil, models.LogReturned, item.PackUnitsDeducted,
					fmt.Sprintf("Cancelled order %s (restored to dose pack)", o.OrderNumber), actor); err != nil {
					return err
				}
			}
		}
		item.PackUnitsDeducted = 0
	}

	return s.syncAvailable(ctx, touched)
}

func (s *Service) unitsPerPack(ctx context.Context, item *models.OrderItem) (int, error) {
	if item.DosePackID == nil {
		return 1, nil
	}
	pack, err := s.store.GetDosePack(ctx, *item.DosePackID)
	if errors.Is(err, repository.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if pack.UnitsPerPack <= 0 {
		return 1, nil
	}
	return pack.UnitsPerPack, nil
}

// syncAvailable stores Σ dose pack units + Σ batch available on each product.
func (s *Service) syncAvailable(ctx context.Context, products map[int64]*models.Product) error {
	for _, p := range products {
		packs, err := s.store.ListDosePacks(ctx, p.ID)
		if err != nil {
			return err
		}
		batches, err := s.store.ListBatches(ctx, repository.BatchFilter{ProductID: p.ID})
		if err != nil {
			return err
		}
		p.AvailableStock = stock.TotalUnits(packs) + stock.TotalAvailable(batches)
		if err := s.store.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("sync product %d stock: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Service) log(ctx context.Context, o *models.Order, p *models.Product, b *models.Batch, action models.LogAction, delta int, reason string, actor models.User) error {
	orderID := o.ID
	actorID := actor.ID
	l := models.InventoryLog{
		ProductID:           p.ID,
		ProductName:         p.Name,
		Action:              action,
		QuantityChanged:     delta,
		Reason:              reason,
		RelatedOrderID:      &orderID,
		OrderNumber:         o.OrderNumber,
		PerformedBy:         &actorID,
		PerformedByUsername: actor.Username,
	}
	if b != nil {
		id := b.ID
		l.BatchID = &id
		l.BatchNumber = b.BatchNumber
	}
	if err := s.store.AppendLog(ctx, &l); err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}

func preferBatch(batches []models.Batch, preferred *int64) []models.Batch {
	if preferred == nil {
		return batches
	}
	out := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if b.ID == *preferred {
			out = append(out, b)
		}
	}
	for _, b := range batches {
		if b.ID != *preferred {
			out = append(out, b)
		}
	}
	return out
}
