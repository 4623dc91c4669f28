package storefront

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/cart"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// CheckoutNotes is attached to orders placed from the cart without notes of their own.
const CheckoutNotes = "Order placed from storefront"

// ErrEmptyCart is returned when checking out with nothing in the cart.
const ErrEmptyCart = userError("Your cart is empty.")

// unitPrice is sent on every line; pricing is settled by staff after the order is placed.
var unitPrice = decimal.New(0, -2)

// OrderCreator submits orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in models.NewOrder) (*models.Order, error)
}

// BuildOrder turns cart lines into the checkout payload. Batch-backed lines reference the
// batch instead of a dose pack. Empty notes become CheckoutNotes.
func BuildOrder(items []cart.Item, notes string) models.NewOrder {
	if notes == "" {
		notes = CheckoutNotes
	}
	out := models.NewOrder{Notes: notes, Items: make([]models.NewOrderItem, 0, len(items))}
	for _, it := range items {
		line := models.NewOrderItem{
			Product:               it.Product.ID,
			Quantity:              it.Quantity,
			UnitPrice:             unitPrice,
			RequestedDeliveryDate: it.RequestedDeliveryDate,
			SpecialInstructions:   it.SpecialInstructions,
		}
		if it.Batch != nil {
			id := it.Batch.ID
			line.Batch = &id
		} else {
			id := it.DosePack.ID
			line.DosePack = &id
		}
		out.Items = append(out.Items, line)
	}
	return out
}

// Checkout places the cart as one order. The cart is cleared only when the backend
// accepted the order.
func Checkout(ctx context.Context, api OrderCreator, c *cart.Store, notes string, logger *zap.Logger) (*models.Order, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	items := c.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := api.CreateOrder(ctx, BuildOrder(items, notes))
	if err != nil {
		logger.Warn("checkout failed", zap.Int("lines", len(items)), zap.Error(err))
		return nil, fmt.Errorf("place order: %w", err)
	}
	c.Clear()
	logger.Info("order placed", zap.String("order_number", order.OrderNumber), zap.Int("lines", len(items)))
	return order, nil
}

// Step changes a cart line's quantity by delta. Stepping to zero removes the line.
func Step(c *cart.Store, productID, dosePackID int64, delta int) {
	it, ok := c.Item(productID, dosePackID)
	if !ok {
		return
	}
	c.UpdateQuantity(productID, dosePackID, it.Quantity+delta)
}
