package storefront

import (
	"context"
	"fmt"
	"time"

	"github.com/mamadbah2/vaccine-orders/internal/cart"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
)

const (
	// ErrNoOption is returned by AddToCart when nothing is selected.
	ErrNoOption = userError("Please select a dose pack or batch before adding to cart.")
	// ErrDateTooEarly rejects a delivery date before the lead-time floor.
	ErrDateTooEarly = userError("Delivery date is earlier than the product lead time allows.")
	// ErrUnknownOption is returned when selecting an option the product does not offer.
	ErrUnknownOption = userError("Selected option is not available for this product.")
)

// Option is one orderable choice on a product page. Batch is set when the product has no
// dose packs and the option stands for a batch.
type Option struct {
	DosePack models.DosePack
	Batch    *models.Batch
}

// ID identifies the option within its product.
func (o Option) ID() int64 {
	return o.DosePack.ID
}

// Label is the radio button text.
func (o Option) Label() string {
	if o.Batch != nil {
		return fmt.Sprintf("Batch %s (exp. %s, %d available)", o.Batch.BatchNumber, o.Batch.ExpiryDate, o.Batch.Available())
	}
	return fmt.Sprintf("%d doses", o.DosePack.Doses)
}

// Options lists dose packs when the product has any, otherwise its batches turned into
// pack-like options of one dose with the batch quantity as units.
func Options(p models.Product) []Option {
	if len(p.DosePacks) > 0 {
		out := make([]Option, 0, len(p.DosePacks))
		for _, d := range p.DosePacks {
			out = append(out, Option{DosePack: d})
		}
		return out
	}
	out := make([]Option, 0, len(p.Batches))
	for _, b := range p.Batches {
		batch := b
		out = append(out, Option{
			DosePack: models.DosePack{ID: b.ID, ProductID: p.ID, Doses: 1, UnitsPerPack: b.Quantity},
			Batch:    &batch,
		})
	}
	return out
}

// ProductAPI fetches a single product.
type ProductAPI interface {
	Product(ctx context.Context, id int64) (*models.Product, error)
}

// ProductPage holds the selection state of the product detail page.
type ProductPage struct {
	Product      models.Product
	Options      []Option
	Quantity     int
	DeliveryDate time.Time
	Instructions string

	selected int
	today    time.Time
}

// OpenProduct fetches product id and prepares its page.
func OpenProduct(ctx context.Context, api ProductAPI, id int64, today time.Time) (*ProductPage, error) {
	p, err := api.Product(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return NewProductPage(*p, today), nil
}

// NewProductPage selects the first option, the minimum quantity and the earliest
// delivery date.
func NewProductPage(p models.Product, today time.Time) *ProductPage {
	pg := &ProductPage{
		Product:  p,
		Options:  Options(p),
		Quantity: stock.MinimumQty(p),
		selected: -1,
		today:    today,
	}
	if len(pg.Options) > 0 {
		pg.selected = 0
	}
	pg.DeliveryDate = pg.EarliestDelivery()
	return pg
}

// Stock is the displayed availability.
func (pg *ProductPage) Stock() int { return stock.DisplayedFor(pg.Product) }

// LeadTimeDays is the effective lead time.
func (pg *ProductPage) LeadTimeDays() int { return stock.LeadTimeDays(pg.Product) }

// EarliestDelivery is the first date the picker allows.
func (pg *ProductPage) EarliestDelivery() time.Time {
	return stock.EarliestDelivery(pg.Product, pg.today)
}

// Selected returns the chosen option.
func (pg *ProductPage) Selected() (Option, bool) {
	if pg.selected < 0 || pg.selected >= len(pg.Options) {
		return Option{}, false
	}
	return pg.Options[pg.selected], true
}

// Select picks the option with the given id.
func (pg *ProductPage) Select(id int64) error {
	for i, o := range pg.Options {
		if o.ID() == id {
			pg.selected = i
			return nil
		}
	}
	return ErrUnknownOption
}

// Increment raises the quantity by one.
func (pg *ProductPage) Increment() { pg.Quantity++ }

// Decrement lowers the quantity by one unless it is already at the minimum.
func (pg *ProductPage) Decrement() bool {
	if !stock.CanDecrement(pg.Product, pg.Quantity) {
		return false
	}
	pg.Quantity--
	return true
}

// SetQuantity sets the quantity, floored at the product minimum.
func (pg *ProductPage) SetQuantity(q int) {
	pg.Quantity = stock.ClampQty(pg.Product, q)
}

// SetDeliveryDate accepts dates on or after the earliest delivery date.
func (pg *ProductPage) SetDeliveryDate(d time.Time) error {
	if !stock.DeliveryAllowed(pg.Product, pg.today, d) {
		return ErrDateTooEarly
	}
	pg.DeliveryDate = d
	return nil
}

// AddToCart adds the current selection to c and returns the confirmation text.
func (pg *ProductPage) AddToCart(c *cart.Store) (string, error) {
	opt, ok := pg.Selected()
	if !ok {
		return "", ErrNoOption
	}
	date := pg.DeliveryDate.Format(models.DateLayout)
	if opt.Batch != nil {
		c.AddBatchItem(pg.Product, *opt.Batch, pg.Quantity, date, pg.Instructions)
		return fmt.Sprintf("%dx %s added to your cart.", pg.Quantity, pg.Product.Name), nil
	}
	c.AddItem(pg.Product, opt.DosePack, pg.Quantity, date, pg.Instructions)
	return fmt.Sprintf("%dx %s (%d doses) added to your cart.", pg.Quantity, pg.Product.Name, opt.DosePack.Doses), nil
}
