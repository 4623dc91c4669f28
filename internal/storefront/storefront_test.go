package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/cart"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/lifecycle"
	"github.com/mamadbah2/vaccine-orders/internal/stock"
	"github.com/mamadbah2/vaccine-orders/pkg/clients/vaxapi"
)

var today = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func ndLive() models.Product {
	return models.Product{
		ID: 1, Name: "ND Live", Brand: "MSD Animal Health", Species: models.SpeciesPoultry,
		Type: models.VaccineLive, Description: "Newcastle disease vaccine", LeadTimeDays: 5, MinimumOrderQty: 2,
		DosePacks: []models.DosePack{{ID: 10, ProductID: 1, Doses: 1000, UnitsPerPack: 4}, {ID: 11, ProductID: 1, Doses: 5000, UnitsPerPack: 2}},
		Batches:   []models.Batch{{ID: 100, ProductID: 1, BatchNumber: "B-1", ExpiryDate: "2027-01-01", Quantity: 20, QuantityReserved: 5}},
	}
}

func swineBatchOnly() models.Product {
	return models.Product{
		ID: 2, Name: "PRRS Killed", Brand: "Urban Farmer", Species: models.SpeciesSwine, Type: models.VaccineKilled,
		Description: "Porcine reproductive", LeadTimeDays: 3,
		Batches: []models.Batch{{ID: 200, ProductID: 2, BatchNumber: "S-9", ExpiryDate: "2026-11-01", Quantity: 12}},
	}
}

func TestFilterMatch(t *testing.T) {
	p := ndLive()
	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"no filter", Filter{}, true},
		{"all selects", Filter{Species: All, Brand: All, Type: All}, true},
		{"search name", Filter{Search: "nd li"}, true},
		{"search description", Filter{Search: "NEWCASTLE"}, true},
		{"search brand", Filter{Search: "msd"}, true},
		{"search miss", Filter{Search: "gumboro"}, false},
		{"species", Filter{Species: "swine"}, false},
		{"brand", Filter{Brand: "MSD Animal Health"}, true},
		{"type", Filter{Type: "killed"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.f.Match(p))
		})
	}
	assert.False(t, Filter{Species: All}.Active())
	assert.True(t, Filter{Search: "x"}.Active())
}

func TestNewCard(t *testing.T) {
	c := NewCard(ndLive())
	assert.Equal(t, 15, c.Stock, "batch availability wins when both sides are positive")
	assert.Equal(t, stock.LevelIn, c.Level)
	assert.Equal(t, 5, c.LeadTimeDays)
	assert.Equal(t, "1000 doses, 5000 doses", c.Doses)

	b := NewCard(swineBatchOnly())
	assert.Zero(t, b.Stock, "batch stock is hidden without dose pack units")
	assert.Equal(t, stock.LevelOut, b.Level)
	assert.Equal(t, stock.NoUnitsLeadTimeDays, b.LeadTimeDays)
	assert.Equal(t, "0 in stock", b.Doses)
}

type productsAPI struct {
	products []models.Product
	err      error
}

func (p productsAPI) Products(context.Context) ([]models.Product, error) { return p.products, p.err }

func TestCatalogList(t *testing.T) {
	c := NewCatalog(productsAPI{products: []models.Product{ndLive(), swineBatchOnly()}}, nil)
	l, err := c.List(context.Background(), Filter{Species: "swine"})
	require.NoError(t, err)
	require.Len(t, l.Cards, 1)
	assert.Equal(t, "PRRS Killed", l.Cards[0].Product.Name)
	assert.Equal(t, "Showing 1 of 2 products", l.Summary())
	assert.Equal(t, []string{"MSD Animal Health", "Urban Farmer"}, l.Brands)

	_, err = NewCatalog(productsAPI{err: errors.New("down")}, nil).List(context.Background(), Filter{})
	assert.Error(t, err)
}

func TestProductPageDefaults(t *testing.T) {
	pg := NewProductPage(ndLive(), today)
	opt, ok := pg.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(10), opt.ID())
	assert.Equal(t, 2, pg.Quantity)
	assert.Equal(t, "2026-10-23", pg.DeliveryDate.Format(models.DateLayout))

	assert.False(t, pg.Decrement(), "cannot go under the minimum")
	pg.Increment()
	assert.True(t, pg.Decrement())
	pg.SetQuantity(0)
	assert.Equal(t, 2, pg.Quantity)

	assert.ErrorIs(t, pg.SetDeliveryDate(today.AddDate(0, 0, 4)), ErrDateTooEarly)
	require.NoError(t, pg.SetDeliveryDate(today.AddDate(0, 0, 5)))
	assert.ErrorIs(t, pg.Select(999), ErrUnknownOption)
}

func TestProductPageBatchOptions(t *testing.T) {
	pg := NewProductPage(swineBatchOnly(), today)
	require.Len(t, pg.Options, 1)
	opt := pg.Options[0]
	require.NotNil(t, opt.Batch)
	assert.Equal(t, 1, opt.DosePack.Doses)
	assert.Equal(t, 12, opt.DosePack.UnitsPerPack)
	assert.Equal(t, "2026-11-08", pg.DeliveryDate.Format(models.DateLayout))

	c := cart.NewStore(nil, "", nil)
	msg, err := pg.AddToCart(c)
	require.NoError(t, err)
	assert.Equal(t, "1x PRRS Killed added to your cart.", msg)
	it, ok := c.Item(2, 200)
	require.True(t, ok)
	require.NotNil(t, it.Batch)
}

func TestAddToCartWithoutOptions(t *testing.T) {
	p := ndLive()
	p.DosePacks, p.Batches = nil, nil
	pg := NewProductPage(p, today)
	_, err := pg.AddToCart(cart.NewStore(nil, "", nil))
	assert.ErrorIs(t, err, ErrNoOption)
	assert.Equal(t, "Please select a dose pack or batch before adding to cart.", Message(err, "x"))
}

func TestBuildOrder(t *testing.T) {
	c := cart.NewStore(nil, "", nil)
	p := ndLive()
	c.AddItem(p, p.DosePacks[1], 3, "2026-10-25", "cold box")
	s := swineBatchOnly()
	c.AddBatchItem(s, s.Batches[0], 1, "2026-11-08", "")

	o := BuildOrder(c.Items(), "")
	assert.Equal(t, CheckoutNotes, o.Notes)
	require.Len(t, o.Items, 2)

	first := o.Items[0]
	require.NotNil(t, first.DosePack)
	assert.Equal(t, int64(11), *first.DosePack)
	assert.Nil(t, first.Batch)
	assert.True(t, first.UnitPrice.Equal(decimal.Zero))
	assert.Equal(t, "0.00", first.UnitPrice.StringFixed(2))
	assert.Equal(t, "cold box", first.SpecialInstructions)

	second := o.Items[1]
	assert.Nil(t, second.DosePack)
	require.NotNil(t, second.Batch)
	assert.Equal(t, int64(200), *second.Batch)
}

type creator struct {
	err error
	got models.NewOrder
}

func (c *creator) CreateOrder(_ context.Context, in models.NewOrder) (*models.Order, error) {
	c.got = in
	if c.err != nil {
		return nil, c.err
	}
	return &models.Order{ID: 1, OrderNumber: "ORD1"}, nil
}

func TestCheckoutClearsOnlyOnSuccess(t *testing.T) {
	c := cart.NewStore(nil, "", nil)
	_, err := Checkout(context.Background(), &creator{}, c, "", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)

	p := ndLive()
	c.AddItem(p, p.DosePacks[0], 2, "2026-10-25", "")
	_, err = Checkout(context.Background(), &creator{err: &vaxapi.APIError{StatusCode: 400, Message: "Invalid product id"}}, c, "", nil)
	require.Error(t, err)
	assert.Equal(t, "Invalid product id", Message(err, "fallback"))
	assert.Equal(t, 1, c.Len())

	o, err := Checkout(context.Background(), &creator{}, c, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ORD1", o.OrderNumber)
	assert.Zero(t, c.Len())
}

func TestStepRemovesAtZero(t *testing.T) {
	c := cart.NewStore(nil, "", nil)
	p := ndLive()
	c.AddItem(p, p.DosePacks[0], 1, "", "")
	c.AddItem(p, p.DosePacks[1], 2, "", "")
	before := c.TotalItems()

	Step(c, p.ID, p.DosePacks[0].ID, -1)
	_, ok := c.Item(p.ID, p.DosePacks[0].ID)
	assert.False(t, ok)
	assert.Equal(t, before-1, c.TotalItems())

	Step(c, p.ID, p.DosePacks[1].ID, 1)
	assert.Equal(t, 3, c.TotalItems())
	Step(c, 99, 99, 1)
	assert.Equal(t, 1, c.Len())
}

func TestCountAndFilters(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: 1, OrderNumber: "ORDAAA", Status: models.StatusRequested, CreatedAt: base},
		{ID: 2, OrderNumber: "ORDBBB", Status: models.StatusConfirmed, CreatedAt: base.Add(time.Hour)},
		{ID: 3, OrderNumber: "ORDCCC", Status: models.StatusPrepared, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 4, OrderNumber: "ORDDDD", Status: models.StatusDispatched, CreatedAt: base.Add(3 * time.Hour)},
		{ID: 5, OrderNumber: "ORDEEE", Status: models.StatusDelivered, CreatedAt: base.Add(4 * time.Hour)},
		{ID: 6, OrderNumber: "ORDFFF", Status: models.StatusCancelled, CreatedAt: base.Add(5 * time.Hour)},
	}
	c := Count(orders)
	assert.Equal(t, Counters{Total: 6, Open: 2, Pending: 3, Requested: 1, Confirmed: 1, Upcoming: 1, Delivered: 1, Cancelled: 1}, c)

	active := Active(orders, All)
	require.Len(t, active, 4)
	assert.Equal(t, int64(4), active[0].ID, "newest first")
	assert.Len(t, Active(orders, "cancelled"), 1)
	assert.Len(t, Delivered(orders), 1)

	assert.Len(t, Track(orders, "", PendingFilter), 3)
	assert.Len(t, Track(orders, "ccc", ""), 1)
	assert.Empty(t, Track(orders, "ccc", "delivered"))
}

type deskAPI struct {
	order     models.Order
	setErr    error
	getErr    error
	setCalls  int
	requested []models.OrderStatus
}

func (d *deskAPI) Orders(context.Context, models.OrderStatus) ([]models.Order, error) {
	return []models.Order{d.order}, nil
}

func (d *deskAPI) Order(context.Context, int64) (*models.Order, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	o := d.order
	return &o, nil
}

func (d *deskAPI) SetStatus(_ context.Context, _ int64, s models.OrderStatus) error {
	d.setCalls++
	d.requested = append(d.requested, s)
	if d.setErr != nil {
		return d.setErr
	}
	d.order.Status = s
	d.order.StatusHistory = append(d.order.StatusHistory, models.StatusHistoryEntry{Status: s, ChangedByUsername: "staff"})
	return nil
}

func TestAdvanceRefetchesOrder(t *testing.T) {
	api := &deskAPI{order: models.Order{ID: 1, Status: models.StatusConfirmed}}
	d := NewOrderDesk(api, nil)

	o, err := d.Advance(context.Background(), api.order)
	require.NoError(t, err)
	assert.Equal(t, []models.OrderStatus{models.StatusPrepared}, api.requested)
	assert.Equal(t, models.StatusPrepared, o.Status)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, "staff", lifecycle.Attribution(o, models.StatusPrepared))
}

func TestAdvanceFallsBackToLocalPatch(t *testing.T) {
	api := &deskAPI{order: models.Order{ID: 1, Status: models.StatusRequested}, getErr: errors.New("timeout")}
	d := NewOrderDesk(api, nil)
	before := api.order

	o, err := d.Advance(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, o.Status)
	assert.Empty(t, o.StatusHistory, "only the status is patched")
}

func TestAdvanceFailureLeavesOrderUntouched(t *testing.T) {
	api := &deskAPI{
		order:  models.Order{ID: 1, Status: models.StatusPrepared},
		setErr: &vaxapi.APIError{StatusCode: 400, Message: "Cannot change status from prepared to dispatched."},
	}
	d := NewOrderDesk(api, nil)

	o, err := d.Advance(context.Background(), api.order)
	require.Error(t, err)
	assert.Equal(t, models.StatusPrepared, o.Status)
	assert.Equal(t, 1, api.setCalls, "no retry")
	assert.Equal(t, "Cannot change status from prepared to dispatched.", StatusFailure(err))
	assert.Equal(t, "Failed to update status", StatusFailure(errors.New("dial tcp: refused")))
}

func TestAdvanceTerminal(t *testing.T) {
	api := &deskAPI{order: models.Order{ID: 1, Status: models.StatusDelivered}}
	d := NewOrderDesk(api, nil)
	_, err := d.Advance(context.Background(), api.order)
	assert.ErrorIs(t, err, ErrNoNextStatus)
	_, err = d.Cancel(context.Background(), api.order)
	assert.ErrorIs(t, err, ErrNoNextStatus)
	assert.Zero(t, api.setCalls)
}

func TestProductDraftValidate(t *testing.T) {
	d := ProductDraft{
		Product: models.Product{
			Name: "ND", Brand: "B", Species: models.SpeciesPoultry, Type: models.VaccineLive, Description: "d",
			ActiveIngredients: "a", StorageTempRange: "2-8C", AdministrationNotes: "n",
		},
		Packs: []PackDraft{{Doses: 1000, UnitsPerPack: 2}},
	}
	require.NoError(t, d.Validate())

	missing := d
	missing.Product.StorageTempRange = " "
	assert.ErrorIs(t, missing.Validate(), ErrMissingFields)

	none := d
	none.Packs = nil
	assert.ErrorIs(t, none.Validate(), ErrNoPacks)

	zero := d
	zero.Packs = []PackDraft{{Doses: 1000}}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidPack)
}

func TestBuildInventory(t *testing.T) {
	p := ndLive()
	p.Batches = append(p.Batches,
		models.Batch{ID: 101, ProductID: 1, BatchNumber: "B-2", ExpiryDate: "2026-10-10", Quantity: 3},
		models.Batch{ID: 102, ProductID: 1, BatchNumber: "B-3", ExpiryDate: "2026-11-05", Quantity: 3},
		models.Batch{ID: 103, ProductID: 1, BatchNumber: "B-4", ExpiryDate: "2026-12-20", Quantity: 3},
	)
	products := []models.Product{p, swineBatchOnly()}

	inv := BuildInventory(products, "", SortByStock, today)
	require.Len(t, inv.Rows, 2)
	assert.Equal(t, 1, inv.OutOfStock)
	assert.Equal(t, "PRRS Killed", inv.Rows[0].Product.Name)
	assert.Equal(t, "Out of Stock", inv.Rows[0].Badge)
	assert.Equal(t, "In Stock", inv.Rows[1].Badge)

	badges := map[string]string{}
	for _, b := range inv.Rows[1].Batches {
		badges[b.Batch.BatchNumber] = b.Badge
	}
	assert.Equal(t, map[string]string{"B-1": "60+ days", "B-2": "Expired", "B-3": "Expiring Soon", "B-4": "60+ days"}, badges)

	byName := BuildInventory(products, "", SortByName, today)
	assert.Equal(t, "ND Live", byName.Rows[0].Product.Name)

	swine := BuildInventory(products, "SWINE", SortByName, today)
	require.Len(t, swine.Rows, 1)
	assert.Equal(t, 1, swine.OutOfStock, "the counter ignores the search")
}

func TestStockBadge(t *testing.T) {
	assert.Equal(t, "Out of Stock", StockBadge(0))
	assert.Equal(t, "Low Stock", StockBadge(9))
	assert.Equal(t, "In Stock", StockBadge(10))
}
