package catalog

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/repository/memory"
)

type fakeImages struct{ saved []string }

func (f *fakeImages) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	_, _ = io.ReadAll(r)
	f.saved = append(f.saved, folder+"/"+filename)
	return "/media/" + folder + "/" + filename, nil
}

func newService(t *testing.T) (*Service, *memory.Store, *fakeImages) {
	t.Helper()
	store := memory.New()
	images := &fakeImages{}
	svc := NewService(store, images, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, store, images
}

func createProduct(t *testing.T, svc *Service) *models.Product {
	t.Helper()
	p, err := svc.CreateProduct(context.Background(), models.Product{
		Name:    "Newcastle Live",
		Species: models.SpeciesPoultry,
		Type:    models.VaccineLive,
	}, nil)
	require.NoError(t, err)
	return p
}

func TestCreateProductDefaults(t *testing.T) {
	svc, _, images := newService(t)
	p, err := svc.CreateProduct(context.Background(), models.Product{
		Name:    "  Gumboro  ",
		Species: models.SpeciesPoultry,
		Type:    models.VaccineKilled,
	}, &Upload{Filename: "g.png", Body: bytes.NewReader([]byte("img"))})
	require.NoError(t, err)
	assert.Equal(t, "Gumboro", p.Name)
	assert.Equal(t, models.DefaultLeadTimeDays, p.LeadTimeDays)
	assert.Equal(t, models.DefaultMinimumOrderQty, p.MinimumOrderQty)
	assert.Equal(t, "/media/products/g.png", p.ImageURL)
	assert.Equal(t, []string{"products/g.png"}, images.saved)

	plain := createProduct(t, svc)
	assert.Equal(t, models.PlaceholderImageURL, plain.ImageURL)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreateProduct(context.Background(), models.Product{Species: "cattle", Type: models.VaccineLive}, nil)
	var v *apperror.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "name")
	assert.Contains(t, v.Fields, "species")
	assert.NotContains(t, v.Fields, "product_type")
}

func TestGetProductAggregatesStock(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)

	_, err := svc.CreateDosePack(ctx, models.DosePack{ProductID: p.ID, Doses: 1000, UnitsPerPack: 4})
	require.NoError(t, err)
	_, err = svc.CreateDosePack(ctx, models.DosePack{ProductID: p.ID, Doses: 5000, UnitsPerPack: 6})
	require.NoError(t, err)
	_, err = svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: "B1", ExpiryDate: "2027-01-01", Quantity: 20, QuantityReserved: 5}, nil)
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalUnits)
	assert.Equal(t, 15, got.TotalStock)
	assert.Len(t, got.DosePacks, 2)
	assert.Len(t, got.Batches, 1)

	list, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 15, list[0].TotalStock)
}

func TestDosePackValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	_, err := svc.CreateDosePack(ctx, models.DosePack{ProductID: 99, Doses: 0, UnitsPerPack: -1})
	var v *apperror.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Len(t, v.Fields, 3)

	p := createProduct(t, svc)
	d, err := svc.CreateDosePack(ctx, models.DosePack{ProductID: p.ID, Doses: 500, UnitsPerPack: 0})
	require.NoError(t, err)
	assert.False(t, d.Orderable())

	d.UnitsPerPack = 8
	d, err = svc.UpdateDosePack(ctx, *d)
	require.NoError(t, err)
	assert.True(t, d.Orderable())

	require.NoError(t, svc.DeleteDosePack(ctx, d.ID))
	_, err = svc.GetDosePack(ctx, d.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateBatchLogsReceipt(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	staff := &models.User{ID: 9, Username: "warehouse", IsStaff: true}

	b, err := svc.CreateBatch(ctx, staff, models.Batch{ProductID: p.ID, BatchNumber: "ND-01", ExpiryDate: "2026-12-31", Quantity: 40}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BatchAvailable, b.Status)
	assert.Equal(t, 40, b.AvailableQuantity)

	logs, err := svc.ListLogs(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogReceived, logs[0].Action)
	assert.Equal(t, 40, logs[0].QuantityChanged)
	assert.Equal(t, "ND-01", logs[0].BatchNumber)
	assert.Equal(t, "warehouse", logs[0].PerformedByUsername)

	_, err = svc.CreateBatch(ctx, staff, models.Batch{ProductID: p.ID, BatchNumber: "ND-01", ExpiryDate: "2026-12-31", Quantity: 1}, nil)
	var v *apperror.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "batch_number")
}

func TestBatchValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	_, err := svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: "X", ExpiryDate: "31/12/2026", Quantity: 2, QuantityReserved: 3}, nil)
	var v *apperror.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Fields, "expiry_date")
	assert.Contains(t, v.Fields, "quantity")
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	mk := func(num, exp string, qty int) {
		_, err := svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: num, ExpiryDate: exp, Quantity: qty}, nil)
		require.NoError(t, err)
	}
	mk("small", "2027-06-01", 50)
	mk("soon", "2026-01-25", 500)
	mk("fine", "2027-06-01", 500)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	var numbers []string
	for _, b := range low {
		numbers = append(numbers, b.BatchNumber)
	}
	assert.ElementsMatch(t, []string{"small", "soon"}, numbers)
}

func TestBulkUpdateStock(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	b, err := svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: "A", ExpiryDate: "2027-01-01", Quantity: 10}, nil)
	require.NoError(t, err)

	qty := 25
	loc := "Fridge 2"
	n, err := svc.BulkUpdateStock(ctx, &models.User{ID: 1, Username: "admin"}, []models.StockUpdate{
		{BatchID: b.ID, Quantity: &qty, StorageLocation: &loc},
		{BatchID: 404, Quantity: &qty},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.GetBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)
	assert.Equal(t, "Fridge 2", got.StorageLocation)

	logs, err := svc.ListLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogAdjusted, logs[0].Action)
	assert.Equal(t, 15, logs[0].QuantityChanged)
	assert.Equal(t, "Bulk adjustment", logs[0].Reason)
}

func TestExpireBatches(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	old, err := svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: "OLD", ExpiryDate: "2026-01-01", Quantity: 7, QuantityReserved: 2}, nil)
	require.NoError(t, err)
	_, err = svc.CreateBatch(ctx, nil, models.Batch{ProductID: p.ID, BatchNumber: "NEW", ExpiryDate: "2026-06-01", Quantity: 3}, nil)
	require.NoError(t, err)

	today := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	n, err := svc.ExpireBatches(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetBatch(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchExpired, got.Status)

	logs, err := svc.ListLogs(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogExpired, logs[0].Action)
	assert.Equal(t, -5, logs[0].QuantityChanged)

	n, err = svc.ExpireBatches(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteProductCascades(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	p := createProduct(t, svc)
	_, err := svc.CreateDosePack(ctx, models.DosePack{ProductID: p.ID, Doses: 1, UnitsPerPack: 1})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	packs, err := svc.ListDosePacks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, packs)
}
