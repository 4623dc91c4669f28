package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

func product(units []int, avail []int) models.Product {
	p := models.Product{LeadTimeDays: 5, MinimumOrderQty: 2}
	for i, u := range units {
		p.DosePacks = append(p.DosePacks, models.DosePack{ID: int64(i + 1), Doses: 1000, UnitsPerPack: u})
	}
	for i, a := range avail {
		p.Batches = append(p.Batches, models.Batch{ID: int64(i + 1), Quantity: a + 1, QuantityReserved: 1})
	}
	return p
}

func TestDisplayedDualCondition(t *testing.T) {
	cases := []struct {
		name  string
		units int
		avail int
		want  int
	}{
		{"both positive shows batches", 4, 120, 120},
		{"units only", 4, 0, 4},
		{"batches only are hidden", 0, 120, 0},
		{"nothing", 0, 0, 0},
		{"negative availability ignored", 3, -5, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Displayed(tc.units, tc.avail))
		})
	}
}

func TestDisplayedForSumsNestedCollections(t *testing.T) {
	assert.Equal(t, 30, DisplayedFor(product([]int{1, 2}, []int{10, 20})))
	assert.Equal(t, 3, DisplayedFor(product([]int{1, 2}, nil)))
	assert.Equal(t, 0, DisplayedFor(product(nil, []int{10})))
}

func TestLeadTime(t *testing.T) {
	assert.Equal(t, NoUnitsLeadTimeDays, LeadTimeDays(product(nil, []int{50})))
	assert.Equal(t, NoUnitsLeadTimeDays, LeadTimeDays(product([]int{0, 0}, nil)))
	assert.Equal(t, 5, LeadTimeDays(product([]int{1}, nil)))

	p := product([]int{1}, nil)
	p.LeadTimeDays = 0
	assert.Equal(t, models.DefaultLeadTimeDays, LeadTimeDays(p))
}

func TestDeliveryFloor(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	p := product([]int{1}, nil)

	floor := EarliestDelivery(p, today)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), floor)
	assert.True(t, DeliveryAllowed(p, today, floor))
	assert.True(t, DeliveryAllowed(p, today, floor.Add(3*time.Hour)))
	assert.False(t, DeliveryAllowed(p, today, floor.AddDate(0, 0, -1)))

	noUnits := product(nil, nil)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), EarliestDelivery(noUnits, today))
}

func TestDeliveryFloorComparesCalendarDays(t *testing.T) {
	eastern := time.FixedZone("EDT", -4*60*60)
	today := time.Date(2026, 10, 18, 9, 0, 0, 0, eastern)
	p := product([]int{1}, nil)
	p.LeadTimeDays = 3

	floor, err := time.Parse(models.DateLayout, "2026-10-21")
	assert.NoError(t, err)
	assert.True(t, DeliveryAllowed(p, today, floor))

	dayBefore, err := time.Parse(models.DateLayout, "2026-10-20")
	assert.NoError(t, err)
	assert.False(t, DeliveryAllowed(p, today, dayBefore))

	ahead := time.FixedZone("JST", 9*60*60)
	assert.True(t, DeliveryAllowed(p, today, time.Date(2026, 10, 21, 1, 0, 0, 0, ahead)))
	assert.False(t, DeliveryAllowed(p, today, time.Date(2026, 10, 20, 23, 0, 0, 0, ahead)))
}

func TestMinimumQuantity(t *testing.T) {
	p := product([]int{1}, nil)
	assert.Equal(t, 2, ClampQty(p, 1))
	assert.Equal(t, 7, ClampQty(p, 7))
	assert.False(t, CanDecrement(p, 2))
	assert.True(t, CanDecrement(p, 3))

	assert.Equal(t, 1, MinimumQty(models.Product{}))
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelOut, LevelOf(0))
	assert.Equal(t, LevelLow, LevelOf(9))
	assert.Equal(t, LevelIn, LevelOf(10))

	today := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ExpiryExpired, ExpiryOf(models.Batch{ExpiryDate: "2025-12-31"}, today))
	assert.Equal(t, ExpirySoon, ExpiryOf(models.Batch{ExpiryDate: "2026-01-20"}, today))
	assert.Equal(t, ExpiryWatch, ExpiryOf(models.Batch{ExpiryDate: "2026-03-01"}, today))
	assert.Equal(t, ExpirySafe, ExpiryOf(models.Batch{ExpiryDate: "2027-01-01"}, today))
	assert.Equal(t, ExpiryUnknown, ExpiryOf(models.Batch{ExpiryDate: "soon"}, today))
}
