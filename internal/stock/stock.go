// Package stock derives shopper-visible availability and lead time from a product's
// dose packs and batches.
package stock

import (
	"math"
	"time"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

const (
	// NoUnitsLeadTimeDays applies when the dose packs carry no ready units.
	NoUnitsLeadTimeDays = 21
	// LowStockThreshold is the level under which stock is flagged low.
	LowStockThreshold = 10
)

// TotalUnits sums units_per_pack over all dose packs.
func TotalUnits(packs []models.DosePack) int {
	total := 0
	for _, p := range packs {
		if p.UnitsPerPack > 0 {
			total += p.UnitsPerPack
		}
	}
	return total
}

// TotalAvailable sums available quantity over all batches.
func TotalAvailable(batches []models.Batch) int {
	total := 0
	for _, b := range batches {
		total += b.Available()
	}
	return total
}

// Displayed applies the dual-condition rule: batch availability when both the dose-pack
// units and the batch availability are positive, else the dose-pack units when positive,
// else zero. Batch stock is hidden whenever dose-pack units are zero.
func Displayed(units, available int) int {
	switch {
	case units > 0 && available > 0:
		return available
	case units > 0:
		return units
	default:
		return 0
	}
}

// DisplayedFor is Displayed over a product's nested packs and batches.
func DisplayedFor(p models.Product) int {
	return Displayed(TotalUnits(p.DosePacks), TotalAvailable(p.Batches))
}

// LeadTimeDays returns the effective lead time: 21 days when the dose packs carry no
// units, otherwise the product's configured lead time (default 3).
func LeadTimeDays(p models.Product) int {
	if TotalUnits(p.DosePacks) == 0 {
		return NoUnitsLeadTimeDays
	}
	if p.LeadTimeDays <= 0 {
		return models.DefaultLeadTimeDays
	}
	return p.LeadTimeDays
}

// EarliestDelivery is the first selectable delivery date, at day granularity.
func EarliestDelivery(p models.Product, today time.Time) time.Time {
	d := truncateDay(today)
	return d.AddDate(0, 0, LeadTimeDays(p))
}

// DeliveryAllowed reports whether date's calendar day is on or after the earliest delivery
// date. The zone of date is ignored; days are compared in today's location.
func DeliveryAllowed(p models.Product, today, date time.Time) bool {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return !day.Before(EarliestDelivery(p, today))
}

// MinimumQty returns the product's order floor (default 1).
func MinimumQty(p models.Product) int {
	if p.MinimumOrderQty <= 0 {
		return models.DefaultMinimumOrderQty
	}
	return p.MinimumOrderQty
}

// ClampQty raises q to the product minimum.
func ClampQty(p models.Product, q int) int {
	if m := MinimumQty(p); q < m {
		return m
	}
	return q
}

// CanDecrement reports whether the quantity selector may step down from q.
func CanDecrement(p models.Product, q int) bool {
	return q > MinimumQty(p)
}

// Level buckets a stock figure for badges.
type Level string

const (
	LevelOut Level = "out_of_stock"
	LevelLow Level = "low_stock"
	LevelIn  Level = "in_stock"
)

// LevelOf classifies a stock figure.
func LevelOf(n int) Level {
	switch {
	case n <= 0:
		return LevelOut
	case n < LowStockThreshold:
		return LevelLow
	default:
		return LevelIn
	}
}

// ExpiryLevel buckets days-until-expiry for badges.
type ExpiryLevel string

const (
	ExpiryExpired ExpiryLevel = "expired"
	ExpirySoon    ExpiryLevel = "expiring_soon"
	ExpiryWatch   ExpiryLevel = "60_plus_days"
	ExpirySafe    ExpiryLevel = "safe"
	ExpiryUnknown ExpiryLevel = "unknown"
)

const (
	expirySoonDays  = 30
	expiryWatchDays = 90
)

// DaysUntil returns whole days from today to date.
func DaysUntil(today, date time.Time) int {
	return int(math.Round(truncateDay(date).Sub(truncateDay(today)).Hours() / 24))
}

// ExpiryOf classifies a batch by days left until its expiry.
func ExpiryOf(b models.Batch, today time.Time) ExpiryLevel {
	exp, err := b.Expiry()
	if err != nil {
		return ExpiryUnknown
	}
	days := DaysUntil(today, exp)
	switch {
	case days < 0:
		return ExpiryExpired
	case days < expirySoonDays:
		return ExpirySoon
	case days < expiryWatchDays:
		return ExpiryWatch
	default:
		return ExpirySafe
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
