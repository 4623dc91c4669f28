package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/server/servertest"
)

type harness struct {
	env     *servertest.Env
	session string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &harness{env: servertest.New(t), session: filepath.Join(t.TempDir(), "session.json")}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", h.env.URL(), "--session", h.session, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) must(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestParseItem(t *testing.T) {
	spec, err := parseItem("3:7:2:2026-12-01:keep cold: 2-8C")
	require.NoError(t, err)
	assert.Equal(t, itemSpec{Product: 3, Option: 7, Quantity: 2, Date: "2026-12-01", Instructions: "keep cold: 2-8C"}, spec)

	spec, err = parseItem("3:7:1")
	require.NoError(t, err)
	assert.Empty(t, spec.Date)

	for _, bad := range []string{"3:7", "x:7:1", "3:7:0", "3:-1:2"} {
		_, err := parseItem(bad)
		assert.Error(t, err, bad)
	}
}

func TestShopperFlow(t *testing.T) {
	h := newHarness(t)
	h.env.CreateUser(t, "farmer", "pw-farmer", false)
	p := h.env.SeedProduct(t,
		models.Product{Name: "ND Live", Brand: "MSD Animal Health", Species: models.SpeciesPoultry, Type: models.VaccineLive, Description: "Newcastle", MinimumOrderQty: 2},
		[]models.DosePack{{Doses: 5000, UnitsPerPack: 4}},
		[]models.Batch{{BatchNumber: "ND-1", ExpiryDate: time.Now().AddDate(1, 0, 0).Format(models.DateLayout), Quantity: 30}},
	)

	out, err := h.run(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please sign in")

	out = h.must(t, "login", "-u", "farmer", "-p", "pw-farmer")
	assert.Contains(t, out, "Signed in as farmer (shopper)")

	out = h.must(t, "whoami")
	assert.Contains(t, out, "farmer <farmer@example.com>")

	out = h.must(t, "catalog", "--species", "poultry")
	assert.Contains(t, out, "ND Live")
	assert.Contains(t, out, "Showing 1 of 1 products")

	out = h.must(t, "catalog", "--search", "gumboro")
	assert.Contains(t, out, "No products found")

	out = h.must(t, "product", fmt.Sprint(p.ID))
	assert.Contains(t, out, "Minimum order: 2")
	assert.Contains(t, out, "5000 doses")

	item := fmt.Sprintf("%d:%d:1", p.ID, p.DosePacks[0].ID)
	out = h.must(t, "order", "--item", item, "--item", item)
	assert.Contains(t, out, "quantity raised to the minimum order of 2")
	assert.Contains(t, out, "Cart: 1 lines, 4 items")
	assert.Contains(t, out, "placed (requested)")

	early := fmt.Sprintf("%d:%d:2:%s", p.ID, p.DosePacks[0].ID, time.Now().Format(models.DateLayout))
	_, err = h.run(t, "order", "--item", early)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earliest")

	out = h.must(t, "orders", "--status", "pending")
	assert.Contains(t, out, "Total 1")
	assert.Contains(t, out, "confirmed", "next status column")

	_, err = h.run(t, "advance", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You do not have permission")

	out = h.must(t, "logout")
	assert.Contains(t, out, "Signed out.")
	_, err = h.run(t, "orders")
	require.Error(t, err)
}

func TestStaffFlow(t *testing.T) {
	h := newHarness(t)
	h.env.CreateUser(t, "farmer", "pw-farmer", false)
	h.env.CreateUser(t, "ops", "pw-ops", true)
	p := h.env.SeedProduct(t,
		models.Product{Name: "IB H120", Brand: "Urban Farmer", Species: models.SpeciesPoultry, Type: models.VaccineAttenuated},
		[]models.DosePack{{Doses: 1000, UnitsPerPack: 2}},
		[]models.Batch{{BatchNumber: "IB-1", ExpiryDate: time.Now().AddDate(0, 0, 10).Format(models.DateLayout), Quantity: 20}},
	)

	h.must(t, "login", "-u", "farmer", "-p", "pw-farmer")
	h.must(t, "order", "--item", fmt.Sprintf("%d:%d:3", p.ID, p.DosePacks[0].ID), "--notes", "urgent")

	out := h.must(t, "login", "-u", "ops", "-p", "pw-ops")
	assert.Contains(t, out, "(staff)")

	out = h.must(t, "advance", "1")
	assert.Contains(t, out, "requested -> confirmed")
	assert.Contains(t, out, "[*] Order Requested by farmer")
	assert.Contains(t, out, "[>] Confirmed")

	out = h.must(t, "inventory")
	assert.Contains(t, out, "IB H120")
	assert.Contains(t, out, "Expiring Soon")

	out = h.must(t, "cancel", "1")
	assert.Contains(t, out, "confirmed -> cancelled")
	assert.Contains(t, out, "[x] Cancelled")

	_, err := h.run(t, "advance", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be advanced")
}
