package whatsapp

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

type fakeSender struct {
	to, body string
	calls    int
}

func (f *fakeSender) SendText(_ context.Context, to, body string) (string, error) {
	f.calls++
	f.to, f.body = to, body
	return "wamid.x", nil
}

func TestOrderPlacedNotice(t *testing.T) {
	sender := &fakeSender{}
	n := NewOpsNotifier(sender, "224600000000", nil)
	o := models.Order{
		OrderNumber:     "ORDABC",
		UserUsername:    "farm",
		UserCompanyName: "Farm Co",
		TotalAmount:     decimal.RequireFromString("12.5"),
		Items: []models.OrderItem{
			{ProductName: "ND Live", Quantity: 2, Doses: 1000, RequestedDeliveryDate: "2026-02-01"},
		},
	}
	require.NoError(t, n.OrderPlaced(context.Background(), o))
	assert.Equal(t, "224600000000", sender.to)
	assert.Equal(t, "New order ORDABC from farm (Farm Co)\n- 2 x ND Live (1000 doses) by 2026-02-01\nTotal: 12.50", sender.body)
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	sender := &fakeSender{}
	assert.NoError(t, NewOpsNotifier(sender, "", nil).OrderPlaced(context.Background(), models.Order{}))
	assert.NoError(t, NewOpsNotifier(nil, "x", nil).SendDigest(context.Background(), "hello"))
	assert.Zero(t, sender.calls)
	assert.Error(t, NewOpsNotifier(sender, "x", nil).SendDigest(context.Background(), " "))
}
