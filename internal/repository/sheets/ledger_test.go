package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

func TestPublishAndHistory(t *testing.T) {
	var appended [][]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			var body struct {
				Values [][]interface{} `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			appended = append(appended, body.Values...)
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"values": appended})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	ledger, err := NewLedgerWithOptions(ctx, config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Publish(ctx, models.StatusEvent{Type: "order.status", OrderID: 7, Number: "ORDAAA", Status: models.StatusConfirmed, ChangedBy: "staff", ChangedAt: at}))
	require.NoError(t, ledger.Publish(ctx, models.StatusEvent{Type: "order.status", OrderID: 8, Number: "ORDBBB", Status: models.StatusRequested, ChangedBy: "System", ChangedAt: at}))

	require.Len(t, appended, 2)
	rows, err := ledger.History(ctx, "ORDAAA")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "confirmed", rows[0][3])
	assert.Equal(t, "2026-03-01T09:00:00Z", rows[0][0])
}

func TestNewLedgerRequiresSpreadsheet(t *testing.T) {
	_, err := NewLedgerWithOptions(context.Background(), config.SheetsConfig{}, nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
