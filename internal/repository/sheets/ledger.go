// Package sheets mirrors order status changes into a Google Sheets ledger.
package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// Header is the column layout of the ledger range.
var Header = []interface{}{"changed_at", "order_id", "order_number", "status", "changed_by", "event"}

// Ledger appends one row per order status event.
type Ledger struct {
	service       *sheetsapi.Service
	spreadsheetID string
	sheetRange    string
	logger        *zap.Logger
}

// NewLedger builds a ledger from service-account credentials.
func NewLedger(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Ledger, error) {
	return NewLedgerWithOptions(ctx, cfg, logger,
		option.WithCredentialsFile(cfg.CredentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
}

// NewLedgerWithOptions builds a ledger with explicit client options, e.g. a custom endpoint.
func NewLedgerWithOptions(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id must not be empty")
	}
	sheetRange := cfg.LedgerRange
	if sheetRange == "" {
		sheetRange = "Orders!A:F"
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &Ledger{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    sheetRange,
		logger:        logger,
	}, nil
}

// Row renders an event as ledger cells.
func Row(ev models.StatusEvent) []interface{} {
	return []interface{}{
		ev.ChangedAt.UTC().Format(time.RFC3339),
		ev.OrderID,
		ev.Number,
		string(ev.Status),
		ev.ChangedBy,
		ev.Type,
	}
}

// Publish appends the event to the ledger range.
func (l *Ledger) Publish(ctx context.Context, ev models.StatusEvent) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{Row(ev)}}

	call := l.service.Spreadsheets.Values.Append(l.spreadsheetID, l.sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append ledger row for order %s: %w", ev.Number, err)
	}

	l.logger.Debug("ledger row appended", zap.String("order", ev.Number), zap.String("status", string(ev.Status)))
	return nil
}

// History reads the rows recorded for one order number.
func (l *Ledger) History(ctx context.Context, orderNumber string) ([][]interface{}, error) {
	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", l.sheetRange, err)
	}

	var rows [][]interface{}
	for _, row := range resp.Values {
		if len(row) > 2 && fmt.Sprint(row[2]) == orderNumber {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
