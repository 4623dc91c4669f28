// Package whatsapp sends operations notices (new orders, inventory digests) to a WhatsApp number.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	client "github.com/mamadbah2/vaccine-orders/pkg/clients/whatsapp"
)

// OpsNotifier writes to the operations recipient.
type OpsNotifier struct {
	sender    client.Sender
	recipient string
	logger    *zap.Logger
}

// NewOpsNotifier wires a notifier; sender may be nil, which disables sending.
func NewOpsNotifier(sender client.Sender, recipient string, logger *zap.Logger) *OpsNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpsNotifier{sender: sender, recipient: recipient, logger: logger}
}

// Enabled reports whether messages will actually be sent.
func (n *OpsNotifier) Enabled() bool {
	return n != nil && n.sender != nil && n.recipient != ""
}

// OrderPlaced announces a new order.
func (n *OpsNotifier) OrderPlaced(ctx context.Context, o models.Order) error {
	return n.send(ctx, FormatOrderPlaced(o))
}

// SendDigest sends a prepared report text.
func (n *OpsNotifier) SendDigest(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("digest is empty")
	}
	return n.send(ctx, text)
}

func (n *OpsNotifier) send(ctx context.Context, body string) error {
	if !n.Enabled() {
		return nil
	}
	id, err := n.sender.SendText(ctx, n.recipient, body)
	if err != nil {
		return fmt.Errorf("send ops notice: %w", err)
	}
	n.logger.Info("ops notice sent", zap.String("message_id", id))
	return nil
}

// FormatOrderPlaced renders the new-order notice.
func FormatOrderPlaced(o models.Order) string {
	var b strings.Builder
	who := o.UserUsername
	if o.UserCompanyName != "" {
		who = fmt.Sprintf("%s (%s)", who, o.UserCompanyName)
	}
	fmt.Fprintf(&b, "New order %s from %s\n", o.OrderNumber, who)
	for _, it := range o.Items {
		line := fmt.Sprintf("- %d x %s", it.Quantity, it.ProductName)
		if it.Doses > 0 {
			line += fmt.Sprintf(" (%d doses)", it.Doses)
		}
		if it.RequestedDeliveryDate != "" {
			line += " by " + it.RequestedDeliveryDate
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "Total: %s", o.TotalAmount.StringFixed(2))
	return b.String()
}
