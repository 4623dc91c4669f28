// Package notify fans order status events out to every configured channel.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// Publisher delivers one status event.
type Publisher interface {
	Publish(ctx context.Context, ev models.StatusEvent) error
}

// Fanout publishes to every channel and joins the failures.
type Fanout struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewFanout skips nil publishers.
func NewFanout(logger *zap.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{logger: logger}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Len is the number of channels.
func (f *Fanout) Len() int { return len(f.publishers) }

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, ev models.StatusEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		f.logger.Debug("status event partially delivered", zap.Int("failed", len(errs)), zap.Int("channels", len(f.publishers)))
	}
	return errors.Join(errs...)
}
