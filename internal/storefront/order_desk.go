package storefront

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/lifecycle"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
)

// PendingFilter selects requested, confirmed and prepared orders on the tracking page.
const PendingFilter = "pending"

// ErrNoNextStatus is returned when advancing an order that has no forward step.
const ErrNoNextStatus = userError("This order cannot be advanced any further.")

// Counters are the dashboard tiles.
type Counters struct {
	Total     int
	Open      int
	Pending   int
	Requested int
	Confirmed int
	Upcoming  int
	Delivered int
	Cancelled int
}

// Count tallies orders by status. Open is requested or confirmed, Upcoming is dispatched.
func Count(orders []models.Order) Counters {
	c := Counters{Total: len(orders)}
	for _, o := range orders {
		if lifecycle.IsPending(o.Status) {
			c.Pending++
		}
		switch o.Status {
		case models.StatusRequested:
			c.Requested++
			c.Open++
		case models.StatusConfirmed:
			c.Confirmed++
			c.Open++
		case models.StatusDispatched:
			c.Upcoming++
		case models.StatusDelivered:
			c.Delivered++
		case models.StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// Active returns the orders the dashboard lists, newest first: those with the given
// status, or every order not yet delivered or cancelled when status is empty or "all".
func Active(orders []models.Order, status string) []models.Order {
	var out []models.Order
	for _, o := range orders {
		if isSet(status) {
			if string(o.Status) == status {
				out = append(out, o)
			}
			continue
		}
		if !lifecycle.IsTerminal(o.Status) {
			out = append(out, o)
		}
	}
	newestFirst(out)
	return out
}

// Delivered returns delivered orders, newest first.
func Delivered(orders []models.Order) []models.Order {
	return Active(orders, string(models.StatusDelivered))
}

// Track filters the shopper's tracking list by order number and status. The "pending"
// status matches every order still in progress.
func Track(orders []models.Order, search, status string) []models.Order {
	var out []models.Order
	for _, o := range orders {
		if !repository.ContainsFold(o.OrderNumber, search) {
			continue
		}
		switch {
		case status == PendingFilter:
			if !lifecycle.IsPending(o.Status) {
				continue
			}
		case isSet(status):
			if string(o.Status) != status {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

func newestFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

// OrdersAPI reads and transitions orders.
type OrdersAPI interface {
	Orders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	Order(ctx context.Context, id int64) (*models.Order, error)
	SetStatus(ctx context.Context, id int64, status models.OrderStatus) error
}

// OrderDesk is the order dashboard and tracking view.
type OrderDesk struct {
	api    OrdersAPI
	logger *zap.Logger
}

func NewOrderDesk(api OrdersAPI, logger *zap.Logger) *OrderDesk {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderDesk{api: api, logger: logger}
}

// List fetches orders with the given status ("" for all) and their counters.
func (d *OrderDesk) List(ctx context.Context, status models.OrderStatus) ([]models.Order, Counters, error) {
	orders, err := d.api.Orders(ctx, status)
	if err != nil {
		return nil, Counters{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, Count(orders), nil
}

// Detail fetches one order with its timeline.
func (d *OrderDesk) Detail(ctx context.Context, id int64) (*models.Order, lifecycle.Timeline, error) {
	o, err := d.api.Order(ctx, id)
	if err != nil {
		return nil, lifecycle.Timeline{}, fmt.Errorf("load order %d: %w", id, err)
	}
	return o, lifecycle.BuildTimeline(*o), nil
}

// Proposal is the status the confirmation dialog offers for an order.
func Proposal(o models.Order) (models.OrderStatus, bool) {
	return lifecycle.Next(o.Status)
}

// Advance moves o exactly one step forward. On failure o is returned unchanged together
// with the error; the caller shows Message(err, ...) and does not retry.
func (d *OrderDesk) Advance(ctx context.Context, o models.Order) (models.Order, error) {
	next, ok := Proposal(o)
	if !ok {
		return o, ErrNoNextStatus
	}
	return d.transition(ctx, o, next)
}

// Cancel moves o to cancelled.
func (d *OrderDesk) Cancel(ctx context.Context, o models.Order) (models.Order, error) {
	if lifecycle.IsTerminal(o.Status) {
		return o, ErrNoNextStatus
	}
	return d.transition(ctx, o, models.StatusCancelled)
}

// transition sends the status change, then refetches the order to pick up the new history.
// When the refetch fails only the status is patched locally.
func (d *OrderDesk) transition(ctx context.Context, o models.Order, to models.OrderStatus) (models.Order, error) {
	if err := d.api.SetStatus(ctx, o.ID, to); err != nil {
		d.logger.Warn("status change failed",
			zap.String("order_number", o.OrderNumber),
			zap.String("status", string(to)),
			zap.Error(err))
		return o, fmt.Errorf("set status %s: %w", to, err)
	}

	fresh, err := d.api.Order(ctx, o.ID)
	if err != nil || fresh == nil {
		d.logger.Warn("order refetch failed, patching status only", zap.String("order_number", o.OrderNumber), zap.Error(err))
		patched := o
		patched.Status = to
		return patched, nil
	}
	d.logger.Info("order status changed", zap.String("order_number", o.OrderNumber), zap.String("status", string(to)))
	return *fresh, nil
}

// StatusFailure is the text shown in the confirmation dialog after a failed transition.
func StatusFailure(err error) string {
	return Message(err, "Failed to update status")
}
