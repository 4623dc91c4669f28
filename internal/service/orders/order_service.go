// Package orders implements checkout, the staff status workflow and stock reservation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/lifecycle"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// EventStatusChanged is the event type published on every status change.
const EventStatusChanged = "order.status"

// Publisher receives order status events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, ev models.StatusEvent) error
}

// PlacementNotifier is told about new orders.
type PlacementNotifier interface {
	OrderPlaced(ctx context.Context, o models.Order) error
}

// Service implements order use cases.
type Service struct {
	store     repository.Store
	publisher Publisher
	notifier  PlacementNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires an order service. publisher and notifier may be nil.
func NewService(store repository.Store, publisher Publisher, notifier PlacementNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewOrderNumber returns ORD followed by 12 uppercase hex characters.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD" + strings.ToUpper(hex[:12])
}

// Create validates the checkout payload and stores a requested order owned by user.
func (s *Service) Create(ctx context.Context, user models.User, in models.NewOrder) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperror.Invalid("items", "Order must contain at least one item.")
	}
	for idx, it := range in.Items {
		field := fmt.Sprintf("items[%d]", idx)
		switch {
		case it.Product == 0:
			return nil, apperror.Invalid(field+".product", "This field is required.")
		case it.Quantity <= 0:
			return nil, apperror.Invalid(field+".quantity", "Quantity must be greater than zero.")
		case it.UnitPrice.IsNegative():
			return nil, apperror.Invalid(field+".unit_price", "Unit price must be non-negative.")
		}
		if it.RequestedDeliveryDate != "" {
			if _, err := time.Parse(models.DateLayout, it.RequestedDeliveryDate); err != nil {
				return nil, apperror.Invalid(field+".requested_delivery_date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
			}
		}
	}

	var created *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		o := models.Order{
			OrderNumber:     NewOrderNumber(),
			UserID:          user.ID,
			UserUsername:    user.Username,
			UserCompanyName: user.CompanyName,
			Status:          models.StatusRequested,
			Notes:           in.Notes,
			TotalAmount:     decimal.Zero,
		}

		for idx, it := range in.Items {
			field := fmt.Sprintf("items[%d]", idx)
			product, err := s.store.GetProduct(ctx, it.Product)
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.Invalid(field+".product", "Invalid product id")
			}
			if err != nil {
				return err
			}

			itemID, err := s.store.NextID(ctx, "order_items")
			if err != nil {
				return err
			}
			item := models.OrderItem{
				ID:                    itemID,
				ProductID:             product.ID,
				ProductName:           product.Name,
				Quantity:              it.Quantity,
				UnitPrice:             it.UnitPrice,
				RequestedDeliveryDate: it.RequestedDeliveryDate,
				SpecialInstructions:   it.SpecialInstructions,
			}

			if it.DosePack != nil && *it.DosePack != 0 {
				pack, err := s.store.GetDosePack(ctx, *it.DosePack)
				if errors.Is(err, repository.ErrNotFound) {
					return apperror.Invalid(field+".dose_pack", "Invalid dose_pack id")
				}
				if err != nil {
					return err
				}
				id := pack.ID
				item.DosePackID = &id
				item.Doses = pack.Doses
			}
			if it.Batch != nil && *it.Batch != 0 {
				batch, err := s.store.GetBatch(ctx, *it.Batch)
				if errors.Is(err, repository.ErrNotFound) || (err == nil && batch.ProductID != product.ID) {
					return apperror.Invalid(field+".batch", "Invalid batch id")
				}
				if err != nil {
					return err
				}
				id := batch.ID
				item.BatchID = &id
			}

			o.Items = append(o.Items, item)
			o.TotalAmount = o.TotalAmount.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		entry, err := s.historyEntry(ctx, models.StatusRequested, nil)
		if err != nil {
			return err
		}
		o.StatusHistory = []models.StatusHistoryEntry{entry}

		if err := s.store.CreateOrder(ctx, &o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	created.User = &user
	s.logger.Info("order placed",
		zap.Int64("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("user", user.Username),
		zap.Int("items", len(created.Items)),
	)
	s.publish(ctx, *created, nil)
	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, *created); err != nil {
			s.logger.Warn("order placement notice failed", zap.String("order_number", created.OrderNumber), zap.Error(err))
		}
	}
	return created, nil
}

// List returns every order for staff and the caller's own orders otherwise.
func (s *Service) List(ctx context.Context, user models.User, status models.OrderStatus) ([]models.Order, error) {
	filter := repository.OrderFilter{Status: status}
	if !user.IsStaff {
		filter.UserID = user.ID
	}
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	users := make(map[int64]*models.User)
	for i := range orders {
		s.attachUser(ctx, &orders[i], users)
	}
	return orders, nil
}

// Get returns one order the caller may see.
func (s *Service) Get(ctx context.Context, user models.User, id int64) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff && o.UserID != user.ID {
		return nil, apperror.Forbidden("You do not have permission to access this order.")
	}
	s.attachUser(ctx, o, map[int64]*models.User{})
	return o, nil
}

func (s *Service) attachUser(ctx context.Context, o *models.Order, cache map[int64]*models.User) {
	if u, ok := cache[o.UserID]; ok {
		o.User = u
		return
	}
	u, err := s.store.GetUser(ctx, o.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("order owner lookup failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
		u = nil
	}
	cache[o.UserID] = u
	o.User = u
}

// SetStatus moves an order to status on behalf of a staff member. Confirmation reserves stock,
// cancellation releases it.
func (s *Service) SetStatus(ctx context.Context, actor models.User, id int64, status models.OrderStatus) (*models.Order, error) {
	if !actor.IsStaff {
		return nil, apperror.Forbidden("Only staff can change order status.")
	}
	if !status.Valid() {
		return nil, &apperror.Error{Kind: ErrInvalidStatus, Detail: "Invalid status."}
	}

	var updated *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !lifecycle.CanTransition(o.Status, status) {
			return &apperror.Error{
				Kind:   ErrInvalidTransition,
				Detail: fmt.Sprintf("Cannot change status from %s to %s.", o.Status, status),
			}
		}

		switch status {
		case models.StatusConfirmed:
			if err := s.reserve(ctx, o, actor); err != nil {
				return err
			}
		case models.StatusCancelled:
			if err := s.release(ctx, o, actor); err != nil {
				return err
			}
		}

		entry, err := s.historyEntry(ctx, status, &actor)
		if err != nil {
			return err
		}
		o.Status = status
		o.StatusHistory = append(o.StatusHistory, entry)
		if err := s.store.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.attachUser(ctx, updated, map[int64]*models.User{})
	s.logger.Info("order status changed",
		zap.String("order_number", updated.OrderNumber),
		zap.String("status", string(status)),
		zap.String("by", actor.Username),
	)
	s.publish(ctx, *updated, &actor)
	return updated, nil
}

// AddInternalNote appends a staff-only note on its own line.
func (s *Service) AddInternalNote(ctx context.Context, actor models.User, id int64, note string) (*models.Order, error) {
	if !actor.IsStaff {
		return nil, apperror.Forbidden("Only staff can add internal notes.")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperror.BadRequest("Note is required.")
	}

	var updated *models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.InternalNotes != "" {
			o.InternalNotes += "\n" + note
		} else {
			o.InternalNotes = note
		}
		if err := s.store.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) historyEntry(ctx context.Context, status models.OrderStatus, actor *models.User) (models.StatusHistoryEntry, error) {
	id, err := s.store.NextID(ctx, "status_history")
	if err != nil {
		return models.StatusHistoryEntry{}, err
	}
	entry := models.StatusHistoryEntry{
		ID:                id,
		Status:            status,
		ChangedByUsername: models.SystemUsername,
		ChangedAt:         s.now(),
	}
	if actor != nil {
		uid := actor.ID
		entry.ChangedBy = &uid
		entry.ChangedByUsername = actor.Username
	}
	return entry, nil
}

func (s *Service) publish(ctx context.Context, o models.Order, actor *models.User) {
	if s.publisher == nil {
		return
	}
	ev := models.StatusEvent{
		Type:      EventStatusChanged,
		OrderID:   o.ID,
		Number:    o.OrderNumber,
		Status:    o.Status,
		UserID:    o.UserID,
		ChangedBy: models.SystemUsername,
		ChangedAt: s.now(),
	}
	if actor != nil {
		ev.ChangedBy = actor.Username
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("status event delivery failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}
