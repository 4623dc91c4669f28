// Package cart keeps the order a shopper is composing before checkout.
package cart

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

// Item is one cart line. Lines are keyed by (product id, dose pack id).
type Item struct {
	Product               models.Product
	DosePack              models.DosePack
	Quantity              int
	RequestedDeliveryDate string
	SpecialInstructions   string

	// Batch is set when the line was picked from a batch because the product has no
	// dose packs. DosePack then mirrors the batch (id, one dose, batch quantity).
	Batch *models.Batch
}

// Key returns the line identity.
func (i Item) Key() Key {
	return Key{ProductID: i.Product.ID, DosePackID: i.DosePack.ID}
}

// Key identifies a cart line.
type Key struct {
	ProductID  int64
	DosePackID int64
}

// IdentityStore persists the shopper identity. Cart contents are never persisted.
type IdentityStore interface {
	SaveUserID(id string) error
}

// Store holds cart lines in memory for one shopper session.
type Store struct {
	mu       sync.RWMutex
	items    []Item
	total    int
	userID   string
	identity IdentityStore
	logger   *zap.Logger
}

// NewStore builds an empty cart. identity may be nil.
func NewStore(identity IdentityStore, userID string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{identity: identity, userID: userID, logger: logger}
}

// AddItem appends a line, or when a line with the same key exists adds quantity to it.
// Special instructions on an existing line are only overwritten by a non-empty value.
func (s *Store) AddItem(product models.Product, pack models.DosePack, quantity int, deliveryDate, instructions string) {
	s.add(Item{
		Product:               product,
		DosePack:              pack,
		Quantity:              quantity,
		RequestedDeliveryDate: deliveryDate,
		SpecialInstructions:   instructions,
	})
}

// AddBatchItem adds a line for a product ordered by batch.
func (s *Store) AddBatchItem(product models.Product, batch models.Batch, quantity int, deliveryDate, instructions string) {
	b := batch
	s.add(Item{
		Product:               product,
		DosePack:              models.DosePack{ID: batch.ID, ProductID: product.ID, Doses: 1, UnitsPerPack: batch.Quantity},
		Quantity:              quantity,
		RequestedDeliveryDate: deliveryDate,
		SpecialInstructions:   instructions,
		Batch:                 &b,
	})
}

func (s *Store) add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.Key()
	if i := s.indexLocked(key); i >= 0 {
		s.items[i].Quantity += item.Quantity
		if item.SpecialInstructions != "" {
			s.items[i].SpecialInstructions = item.SpecialInstructions
		}
	} else {
		s.items = append(s.items, item)
	}
	s.recountLocked()
	s.logger.Debug("cart item added", zap.Int64("product_id", key.ProductID), zap.Int64("dose_pack_id", key.DosePackID), zap.Int("quantity", item.Quantity))
}

// RemoveItem deletes the matching line. Missing lines are ignored.
func (s *Store) RemoveItem(productID, dosePackID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(Key{ProductID: productID, DosePackID: dosePackID})
}

// UpdateQuantity replaces a line's quantity; a quantity of zero or less removes the line.
func (s *Store) UpdateQuantity(productID, dosePackID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{ProductID: productID, DosePackID: dosePackID}
	if quantity <= 0 {
		s.removeLocked(key)
		return
	}
	if i := s.indexLocked(key); i >= 0 {
		s.items[i].Quantity = quantity
		s.recountLocked()
	}
}

// UpdateDeliveryDate replaces a line's requested delivery date.
func (s *Store) UpdateDeliveryDate(productID, dosePackID int64, date string) {
	s.update(Key{ProductID: productID, DosePackID: dosePackID}, func(it *Item) { it.RequestedDeliveryDate = date })
}

// UpdateSpecialInstructions replaces a line's special instructions.
func (s *Store) UpdateSpecialInstructions(productID, dosePackID int64, instructions string) {
	s.update(Key{ProductID: productID, DosePackID: dosePackID}, func(it *Item) { it.SpecialInstructions = instructions })
}

func (s *Store) update(key Key, fn func(*Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(key); i >= 0 {
		fn(&s.items[i])
	}
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.total = 0
}

// SetUserIDAndClear associates the cart with a shopper identity ("" for signed out) and
// always empties it, so a pending cart never crosses from one user to another. The
// identity is persisted; the lines are not.
func (s *Store) SetUserIDAndClear(id string) error {
	s.mu.Lock()
	prev := s.userID
	s.userID = id
	s.items = nil
	s.total = 0
	s.mu.Unlock()

	s.logger.Info("cart identity changed", zap.String("previous_user_id", prev), zap.String("user_id", id))
	if s.identity == nil {
		return nil
	}
	return s.identity.SaveUserID(id)
}

// OnIdentityChange is the session listener hook.
func (s *Store) OnIdentityChange(id string) {
	if err := s.SetUserIDAndClear(id); err != nil {
		s.logger.Warn("persist cart identity failed", zap.Error(err))
	}
}

// UserID returns the associated shopper identity.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the line with the given key.
func (s *Store) Item(productID, dosePackID int64) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(Key{ProductID: productID, DosePackID: dosePackID}); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

// TotalItems is the sum of all line quantities, shown on the header badge.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) indexLocked(key Key) int {
	for i, it := range s.items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(key Key) {
	i := s.indexLocked(key)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.recountLocked()
}

func (s *Store) recountLocked() {
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	s.total = total
}
