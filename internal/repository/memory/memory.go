// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
)

type state struct {
	seq       map[string]int64
	products  map[int64]models.Product
	dosePacks map[int64]models.DosePack
	batches   map[int64]models.Batch
	orders    map[int64]models.Order
	users     map[int64]models.User
	tokens    map[string]models.AuthToken
	logs      map[int64]models.InventoryLog
}

func newState() state {
	return state{
		seq:       make(map[string]int64),
		products:  make(map[int64]models.Product),
		dosePacks: make(map[int64]models.DosePack),
		batches:   make(map[int64]models.Batch),
		orders:    make(map[int64]models.Order),
		users:     make(map[int64]models.User),
		tokens:    make(map[string]models.AuthToken),
		logs:      make(map[int64]models.InventoryLog),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range s.dosePacks {
		c.dosePacks[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.logs {
		c.logs[k] = v
	}
	return c
}

// Store keeps every collection in maps behind one RWMutex.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.Store = (*Store)(nil)

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (m *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction holds the write lock for the duration of fn and restores the previous
// state when fn fails. Repository calls inside fn skip their own locking.
func (m *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// NextID implements repository.Sequencer.
func (m *Store) NextID(ctx context.Context, name string) (int64, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	return m.nextLocked(name), nil
}

func (m *Store) nextLocked(name string) int64 {
	m.st.seq[name]++
	return m.st.seq[name]
}

// Close is a no-op.
func (m *Store) Close(context.Context) error { return nil }

// Products

func (m *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextLocked("products")
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.st.products[p.ID] = cloneProduct(*p)
	return nil
}

func (m *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneProduct(p)
	return &cp, nil
}

func (m *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	prev, ok := m.st.products[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = m.now()
	m.st.products[p.ID] = cloneProduct(*p)
	return nil
}

func (m *Store) DeleteProduct(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.st.products, id)
	for k, d := range m.st.dosePacks {
		if d.ProductID == id {
			delete(m.st.dosePacks, k)
		}
	}
	for k, b := range m.st.batches {
		if b.ProductID == id {
			delete(m.st.batches, k)
		}
	}
	return nil
}

func (m *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Product, 0, len(m.st.products))
	for _, p := range m.st.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dose packs

func (m *Store) CreateDosePack(ctx context.Context, d *models.DosePack) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	d.ID = m.nextLocked("dosepacks")
	m.st.dosePacks[d.ID] = *d
	return nil
}

func (m *Store) GetDosePack(ctx context.Context, id int64) (*models.DosePack, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	d, ok := m.st.dosePacks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *Store) UpdateDosePack(ctx context.Context, d *models.DosePack) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.dosePacks[d.ID]; !ok {
		return repository.ErrNotFound
	}
	m.st.dosePacks[d.ID] = *d
	return nil
}

func (m *Store) DeleteDosePack(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.dosePacks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.st.dosePacks, id)
	return nil
}

func (m *Store) ListDosePacks(ctx context.Context, productID int64) ([]models.DosePack, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.DosePack, 0)
	for _, d := range m.st.dosePacks {
		if productID != 0 && d.ProductID != productID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Batches

func (m *Store) batchNumberTaken(number string, except int64) bool {
	for _, b := range m.st.batches {
		if b.ID != except && b.BatchNumber == number {
			return true
		}
	}
	return false
}

func (m *Store) CreateBatch(ctx context.Context, b *models.Batch) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if m.batchNumberTaken(b.BatchNumber, 0) {
		return repository.ErrConflict
	}
	b.ID = m.nextLocked("batches")
	b.CreatedAt = m.now()
	b.UpdatedAt = b.CreatedAt
	b.Refresh()
	m.st.batches[b.ID] = *b
	return nil
}

func (m *Store) GetBatch(ctx context.Context, id int64) (*models.Batch, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	b, ok := m.st.batches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *Store) UpdateBatch(ctx context.Context, b *models.Batch) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	prev, ok := m.st.batches[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.batchNumberTaken(b.BatchNumber, b.ID) {
		return repository.ErrConflict
	}
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = m.now()
	b.Refresh()
	m.st.batches[b.ID] = *b
	return nil
}

func (m *Store) DeleteBatch(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.st.batches[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.st.batches, id)
	return nil
}

func (m *Store) ListBatches(ctx context.Context, f repository.BatchFilter) ([]models.Batch, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Batch, 0)
	for _, b := range m.st.batches {
		if f.ProductID != 0 && b.ProductID != f.ProductID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiryDate == out[j].ExpiryDate {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiryDate < out[j].ExpiryDate
	})
	return out, nil
}

// Orders

func (m *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	o.ID = m.nextLocked("orders")
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	o, ok := m.st.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (m *Store) UpdateOrder(ctx context.Context, o *models.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	prev, ok := m.st.orders[o.ID]
	if !ok {
		return repository.ErrNotFound
	}
	o.CreatedAt = prev.CreatedAt
	o.UpdatedAt = m.now()
	m.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *Store) ListOrders(ctx context.Context, f repository.OrderFilter) ([]models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Order, 0)
	for _, o := range m.st.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Users

func (m *Store) CreateUser(ctx context.Context, u *models.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.st.users {
		if existing.Username == u.Username {
			return repository.ErrConflict
		}
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	u.ID = m.nextLocked("users")
	u.CreatedAt = m.now()
	m.st.users[u.ID] = *u
	return nil
}

func (m *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	u, ok := m.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, u := range m.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, u := range m.st.users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Store) SaveToken(ctx context.Context, t models.AuthToken) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.st.tokens[t.Key] = t
	return nil
}

func (m *Store) GetToken(ctx context.Context, key string) (*models.AuthToken, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	t, ok := m.st.tokens[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (m *Store) DeleteToken(ctx context.Context, key string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	delete(m.st.tokens, key)
	return nil
}

// Inventory logs

func (m *Store) AppendLog(ctx context.Context, l *models.InventoryLog) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	l.ID = m.nextLocked("inventory_logs")
	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.now()
	}
	m.st.logs[l.ID] = *l
	return nil
}

func (m *Store) ListLogs(ctx context.Context, productID int64) ([]models.InventoryLog, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.InventoryLog, 0)
	for _, l := range m.st.logs {
		if productID != 0 && l.ProductID != productID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func cloneProduct(p models.Product) models.Product {
	p.Tags = append([]string(nil), p.Tags...)
	p.DosePacks = nil
	p.Batches = nil
	return p
}

func cloneOrder(o models.Order) models.Order {
	items := make([]models.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Reservations = append([]models.Reservation(nil), it.Reservations...)
		items[i] = it
	}
	o.Items = items
	o.StatusHistory = append([]models.StatusHistoryEntry(nil), o.StatusHistory...)
	o.User = nil
	return o
}
