package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("conflict")
)

// BatchFilter narrows batch listings.
type BatchFilter struct {
	ProductID int64
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	UserID int64
	Status models.OrderStatus
}

// Products persists catalog entries.
type Products interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	// DeleteProduct removes the product with its dose packs and batches.
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// DosePacks persists dose pack denominations.
type DosePacks interface {
	CreateDosePack(ctx context.Context, d *models.DosePack) error
	GetDosePack(ctx context.Context, id int64) (*models.DosePack, error)
	UpdateDosePack(ctx context.Context, d *models.DosePack) error
	DeleteDosePack(ctx context.Context, id int64) error
	// ListDosePacks returns the packs of one product, or all packs when productID is 0.
	ListDosePacks(ctx context.Context, productID int64) ([]models.DosePack, error)
}

// Batches persists production lots.
type Batches interface {
	CreateBatch(ctx context.Context, b *models.Batch) error
	GetBatch(ctx context.Context, id int64) (*models.Batch, error)
	UpdateBatch(ctx context.Context, b *models.Batch) error
	DeleteBatch(ctx context.Context, id int64) error
	// ListBatches returns batches ordered by expiry date, oldest first.
	ListBatches(ctx context.Context, f BatchFilter) ([]models.Batch, error)
}

// Orders persists submitted orders.
type Orders interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
}

// Users persists accounts and their auth tokens.
type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveToken(ctx context.Context, t models.AuthToken) error
	GetToken(ctx context.Context, key string) (*models.AuthToken, error)
	DeleteToken(ctx context.Context, key string) error
}

// InventoryLogs persists stock movement audit records.
type InventoryLogs interface {
	AppendLog(ctx context.Context, l *models.InventoryLog) error
	// ListLogs returns newest first, for one product or all when productID is 0.
	ListLogs(ctx context.Context, productID int64) ([]models.InventoryLog, error)
}

// TxManager runs fn atomically. A returned error discards every write made by fn.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sequencer hands out monotonically increasing ids per name.
type Sequencer interface {
	NextID(ctx context.Context, name string) (int64, error)
}

// Store is the full persistence surface of the backend.
type Store interface {
	Products
	DosePacks
	Batches
	Orders
	Users
	InventoryLogs
	TxManager
	Sequencer
	Close(ctx context.Context) error
}

// ContainsFold is a case-insensitive substring match; an empty needle always matches.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
