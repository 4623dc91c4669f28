// Package mongodb is the persistent Store backed by MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
)

const (
	collCounters  = "counters"
	collProducts  = "products"
	collDosePacks = "dose_packs"
	collBatches   = "batches"
	collOrders    = "orders"
	collUsers     = "users"
	collTokens    = "auth_tokens"
	collLogs      = "inventory_logs"
)

// MongoDBRepository implements repository.Store on a single database.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository connects, pings and ensures indexes.
func NewMongoDBRepository(ctx context.Context, uri, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(newRegistry())
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{client: client, db: client.Database(dbName), logger: logger}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		collBatches: {
			{Keys: bson.D{{Key: "batch_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "product", Value: 1}, {Key: "expiry_date", Value: 1}}},
		},
		collDosePacks: {
			{Keys: bson.D{{Key: "product", Value: 1}}},
		},
		collUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
			},
		},
		collOrders: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		collLogs: {
			{Keys: bson.D{{Key: "product", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collTokens: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}
	for coll, idx := range specs {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// WithTransaction runs fn in a session transaction. The server must be a replica set.
// Nested calls reuse the outer transaction.
func (r *MongoDBRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NextID increments the named counter document.
func (r *MongoDBRepository) NextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.db.Collection(collCounters).
		FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).
		Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", name, err)
	}
	return doc.Seq, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func mapErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func (r *MongoDBRepository) insert(ctx context.Context, coll string, doc interface{}, op string) error {
	_, err := r.db.Collection(coll).InsertOne(ctx, doc)
	return mapErr(err, op)
}

func (r *MongoDBRepository) findOne(ctx context.Context, coll string, filter interface{}, out interface{}, op string) error {
	return mapErr(r.db.Collection(coll).FindOne(ctx, filter).Decode(out), op)
}

func (r *MongoDBRepository) replace(ctx context.Context, coll string, id interface{}, doc interface{}, op string) error {
	res, err := r.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return mapErr(err, op)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *MongoDBRepository) deleteOne(ctx context.Context, coll string, id interface{}, op string) error {
	res, err := r.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err, op)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func find[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, sort bson.D, op string) ([]T, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, mapErr(err, op)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err, op)
	}
	return out, nil
}

// Products

func (r *MongoDBRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	id, err := r.NextID(ctx, collProducts)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	return r.insert(ctx, collProducts, p, "insert product")
}

func (r *MongoDBRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	if err := r.findOne(ctx, collProducts, bson.M{"_id": id}, &p, "get product"); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoDBRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = now()
	return r.replace(ctx, collProducts, p.ID, p, "update product")
}

func (r *MongoDBRepository) DeleteProduct(ctx context.Context, id int64) error {
	return r.WithTransaction(ctx, func(ctx context.Context) error {
		if err := r.deleteOne(ctx, collProducts, id, "delete product"); err != nil {
			return err
		}
		if _, err := r.db.Collection(collDosePacks).DeleteMany(ctx, bson.M{"product": id}); err != nil {
			return mapErr(err, "delete product dose packs")
		}
		if _, err := r.db.Collection(collBatches).DeleteMany(ctx, bson.M{"product": id}); err != nil {
			return mapErr(err, "delete product batches")
		}
		return nil
	})
}

func (r *MongoDBRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	return find[models.Product](ctx, r.db.Collection(collProducts), bson.M{}, bson.D{{Key: "_id", Value: 1}}, "list products")
}

// Dose packs

func (r *MongoDBRepository) CreateDosePack(ctx context.Context, d *models.DosePack) error {
	id, err := r.NextID(ctx, collDosePacks)
	if err != nil {
		return err
	}
	d.ID = id
	return r.insert(ctx, collDosePacks, d, "insert dose pack")
}

func (r *MongoDBRepository) GetDosePack(ctx context.Context, id int64) (*models.DosePack, error) {
	var d models.DosePack
	if err := r.findOne(ctx, collDosePacks, bson.M{"_id": id}, &d, "get dose pack"); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *MongoDBRepository) UpdateDosePack(ctx context.Context, d *models.DosePack) error {
	return r.replace(ctx, collDosePacks, d.ID, d, "update dose pack")
}

func (r *MongoDBRepository) DeleteDosePack(ctx context.Context, id int64) error {
	return r.deleteOne(ctx, collDosePacks, id, "delete dose pack")
}

func (r *MongoDBRepository) ListDosePacks(ctx context.Context, productID int64) ([]models.DosePack, error) {
	filter := bson.M{}
	if productID != 0 {
		filter["product"] = productID
	}
	return find[models.DosePack](ctx, r.db.Collection(collDosePacks), filter, bson.D{{Key: "_id", Value: 1}}, "list dose packs")
}

// Batches

func (r *MongoDBRepository) CreateBatch(ctx context.Context, b *models.Batch) error {
	id, err := r.NextID(ctx, collBatches)
	if err != nil {
		return err
	}
	b.ID = id
	b.CreatedAt = now()
	b.UpdatedAt = b.CreatedAt
	b.Refresh()
	return r.insert(ctx, collBatches, b, "insert batch")
}

func (r *MongoDBRepository) GetBatch(ctx context.Context, id int64) (*models.Batch, error) {
	var b models.Batch
	if err := r.findOne(ctx, collBatches, bson.M{"_id": id}, &b, "get batch"); err != nil {
		return nil, err
	}
	b.Refresh()
	return &b, nil
}

func (r *MongoDBRepository) UpdateBatch(ctx context.Context, b *models.Batch) error {
	b.UpdatedAt = now()
	b.Refresh()
	return r.replace(ctx, collBatches, b.ID, b, "update batch")
}

func (r *MongoDBRepository) DeleteBatch(ctx context.Context, id int64) error {
	return r.deleteOne(ctx, collBatches, id, "delete batch")
}

func (r *MongoDBRepository) ListBatches(ctx context.Context, f repository.BatchFilter) ([]models.Batch, error) {
	filter := bson.M{}
	if f.ProductID != 0 {
		filter["product"] = f.ProductID
	}
	sort := bson.D{{Key: "expiry_date", Value: 1}, {Key: "_id", Value: 1}}
	out, err := find[models.Batch](ctx, r.db.Collection(collBatches), filter, sort, "list batches")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Refresh()
	}
	return out, nil
}

// Orders

func (r *MongoDBRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	id, err := r.NextID(ctx, collOrders)
	if err != nil {
		return err
	}
	o.ID = id
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt
	return r.insert(ctx, collOrders, o, "insert order")
}

func (r *MongoDBRepository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var o models.Order
	if err := r.findOne(ctx, collOrders, bson.M{"_id": id}, &o, "get order"); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MongoDBRepository) UpdateOrder(ctx context.Context, o *models.Order) error {
	o.UpdatedAt = now()
	return r.replace(ctx, collOrders, o.ID, o, "update order")
}

func (r *MongoDBRepository) ListOrders(ctx context.Context, f repository.OrderFilter) ([]models.Order, error) {
	filter := bson.M{}
	if f.UserID != 0 {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return find[models.Order](ctx, r.db.Collection(collOrders), filter, bson.D{{Key: "_id", Value: 1}}, "list orders")
}

// Users

func (r *MongoDBRepository) CreateUser(ctx context.Context, u *models.User) error {
	id, err := r.NextID(ctx, collUsers)
	if err != nil {
		return err
	}
	u.ID = id
	u.CreatedAt = now()
	return r.insert(ctx, collUsers, u, "insert user")
}

func (r *MongoDBRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := r.findOne(ctx, collUsers, bson.M{"_id": id}, &u, "get user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *MongoDBRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.findOne(ctx, collUsers, bson.M{"username": username}, &u, "get user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *MongoDBRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, repository.ErrNotFound
	}
	var u models.User
	if err := r.findOne(ctx, collUsers, bson.M{"email": email}, &u, "get user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *MongoDBRepository) SaveToken(ctx context.Context, t models.AuthToken) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.db.Collection(collTokens).ReplaceOne(ctx, bson.M{"_id": t.Key}, t, opts)
	return mapErr(err, "save token")
}

func (r *MongoDBRepository) GetToken(ctx context.Context, key string) (*models.AuthToken, error) {
	var t models.AuthToken
	if err := r.findOne(ctx, collTokens, bson.M{"_id": key}, &t, "get token"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MongoDBRepository) DeleteToken(ctx context.Context, key string) error {
	_, err := r.db.Collection(collTokens).DeleteOne(ctx, bson.M{"_id": key})
	return mapErr(err, "delete token")
}

// Inventory logs

func (r *MongoDBRepository) AppendLog(ctx context.Context, l *models.InventoryLog) error {
	id, err := r.NextID(ctx, collLogs)
	if err != nil {
		return err
	}
	l.ID = id
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now()
	}
	return r.insert(ctx, collLogs, l, "insert inventory log")
}

func (r *MongoDBRepository) ListLogs(ctx context.Context, productID int64) ([]models.InventoryLog, error) {
	filter := bson.M{}
	if productID != 0 {
		filter["product"] = productID
	}
	return find[models.InventoryLog](ctx, r.db.Collection(collLogs), filter, bson.D{{Key: "_id", Value: -1}}, "list inventory logs")
}
