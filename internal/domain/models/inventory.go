package models

import "time"

// LogAction classifies an inventory movement.
type LogAction string

const (
	LogReceived  LogAction = "received"
	LogReserved  LogAction = "reserved"
	LogConfirmed LogAction = "confirmed"
	LogShipped   LogAction = "shipped"
	LogReturned  LogAction = "returned"
	LogExpired   LogAction = "expired"
	LogAdjusted  LogAction = "adjusted"
)

// InventoryLog is an audit record of a stock movement.
type InventoryLog struct {
	ID                  int64     `bson:"_id" json:"id"`
	ProductID           int64     `bson:"product" json:"product"`
	ProductName         string    `bson:"product_name" json:"product_name"`
	BatchID             *int64    `bson:"batch" json:"batch"`
	BatchNumber         string    `bson:"batch_number" json:"batch_number"`
	Action              LogAction `bson:"action" json:"action"`
	QuantityChanged     int       `bson:"quantity_changed" json:"quantity_changed"`
	Reason              string    `bson:"reason" json:"reason"`
	RelatedOrderID      *int64    `bson:"related_order" json:"related_order"`
	OrderNumber         string    `bson:"order_number" json:"order_number"`
	PerformedBy         *int64    `bson:"performed_by" json:"performed_by"`
	PerformedByUsername string    `bson:"performed_by_username" json:"performed_by_username"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
}

// StockUpdate is one entry of a bulk stock adjustment.
type StockUpdate struct {
	BatchID         int64   `json:"batch_id"`
	Quantity        *int    `json:"quantity"`
	StorageLocation *string `json:"storage_location"`
	Reason          string  `json:"reason"`
}
