package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	StatusRequested  OrderStatus = "requested"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusPrepared   OrderStatus = "prepared"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusPrepared, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// SystemUsername is reported for history entries without a staff author.
const SystemUsername = "System"

// StatusHistoryEntry records one status change. Entries are append-only.
type StatusHistoryEntry struct {
	ID                int64       `bson:"id" json:"id"`
	Status            OrderStatus `bson:"status" json:"status"`
	ChangedBy         *int64      `bson:"changed_by" json:"changed_by"`
	ChangedByUsername string      `bson:"changed_by_username" json:"changed_by_username"`
	ChangedAt         time.Time   `bson:"changed_at" json:"changed_at"`
}

// Reservation is the number of packs held against one batch for an order line.
// UnitsPerPack is the pack size logged when the packs were reserved.
type Reservation struct {
	BatchID      int64 `bson:"batch_id" json:"batch_id"`
	Quantity     int   `bson:"quantity" json:"quantity"`
	UnitsPerPack int   `bson:"units_per_pack" json:"units_per_pack"`
}

// Units is the log quantity the reservation stands for.
func (r Reservation) Units() int {
	if r.UnitsPerPack <= 0 {
		return r.Quantity
	}
	return r.Quantity * r.UnitsPerPack
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID                    int64           `bson:"id" json:"id"`
	ProductID             int64           `bson:"product" json:"product"`
	ProductName           string          `bson:"product_name" json:"product_name"`
	DosePackID            *int64          `bson:"dose_pack" json:"dose_pack"`
	BatchID               *int64          `bson:"batch" json:"batch"`
	Doses                 int             `bson:"doses" json:"doses"`
	Quantity              int             `bson:"quantity" json:"quantity"`
	UnitPrice             decimal.Decimal `bson:"unit_price" json:"unit_price"`
	RequestedDeliveryDate string          `bson:"requested_delivery_date" json:"requested_delivery_date"`
	SpecialInstructions   string          `bson:"special_instructions" json:"special_instructions"`

	Reservations      []Reservation `bson:"reservations" json:"-"`
	PackUnitsDeducted int           `bson:"pack_units_deducted" json:"-"`
}

// Order is a shopper's submitted request.
type Order struct {
	ID              int64                `bson:"_id" json:"id"`
	OrderNumber     string               `bson:"order_number" json:"order_number"`
	UserID          int64                `bson:"user_id" json:"-"`
	User            *User                `bson:"-" json:"user"`
	UserUsername    string               `bson:"user_username" json:"user_username"`
	UserCompanyName string               `bson:"user_company_name" json:"user_company_name"`
	Items           []OrderItem          `bson:"items" json:"items"`
	Status          OrderStatus          `bson:"status" json:"status"`
	TotalAmount     decimal.Decimal      `bson:"total_amount" json:"total_amount"`
	Notes           string               `bson:"notes" json:"notes"`
	InternalNotes   string               `bson:"internal_notes" json:"internal_notes"`
	StatusHistory   []StatusHistoryEntry `bson:"status_history" json:"status_history"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

// NewOrderItem is the checkout payload for one line.
type NewOrderItem struct {
	Product               int64           `json:"product"`
	DosePack              *int64          `json:"dose_pack"`
	Batch                 *int64          `json:"batch,omitempty"`
	Quantity              int             `json:"quantity"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	RequestedDeliveryDate string          `json:"requested_delivery_date"`
	SpecialInstructions   string          `json:"special_instructions"`
}

// NewOrder is the checkout payload.
type NewOrder struct {
	Notes string         `json:"notes"`
	Items []NewOrderItem `json:"items"`
}

// SetStatusRequest is the body of the staff status transition call.
type SetStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// StatusEvent is published whenever an order changes status.
type StatusEvent struct {
	Type      string      `json:"type"`
	OrderID   int64       `json:"order_id"`
	Number    string      `json:"order_number"`
	Status    OrderStatus `json:"status"`
	UserID    int64       `json:"-"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
}
