package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order is the store's order entity. The gateway only reads the total and
// currency and drives the pending -> paid transition; everything else is
// owned by the storefront.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID       string    `bun:"order_id,pk" json:"order_id"`
	OrderNumber   string    `bun:"order_number" json:"order_number"`
	UserID        string    `bun:"user_id" json:"user_id"`
	Total         float64   `bun:"total" json:"total"`
	Currency      string    `bun:"currency" json:"currency"`
	Status        string    `bun:"status" json:"status"`
	TransactionID string    `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	PaidAt        time.Time `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
}

// OrderNote is an immutable entry in an order's history.
type OrderNote struct {
	bun.BaseModel `bun:"table:order_notes"`

	NoteID    string    `bun:"note_id,pk" json:"note_id"`
	OrderID   string    `bun:"order_id" json:"order_id"`
	Note      string    `bun:"note" json:"note"`
	Visible   bool      `bun:"visible" json:"visible"` // visible to the shopper
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
