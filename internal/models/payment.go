package models

import (
	"time"
)

type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

// Charge paths. Direct means the token arrived through the native checkout
// form submit; side-channel means the express button posted it on its own.
const (
	PathDirect      = "direct"
	PathSideChannel = "side_channel"
)

// Payment records one charge attempt against an order. Ephemeral from the
// shopper's point of view, but kept for reconciliation and audit.
type Payment struct {
	PaymentID        string        `json:"payment_id"`
	OrderID          string        `json:"order_id"`
	Status           PaymentStatus `json:"status"`
	AmountMinorUnits int64         `json:"amount_minor_units"`
	Currency         string        `json:"currency"`
	Path             string        `json:"path"`
	IdempotencyKey   string        `json:"idempotency_key"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	ErrorCode        string        `json:"error_code,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	CreatedDate      time.Time     `json:"created_date"`
}

type PaymentEvent struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Payment   *Payment  `json:"payment"`
	Timestamp time.Time `json:"timestamp"`
}

// SideChannelChargeRequest is the body of the alternate charge endpoint,
// used when the express button completes independently of the form submit.
type SideChannelChargeRequest struct {
	Token   string `json:"token" validate:"required"`
	OrderID string `json:"order_id" validate:"required"`
}
