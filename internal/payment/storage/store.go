package storage

import (
	"ms-payment-gateway/internal/models"
)

type Store interface {
	// Payment operations
	SavePayment(payment *models.Payment) error
	GetPayment(id string) (*models.Payment, error)
	UpdatePayment(payment *models.Payment) error
	ListPayments(orderID string, limit, offset int) ([]*models.Payment, error)
	GetPaymentByOrderID(orderID string) (*models.Payment, error)

	// Health and maintenance
	Close() error
	HealthCheck() error
}
