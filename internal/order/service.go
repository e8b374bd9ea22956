package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

type DBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order models.Order) error
	UpdateOrder(ctx context.Context, order models.Order) error
	InsertNote(ctx context.Context, note models.OrderNote) error
	GetNotesByOrder(ctx context.Context, orderID string) ([]models.OrderNote, error)
}

var ErrAlreadyPaid = errors.New("order is already paid")

// OrderService exposes the slice of the store's order model the gateway
// needs: read totals, transition to paid, append history notes.
type OrderService struct {
	DB     DBLayer
	logger *logger.Logger
}

func NewOrderService(db DBLayer, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, logger: log}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, id)
}

// MarkPaid transitions a pending order to paid and records the processor's
// transaction identifier. Calling it twice for the same order is an error:
// a paid order is never charged again.
func (s *OrderService) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order %s not found: %w", orderID, err)
	}
	if order.Status == models.OrderStatusPaid {
		s.logger.Warn("ORDER", fmt.Sprintf("order %s is already paid (transaction %s)", orderID, order.TransactionID))
		return ErrAlreadyPaid
	}

	order.Status = models.OrderStatusPaid
	order.TransactionID = transactionID
	order.PaidAt = time.Now()

	if err := s.DB.UpdateOrder(ctx, *order); err != nil {
		return fmt.Errorf("failed to mark order %s paid: %w", orderID, err)
	}

	s.logger.LogCharge("MARK_PAID", orderID, fmt.Sprintf("transaction %s", transactionID))
	return nil
}

// AddNote appends an immutable entry to the order's history. Visible notes
// are shown to the shopper; hidden ones are for the merchant.
func (s *OrderService) AddNote(ctx context.Context, orderID, note string, visible bool) error {
	entry := models.OrderNote{
		NoteID:    uuid.NewString(),
		OrderID:   orderID,
		Note:      note,
		Visible:   visible,
		CreatedAt: time.Now(),
	}
	if err := s.DB.InsertNote(ctx, entry); err != nil {
		return fmt.Errorf("failed to add note to order %s: %w", orderID, err)
	}
	return nil
}
