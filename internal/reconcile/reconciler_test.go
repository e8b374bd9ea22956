package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

type mockOrders struct {
	orders       map[string]*models.Order
	notes        []models.OrderNote
	shouldFailOn string
	errorMsg     string
}

func newMockOrders() *mockOrders {
	return &mockOrders{
		orders: map[string]*models.Order{
			"order-1": {
				OrderID:     "order-1",
				OrderNumber: "1001",
				Total:       20.00,
				Currency:    "USD",
				Status:      models.OrderStatusPending,
			},
		},
	}
}

func (m *mockOrders) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if m.shouldFailOn == "GetOrder" {
		return nil, errors.New(m.errorMsg)
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	return order, nil
}

func (m *mockOrders) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	if m.shouldFailOn == "MarkPaid" {
		return errors.New(m.errorMsg)
	}
	order, ok := m.orders[orderID]
	if !ok {
		return errors.New("order not found")
	}
	order.Status = models.OrderStatusPaid
	order.TransactionID = transactionID
	return nil
}

func (m *mockOrders) AddNote(ctx context.Context, orderID, note string, visible bool) error {
	if m.shouldFailOn == "AddNote" {
		return errors.New(m.errorMsg)
	}
	m.notes = append(m.notes, models.OrderNote{OrderID: orderID, Note: note, Visible: visible})
	return nil
}

func newTestReconciler(orders OrderService) *Reconciler {
	return NewReconciler(orders, "https://shop.example.com", logger.NewTestLogger())
}

func TestApplySuccessMarksPaidAndRedirects(t *testing.T) {
	orders := newMockOrders()
	r := newTestReconciler(orders)

	outcome, err := r.ApplySuccess(context.Background(), "order-1", "PAY_abc", models.PathDirect)
	require.NoError(t, err)

	assert.Equal(t, ResultSuccess, outcome.Result)
	assert.Equal(t, "https://shop.example.com/checkout/order-received/order-1", outcome.Redirect)
	assert.Equal(t, "PAY_abc", outcome.TransactionID)

	assert.Equal(t, models.OrderStatusPaid, orders.orders["order-1"].Status)
	assert.Equal(t, "PAY_abc", orders.orders["order-1"].TransactionID)

	require.Len(t, orders.notes, 1)
	assert.Contains(t, orders.notes[0].Note, "PAY_abc")
	assert.False(t, orders.notes[0].Visible)
}

func TestApplySuccessSideChannelNoteNamesThePath(t *testing.T) {
	orders := newMockOrders()
	r := newTestReconciler(orders)

	_, err := r.ApplySuccess(context.Background(), "order-1", "PAY_abc", models.PathSideChannel)
	require.NoError(t, err)

	require.Len(t, orders.notes, 1)
	assert.Contains(t, orders.notes[0].Note, "express checkout")
}

func TestApplySuccessMarkPaidFailure(t *testing.T) {
	orders := newMockOrders()
	orders.shouldFailOn = "MarkPaid"
	orders.errorMsg = "db unavailable"
	r := newTestReconciler(orders)

	_, err := r.ApplySuccess(context.Background(), "order-1", "PAY_abc", models.PathDirect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order update failed")
}

func TestApplyFailureLeavesOrderUnpaid(t *testing.T) {
	orders := newMockOrders()
	r := newTestReconciler(orders)

	outcome := r.ApplyFailure(context.Background(), "order-1", "CARD_DECLINED")

	assert.Equal(t, ResultFailure, outcome.Result)
	assert.Equal(t, "Payment error: CARD_DECLINED", outcome.Message)
	assert.Empty(t, outcome.Redirect)

	// Order untouched; the shopper must remain able to retry.
	assert.Equal(t, models.OrderStatusPending, orders.orders["order-1"].Status)
	assert.Empty(t, orders.orders["order-1"].TransactionID)

	// But the failure is visible in the order history.
	require.Len(t, orders.notes, 1)
	assert.True(t, orders.notes[0].Visible)
	assert.Contains(t, orders.notes[0].Note, "CARD_DECLINED")
}
