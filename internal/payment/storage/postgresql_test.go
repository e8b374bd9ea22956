package storage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

func setupTestStore(t *testing.T) *PostgreSQLStore {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	store, err := NewPostgreSQLStoreWithDB(sqldb, logger.NewTestLogger())
	require.NoError(t, err)
	return store
}

func pendingPayment(orderID string) *models.Payment {
	return &models.Payment{
		PaymentID:        uuid.NewString(),
		OrderID:          orderID,
		Status:           models.StatusPending,
		AmountMinorUnits: 2000,
		Currency:         "USD",
		Path:             models.PathDirect,
		IdempotencyKey:   uuid.NewString(),
		CreatedDate:      time.Now(),
	}
}

func TestSavePayment_SequentialPendingRows(t *testing.T) {
	store := setupTestStore(t)

	// Every attempt carries its own idempotency key, so back-to-back
	// pending inserts must both land.
	first := pendingPayment("order-1")
	second := pendingPayment("order-2")

	require.NoError(t, store.SavePayment(first))
	require.NoError(t, store.SavePayment(second))

	got, err := store.GetPayment(second.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, second.IdempotencyKey, got.IdempotencyKey)
}

func TestSavePayment_DuplicateIdempotencyKeyRejected(t *testing.T) {
	store := setupTestStore(t)

	first := pendingPayment("order-1")
	require.NoError(t, store.SavePayment(first))

	duplicate := pendingPayment("order-1")
	duplicate.IdempotencyKey = first.IdempotencyKey

	assert.Error(t, store.SavePayment(duplicate))
}

func TestUpdatePayment_RecordsOutcome(t *testing.T) {
	store := setupTestStore(t)

	payment := pendingPayment("order-1")
	require.NoError(t, store.SavePayment(payment))

	payment.Status = models.StatusSuccess
	payment.TransactionID = "sq-txn-123"
	require.NoError(t, store.UpdatePayment(payment))

	got, err := store.GetPayment(payment.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, "sq-txn-123", got.TransactionID)
	// The key assigned at insert time survives the outcome update.
	assert.Equal(t, payment.IdempotencyKey, got.IdempotencyKey)
}

func TestGetPaymentByOrderID_ReturnsMostRecent(t *testing.T) {
	store := setupTestStore(t)

	older := pendingPayment("order-77")
	older.CreatedDate = time.Now().Add(-time.Minute)
	newer := pendingPayment("order-77")

	require.NoError(t, store.SavePayment(older))
	require.NoError(t, store.SavePayment(newer))

	got, err := store.GetPaymentByOrderID("order-77")
	require.NoError(t, err)
	assert.Equal(t, newer.PaymentID, got.PaymentID)
}
