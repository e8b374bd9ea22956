package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
	"ms-payment-gateway/internal/reconcile"
	"ms-payment-gateway/internal/square"
)

type mockSquare struct {
	chargeErr  error
	lastCharge square.ChargeRequest
	calls      int
}

func (m *mockSquare) CreatePayment(ctx context.Context, req square.ChargeRequest) (square.ChargeResult, error) {
	m.calls++
	m.lastCharge = req
	if m.chargeErr != nil {
		return square.ChargeResult{}, m.chargeErr
	}
	return square.ChargeResult{TransactionID: "sq-txn-1", IdempotencyKey: req.IdempotencyKey}, nil
}

type mockStore struct {
	shouldFailOn string
	saved        []*models.Payment
	updated      *models.Payment
}

func (m *mockStore) SavePayment(p *models.Payment) error {
	if m.shouldFailOn == "SavePayment" {
		return errors.New("mock save error")
	}
	copied := *p
	m.saved = append(m.saved, &copied)
	return nil
}

func (m *mockStore) lastSaved() *models.Payment {
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

func (m *mockStore) UpdatePayment(p *models.Payment) error {
	if m.shouldFailOn == "UpdatePayment" {
		return errors.New("mock update error")
	}
	copied := *p
	m.updated = &copied
	return nil
}

func (m *mockStore) GetPayment(id string) (*models.Payment, error) { return nil, errors.New("not found") }
func (m *mockStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	return nil, errors.New("not found")
}
func (m *mockStore) ListPayments(orderID string, limit, offset int) ([]*models.Payment, error) {
	return nil, nil
}
func (m *mockStore) Close() error       { return nil }
func (m *mockStore) HealthCheck() error { return nil }

type mockProducer struct {
	succeeded []*models.Payment
	failed    []*models.Payment
}

func (m *mockProducer) PublishPaymentSucceeded(ctx context.Context, p *models.Payment) error {
	m.succeeded = append(m.succeeded, p)
	return nil
}

func (m *mockProducer) PublishPaymentFailed(ctx context.Context, p *models.Payment) error {
	m.failed = append(m.failed, p)
	return nil
}

type mockOrders struct {
	order *models.Order
}

func (m *mockOrders) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if m.order == nil || m.order.OrderID != id {
		return nil, fmt.Errorf("order %s not found", id)
	}
	return m.order, nil
}

type mockReconciler struct {
	successPath   string
	failureReason string
	applyErr      error
}

func (m *mockReconciler) ApplySuccess(ctx context.Context, orderID, transactionID, path string) (reconcile.Outcome, error) {
	if m.applyErr != nil {
		return reconcile.Outcome{}, m.applyErr
	}
	m.successPath = path
	return reconcile.Outcome{
		Result:        reconcile.ResultSuccess,
		Redirect:      "http://shop.test/checkout/order-received/" + orderID,
		TransactionID: transactionID,
	}, nil
}

func (m *mockReconciler) ApplyFailure(ctx context.Context, orderID, reason string) reconcile.Outcome {
	m.failureReason = reason
	return reconcile.Outcome{Result: reconcile.ResultFailure, Message: "Payment error: " + reason}
}

type mockGuard struct {
	reused   bool
	guardErr error
	consumed []string
	released []string
}

func (m *mockGuard) Consume(ctx context.Context, token string) (bool, error) {
	if m.guardErr != nil {
		return false, m.guardErr
	}
	m.consumed = append(m.consumed, token)
	return !m.reused, nil
}

func (m *mockGuard) Release(ctx context.Context, token string) error {
	m.released = append(m.released, token)
	return nil
}

type chargeFixture struct {
	handler    *ChargeHandler
	square     *mockSquare
	store      *mockStore
	producer   *mockProducer
	reconciler *mockReconciler
	guard      *mockGuard
}

func newChargeFixture() *chargeFixture {
	sq := &mockSquare{}
	store := &mockStore{}
	producer := &mockProducer{}
	rec := &mockReconciler{}
	guard := &mockGuard{}
	orders := &mockOrders{order: &models.Order{
		OrderID:     "order-1",
		OrderNumber: "1001",
		UserID:      "user123",
		Total:       20.00,
		Currency:    "USD",
		Status:      models.OrderStatusPending,
	}}

	return &chargeFixture{
		handler:    NewChargeHandler(sq, store, producer, orders, rec, guard, logger.NewTestLogger()),
		square:     sq,
		store:      store,
		producer:   producer,
		reconciler: rec,
		guard:      guard,
	}
}

func postCharge(t *testing.T, f *chargeFixture, body any) *httptest.ResponseRecorder {
	return postChargeAs(t, f, body, "")
}

func postChargeAs(t *testing.T, f *chargeFixture, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge", bytes.NewReader(data))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.handler.ProcessCharge(rec, req)
	return rec
}

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

func TestProcessCharge_Success(t *testing.T) {
	f := newChargeFixture()

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "http://shop.test/checkout/order-received/order-1", data["redirect"])
	assert.Equal(t, "sq-txn-1", data["transaction_id"])

	// 20.00 USD charged as 2000 minor units with an order note.
	assert.Equal(t, int64(2000), f.square.lastCharge.AmountMinorUnits)
	assert.Equal(t, "USD", f.square.lastCharge.Currency)
	assert.Equal(t, "Order 1001", f.square.lastCharge.Note)

	// The pending row already carries the key the processor saw.
	require.NotNil(t, f.store.lastSaved())
	assert.NotEmpty(t, f.store.lastSaved().IdempotencyKey)
	assert.Equal(t, f.store.lastSaved().IdempotencyKey, f.square.lastCharge.IdempotencyKey)

	require.NotNil(t, f.store.updated)
	assert.Equal(t, models.StatusSuccess, f.store.updated.Status)
	assert.Equal(t, "sq-txn-1", f.store.updated.TransactionID)
	assert.Equal(t, f.store.lastSaved().IdempotencyKey, f.store.updated.IdempotencyKey)

	assert.Len(t, f.producer.succeeded, 1)
	assert.Equal(t, models.PathDirect, f.reconciler.successPath)
}

func TestProcessCharge_DistinctIdempotencyKeysAcrossAttempts(t *testing.T) {
	f := newChargeFixture()

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = postCharge(t, f, ChargeRequest{Token: "cnon:tok-2", OrderID: "order-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.store.saved, 2)
	first, second := f.store.saved[0], f.store.saved[1]
	assert.NotEmpty(t, first.IdempotencyKey)
	assert.NotEmpty(t, second.IdempotencyKey)
	assert.NotEqual(t, first.IdempotencyKey, second.IdempotencyKey)
}

func TestProcessCharge_ForeignOrderRejected(t *testing.T) {
	f := newChargeFixture()

	rec := postChargeAs(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"}, bearerFor(t, "user999"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.square.calls)
	assert.Empty(t, f.guard.consumed)
}

func TestProcessCharge_OwnerMayPay(t *testing.T) {
	f := newChargeFixture()

	rec := postChargeAs(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"}, bearerFor(t, "user123"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.square.calls)
}

func TestProcessCharge_MissingTokenRejected(t *testing.T) {
	f := newChargeFixture()

	rec := postCharge(t, f, ChargeRequest{OrderID: "order-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.square.calls)
	assert.Empty(t, f.guard.consumed)
}

func TestProcessCharge_UnknownOrderRejected(t *testing.T) {
	f := newChargeFixture()

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "missing"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, f.square.calls)
}

func TestProcessCharge_PaidOrderNotChargedAgain(t *testing.T) {
	f := newChargeFixture()
	f.handler.orderService.(*mockOrders).order.Status = models.OrderStatusPaid

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, f.square.calls)
	assert.Empty(t, f.guard.consumed)
}

func TestProcessCharge_ReusedTokenRejected(t *testing.T) {
	f := newChargeFixture()
	f.guard.reused = true

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, f.square.calls)
}

func TestProcessCharge_ProcessorDecline(t *testing.T) {
	f := newChargeFixture()
	f.square.chargeErr = &square.ProcessorError{
		StatusCode: 402,
		Code:       "CARD_DECLINED",
		Message:    "Card declined.",
	}

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "Card declined.", f.reconciler.failureReason)

	require.NotNil(t, f.store.updated)
	assert.Equal(t, models.StatusFailed, f.store.updated.Status)
	assert.Equal(t, "CARD_DECLINED", f.store.updated.ErrorCode)
	assert.Len(t, f.producer.failed, 1)
	assert.Empty(t, f.guard.released)
}

func TestProcessCharge_NetworkError(t *testing.T) {
	f := newChargeFixture()
	f.square.chargeErr = &square.NetworkError{Op: "create payment", Err: errors.New("connection refused")}

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Could not reach the payment processor.", f.reconciler.failureReason)
	assert.Len(t, f.producer.failed, 1)
}

func TestProcessCharge_ConfigurationErrorReleasesToken(t *testing.T) {
	f := newChargeFixture()
	f.square.chargeErr = &square.ConfigurationError{Missing: "access token"}

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Nothing was sent to the processor, so the token may be retried.
	assert.Equal(t, []string{"cnon:tok-1"}, f.guard.released)
}

func TestProcessCharge_SaveFailureReleasesToken(t *testing.T) {
	f := newChargeFixture()
	f.store.shouldFailOn = "SavePayment"

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"cnon:tok-1"}, f.guard.released)
	assert.Zero(t, f.square.calls)
}

func TestProcessCharge_ReconciliationFailureSurfaced(t *testing.T) {
	f := newChargeFixture()
	f.reconciler.applyErr = errors.New("mock db down")

	rec := postCharge(t, f, ChargeRequest{Token: "cnon:tok-1", OrderID: "order-1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["details"], "contact support")
}

func TestProcessSideChannelCharge_UsesSideChannelPath(t *testing.T) {
	f := newChargeFixture()

	data, err := json.Marshal(models.SideChannelChargeRequest{Token: "cnon:tok-9", OrderID: "order-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/charge/side-channel", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	f.handler.ProcessSideChannelCharge(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PathSideChannel, f.reconciler.successPath)
	require.NotNil(t, f.store.lastSaved())
	assert.Equal(t, models.PathSideChannel, f.store.lastSaved().Path)
}
