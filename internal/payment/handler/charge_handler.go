package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"ms-payment-gateway/internal/auth"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
	"ms-payment-gateway/internal/payment/storage"
	"ms-payment-gateway/internal/reconcile"
	"ms-payment-gateway/internal/square"
)

// OrderService is the order lookup slice the charge flow needs. Amounts
// always come from the stored order, never from the request.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type Reconciler interface {
	ApplySuccess(ctx context.Context, orderID, transactionID, path string) (reconcile.Outcome, error)
	ApplyFailure(ctx context.Context, orderID, reason string) reconcile.Outcome
}

// TokenGuard enforces single use of payment tokens across charge paths.
type TokenGuard interface {
	Consume(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

type SquareService interface {
	CreatePayment(ctx context.Context, req square.ChargeRequest) (square.ChargeResult, error)
}

type EventProducer interface {
	PublishPaymentSucceeded(ctx context.Context, payment *models.Payment) error
	PublishPaymentFailed(ctx context.Context, payment *models.Payment) error
}

// ChargeRequest is the body of the charge endpoint. Path is optional and
// defaults to the direct form-submit path.
type ChargeRequest struct {
	Token   string `json:"token" validate:"required"`
	OrderID string `json:"order_id" validate:"required"`
	Path    string `json:"path" validate:"omitempty,oneof=direct side_channel"`
}

type ChargeHandler struct {
	squareService SquareService
	paymentStore  storage.Store
	producer      EventProducer
	orderService  OrderService
	reconciler    Reconciler
	guard         TokenGuard
	validate      *validator.Validate
	logger        *logger.Logger
}

func NewChargeHandler(squareService SquareService, paymentStore storage.Store, producer EventProducer, orderService OrderService, reconciler Reconciler, guard TokenGuard, log *logger.Logger) *ChargeHandler {
	return &ChargeHandler{
		squareService: squareService,
		paymentStore:  paymentStore,
		producer:      producer,
		orderService:  orderService,
		reconciler:    reconciler,
		guard:         guard,
		validate:      validator.New(),
		logger:        log,
	}
}

// sessionUserID identifies the caller for ownership checks. The bearer
// token's subject wins; requests already verified by the middleware fall
// back to the identity it stored on the context.
func sessionUserID(r *http.Request) string {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return auth.UserID(r.Context())
	}
	sub, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return auth.UserID(r.Context())
	}
	return sub
}

// ProcessCharge handles one charge attempt coming from the checkout form.
func (h *ChargeHandler) ProcessCharge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request payload", err.Error(), http.StatusBadRequest)
		return
	}

	status, body := h.charge(r.Context(), sessionUserID(r), req)
	h.writeJSON(w, status, body)
}

// ProcessSideChannelCharge handles tokens posted by the express button
// independently of the form submit.
func (h *ChargeHandler) ProcessSideChannelCharge(w http.ResponseWriter, r *http.Request) {
	var req models.SideChannelChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, "Invalid request payload", err.Error(), http.StatusBadRequest)
		return
	}

	status, body := h.charge(r.Context(), sessionUserID(r), ChargeRequest{
		Token:   req.Token,
		OrderID: req.OrderID,
		Path:    models.PathSideChannel,
	})
	h.writeJSON(w, status, body)
}

// ProcessChargeGin is the gin-compatible version of ProcessCharge.
func (h *ChargeHandler) ProcessChargeGin(c *gin.Context) {
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid request payload", err.Error()))
		return
	}

	status, body := h.charge(c.Request.Context(), sessionUserID(c.Request), req)
	c.JSON(status, body)
}

func (h *ChargeHandler) charge(ctx context.Context, userID string, req ChargeRequest) (int, map[string]interface{}) {
	if req.Path == "" {
		req.Path = models.PathDirect
	}
	if err := h.validate.Struct(req); err != nil {
		return http.StatusBadRequest, errorBody("Invalid request payload", err.Error())
	}

	order, err := h.orderService.GetOrder(ctx, req.OrderID)
	if err != nil {
		h.logger.Warn("PAYMENT", fmt.Sprintf("charge rejected, order %s not found: %v", req.OrderID, err))
		return http.StatusNotFound, errorBody("Order not found", "No order record found for this order_id")
	}

	if userID != "" && order.UserID != "" && order.UserID != userID {
		h.logger.LogSecurity("OWNERSHIP", fmt.Sprintf("user %s attempted to pay order %s owned by %s", userID, order.OrderID, order.UserID))
		return http.StatusForbidden, errorBody("Order access denied", "This order belongs to a different customer.")
	}

	if order.Status == models.OrderStatusPaid {
		h.logger.LogCharge("SKIP", order.OrderID, "order is already paid")
		return http.StatusConflict, errorBody("Order already paid", "This order has already been paid.")
	}

	// Token single-use check happens before any money movement. A reused
	// token means a duplicate submission or a replay.
	fresh, err := h.guard.Consume(ctx, req.Token)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("token guard unavailable: %v", err))
		return http.StatusInternalServerError, errorBody("Payment processing failed", "Payment could not be processed. Please try again.")
	}
	if !fresh {
		return http.StatusConflict, errorBody("Duplicate payment submission", "This payment was already submitted.")
	}

	// The idempotency key is assigned and persisted before the request
	// leaves the process, so the pending row already carries the key the
	// processor will see.
	payment := &models.Payment{
		PaymentID:        uuid.NewString(),
		OrderID:          order.OrderID,
		Status:           models.StatusPending,
		AmountMinorUnits: square.MinorUnits(order.Total, order.Currency),
		Currency:         order.Currency,
		Path:             req.Path,
		IdempotencyKey:   uuid.NewString(),
		CreatedDate:      time.Now(),
	}
	if err := h.paymentStore.SavePayment(payment); err != nil {
		// Nothing was charged; hand the token back for a retry.
		if releaseErr := h.guard.Release(ctx, req.Token); releaseErr != nil {
			h.logger.Error("PAYMENT", fmt.Sprintf("failed to release token after save error: %v", releaseErr))
		}
		return http.StatusInternalServerError, errorBody("Payment processing failed", "Payment could not be processed. Please try again.")
	}

	result, err := h.squareService.CreatePayment(ctx, square.ChargeRequest{
		Token:            req.Token,
		AmountMinorUnits: payment.AmountMinorUnits,
		Currency:         payment.Currency,
		IdempotencyKey:   payment.IdempotencyKey,
		Note:             "Order " + order.OrderNumber,
	})
	if err != nil {
		return h.handleChargeError(ctx, req, payment, err)
	}

	payment.Status = models.StatusSuccess
	payment.TransactionID = result.TransactionID
	if err := h.paymentStore.UpdatePayment(payment); err != nil {
		// The charge went through; the record is fixed up by reconciliation
		// tooling later.
		h.logger.Error("PAYMENT", fmt.Sprintf("failed to update payment record %s: %v", payment.PaymentID, err))
	}

	outcome, err := h.reconciler.ApplySuccess(ctx, order.OrderID, result.TransactionID, req.Path)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("charge %s succeeded but reconciliation failed: %v", result.TransactionID, err))
		return http.StatusInternalServerError, errorBody("Order update failed",
			"Payment was taken but the order could not be updated. Please contact support.")
	}

	if err := h.producer.PublishPaymentSucceeded(ctx, payment); err != nil {
		h.logger.Error("KAFKA", fmt.Sprintf("failed to publish success event: %v", err))
	}

	h.logger.LogCharge("SUCCESS", order.OrderID, fmt.Sprintf("transaction %s via %s path", result.TransactionID, req.Path))
	return http.StatusOK, successBody("Payment processed", outcome)
}

func (h *ChargeHandler) handleChargeError(ctx context.Context, req ChargeRequest, payment *models.Payment, err error) (int, map[string]interface{}) {
	var cfgErr *square.ConfigurationError
	if errors.As(err, &cfgErr) {
		// The request never left the process; the token is still usable.
		if releaseErr := h.guard.Release(ctx, req.Token); releaseErr != nil {
			h.logger.Error("PAYMENT", fmt.Sprintf("failed to release token after config error: %v", releaseErr))
		}
		h.failPayment(ctx, payment, "CONFIGURATION", cfgErr.Error())
		return http.StatusInternalServerError, errorBody("Gateway not configured",
			"Payment setup is not configured. Please contact support.")
	}

	var netErr *square.NetworkError
	if errors.As(err, &netErr) {
		h.logger.Error("SQUARE", fmt.Sprintf("charge request failed in transit: %v", netErr))
		h.failPayment(ctx, payment, "NETWORK", netErr.Error())
		outcome := h.reconciler.ApplyFailure(ctx, payment.OrderID, "Could not reach the payment processor.")
		return http.StatusBadGateway, failureBody(outcome)
	}

	var procErr *square.ProcessorError
	if errors.As(err, &procErr) {
		h.logger.LogCharge("DECLINED", payment.OrderID, fmt.Sprintf("%s (HTTP %d)", procErr.Message, procErr.StatusCode))
		payment.ErrorCode = procErr.Code
		h.failPayment(ctx, payment, procErr.Code, procErr.Message)
		outcome := h.reconciler.ApplyFailure(ctx, payment.OrderID, procErr.Message)
		return http.StatusPaymentRequired, failureBody(outcome)
	}

	h.logger.Error("SQUARE", fmt.Sprintf("unexpected charge error: %v", err))
	h.failPayment(ctx, payment, "UNKNOWN", err.Error())
	outcome := h.reconciler.ApplyFailure(ctx, payment.OrderID, "Payment could not be processed.")
	return http.StatusInternalServerError, failureBody(outcome)
}

// failPayment records the failure on the payment row and emits the failure
// event. Best effort on both; the caller already has the user-facing answer.
func (h *ChargeHandler) failPayment(ctx context.Context, payment *models.Payment, code, message string) {
	payment.Status = models.StatusFailed
	if payment.ErrorCode == "" {
		payment.ErrorCode = code
	}
	payment.ErrorMessage = message
	if err := h.paymentStore.UpdatePayment(payment); err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("failed to record payment failure %s: %v", payment.PaymentID, err))
	}
	if err := h.producer.PublishPaymentFailed(ctx, payment); err != nil {
		h.logger.Error("KAFKA", fmt.Sprintf("failed to publish failure event: %v", err))
	}
}

// Helper methods for consistent response formatting
func (h *ChargeHandler) writeJSON(w http.ResponseWriter, statusCode int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func (h *ChargeHandler) writeErrorResponse(w http.ResponseWriter, message, details string, statusCode int) {
	h.writeJSON(w, statusCode, errorBody(message, details))
}

func errorBody(message, details string) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"message": message,
		"details": details,
	}
}

func successBody(message string, data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status":  "success",
		"message": message,
		"data":    data,
	}
}

func failureBody(outcome reconcile.Outcome) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"message": "Payment failed",
		"data":    outcome,
	}
}
