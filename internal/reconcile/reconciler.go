package reconcile

import (
	"context"
	"fmt"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

// OrderService is the storefront's order port.
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID, transactionID string) error
	AddNote(ctx context.Context, orderID, note string, visible bool) error
}

// Outcome tells the caller what to show the shopper.
type Outcome struct {
	Result        string `json:"result"` // "success" or "failure"
	Redirect      string `json:"redirect,omitempty"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Reconciler applies a charge result to the order record and decides the
// user-facing outcome.
type Reconciler struct {
	orders          OrderService
	redirectBaseURL string
	log             *logger.Logger
}

func NewReconciler(orders OrderService, redirectBaseURL string, log *logger.Logger) *Reconciler {
	return &Reconciler{orders: orders, redirectBaseURL: redirectBaseURL, log: log}
}

// ApplySuccess marks the order paid, appends a history note naming the
// transaction and the path the token took, and returns a redirect to the
// order confirmation view.
func (r *Reconciler) ApplySuccess(ctx context.Context, orderID, transactionID, path string) (Outcome, error) {
	if err := r.orders.MarkPaid(ctx, orderID, transactionID); err != nil {
		return Outcome{}, fmt.Errorf("charge succeeded but order update failed: %w", err)
	}

	note := fmt.Sprintf("Square payment processed. Transaction ID: %s", transactionID)
	if path == models.PathSideChannel {
		note = fmt.Sprintf("Square payment processed via express checkout. Transaction ID: %s", transactionID)
	}
	if err := r.orders.AddNote(ctx, orderID, note, false); err != nil {
		// The payment is applied; a missing note is not worth failing the
		// shopper's checkout over.
		r.log.Warn("RECONCILE", fmt.Sprintf("failed to record note on order %s: %v", orderID, err))
	}

	r.log.LogCharge("RECONCILED", orderID, "transaction "+transactionID)
	return Outcome{
		Result:        ResultSuccess,
		Redirect:      fmt.Sprintf("%s/checkout/order-received/%s", r.redirectBaseURL, orderID),
		TransactionID: transactionID,
	}, nil
}

// ApplyFailure records a shopper-visible notice with the failure reason and
// leaves the order untouched so the shopper can retry.
func (r *Reconciler) ApplyFailure(ctx context.Context, orderID, reason string) Outcome {
	message := "Payment error: " + reason
	if err := r.orders.AddNote(ctx, orderID, message, true); err != nil {
		r.log.Warn("RECONCILE", fmt.Sprintf("failed to record failure note on order %s: %v", orderID, err))
	}

	r.log.LogCharge("FAILED", orderID, reason)
	return Outcome{
		Result:  ResultFailure,
		Message: message,
	}
}
