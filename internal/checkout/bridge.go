package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/websdk"
)

// Form is the storefront checkout form the bridge integrates with.
type Form interface {
	SelectedPaymentMethod() string
	TokenFieldValue() string
	SetTokenFieldValue(token string)
	SetPlaceOrderEnabled(enabled bool)
	// Submit triggers the native form submission.
	Submit()
	ShowError(msg string)
}

// Signal fires when the card container appears in the document. The cancel
// function disposes the subscription; the bridge calls it once
// initialization has succeeded.
type Signal interface {
	Subscribe(ctx context.Context) (<-chan struct{}, func())
}

// TokenSourceClient is the slice of websdk.Client the bridge needs.
type TokenSourceClient interface {
	InitializeCardField(ctx context.Context, containerID string) (websdk.CardHandle, error)
	InitializeExpressButton(ctx context.Context, spec websdk.PaymentRequestSpec, containerID string) (websdk.ButtonHandle, bool, error)
	Tokenize(ctx context.Context, src websdk.TokenSource) (string, error)
	ResetToAttached()
}

// SubmitAction is the bridge's decision for one submit event.
type SubmitAction int

const (
	// SubmitAllow lets the native submission proceed unmodified.
	SubmitAllow SubmitAction = iota
	// SubmitResubmitted means the bridge tokenized, wrote the token and
	// re-triggered the form itself.
	SubmitResubmitted
	// SubmitBlocked means tokenization failed; the form was not submitted
	// and the place-order control was re-enabled.
	SubmitBlocked
)

// Bridge wires the token source client into the storefront's native
// checkout submission flow without double-submitting.
type Bridge struct {
	client             TokenSourceClient
	form               Form
	signal             Signal
	cardContainerID    string
	expressContainerID string
	expressSpec        websdk.PaymentRequestSpec
	enableExpress      bool
	log                *logger.Logger

	mu          sync.Mutex
	initialized bool
	card        websdk.CardHandle
}

type BridgeOptions struct {
	CardContainerID    string
	ExpressContainerID string
	ExpressSpec        websdk.PaymentRequestSpec
	EnableExpress      bool
}

func NewBridge(client TokenSourceClient, form Form, signal Signal, opts BridgeOptions, log *logger.Logger) *Bridge {
	if opts.CardContainerID == "" {
		opts.CardContainerID = "card-container"
	}
	if opts.ExpressContainerID == "" {
		opts.ExpressContainerID = "payment-request-button"
	}
	return &Bridge{
		client:             client,
		form:               form,
		signal:             signal,
		cardContainerID:    opts.CardContainerID,
		expressContainerID: opts.ExpressContainerID,
		expressSpec:        opts.ExpressSpec,
		enableExpress:      opts.EnableExpress,
		log:                log,
	}
}

// Start tries to initialize immediately and also subscribes for late
// insertion of the card container. The subscription is disposed once
// initialization succeeds or the context ends.
func (b *Bridge) Start(ctx context.Context) {
	if b.tryInitialize(ctx) {
		return
	}

	events, cancel := b.signal.Subscribe(ctx)
	go func() {
		defer cancel()
		for {
			select {
			case _, open := <-events:
				if !open {
					return
				}
				if b.tryInitialize(ctx) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// tryInitialize runs initialization at most once even when the immediate
// check and the insertion signal fire concurrently.
func (b *Bridge) tryInitialize(ctx context.Context) bool {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()

	card, err := b.client.InitializeCardField(ctx, b.cardContainerID)
	if err != nil {
		var cfgErr *websdk.ConfigurationError
		if errors.As(err, &cfgErr) {
			// Settings will not appear mid-session; stop trying.
			b.log.Warn("CHECKOUT", "card field initialization skipped: "+err.Error())
			return true
		}
		b.log.Error("CHECKOUT", fmt.Sprintf("card field initialization failed: %v", err))
		return false
	}

	b.mu.Lock()
	b.initialized = true
	b.card = card
	b.mu.Unlock()

	if b.enableExpress {
		b.attachExpress(ctx)
	}
	return true
}

// attachExpress wires the wallet button's own tokenize-and-submit path. The
// express path and the card path may both populate the shared hidden field;
// whichever writes first wins, because HandleSubmit short-circuits on a
// populated field. That race is deliberate.
func (b *Bridge) attachExpress(ctx context.Context) {
	button, ok, err := b.client.InitializeExpressButton(ctx, b.expressSpec, b.expressContainerID)
	if err != nil {
		b.log.Warn("CHECKOUT", fmt.Sprintf("express button unavailable: %v", err))
		return
	}
	if !ok {
		return
	}

	go func() {
		token, err := b.client.Tokenize(ctx, button)
		if err != nil {
			var tokErr *websdk.TokenizationError
			if errors.As(err, &tokErr) {
				b.form.ShowError(tokErr.Message())
			} else {
				b.form.ShowError("Payment failed: " + err.Error())
			}
			return
		}
		b.form.SetTokenFieldValue(token)
		b.form.Submit()
	}()
}

// HandleSubmit intercepts one submit event of the checkout form.
func (b *Bridge) HandleSubmit(ctx context.Context) SubmitAction {
	if b.form.SelectedPaymentMethod() != config.GatewayID {
		return SubmitAllow
	}

	// Token already present (express path or a previous tokenization):
	// let the native submit through. This short-circuit is the mutual
	// exclusion between the two token paths.
	if b.form.TokenFieldValue() != "" {
		return SubmitAllow
	}

	b.mu.Lock()
	card := b.card
	b.mu.Unlock()
	if card == nil {
		b.form.ShowError("Payment form not initialized.")
		return SubmitBlocked
	}

	b.form.SetPlaceOrderEnabled(false)

	token, err := b.client.Tokenize(ctx, card)
	if err != nil {
		var tokErr *websdk.TokenizationError
		if errors.As(err, &tokErr) {
			b.form.ShowError(tokErr.Message())
		} else {
			b.form.ShowError("Payment failed: " + err.Error())
		}
		b.form.SetPlaceOrderEnabled(true)
		b.client.ResetToAttached()
		return SubmitBlocked
	}

	b.form.SetTokenFieldValue(token)
	b.form.Submit()
	b.client.ResetToAttached()
	return SubmitResubmitted
}
