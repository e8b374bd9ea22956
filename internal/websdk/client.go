package websdk

import (
	"context"
	"fmt"
	"sync"

	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
)

// Shopper-visible status messages rendered into the card container.
const (
	msgNotConfigured   = "Payment setup is not configured. Please contact support."
	msgLoadFailed      = "Could not load payment library. Please try again later."
	msgSDKIncompatible = "Payment library loaded but is incompatible. Please contact support."
	msgInitFailed      = "Payment initialization error. Please try again later."
	msgCardReady       = "Card payment ready"
)

// Client drives the hosted SDK lifecycle for a single checkout session.
// It is session-scoped: two embedded checkout instances get two Clients
// and never share state.
type Client struct {
	runtime  Runtime
	settings config.ClientSettings
	env      Environment
	log      *logger.Logger

	loader scriptLoader

	mu          sync.Mutex
	state       State
	initialized bool
	payments    PaymentsAPI
	card        CardHandle
}

func NewClient(runtime Runtime, settings config.ClientSettings, log *logger.Logger) *Client {
	return &Client{
		runtime:  runtime,
		settings: settings,
		env:      ParseEnvironment(settings.Environment),
		log:      log,
		state:    Uninitialized,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// EnsureSDKLoaded brings the hosted SDK into the runtime's global scope.
// Idempotent: concurrent callers share one in-flight load and the script is
// never injected twice.
func (c *Client) EnsureSDKLoaded(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Uninitialized {
		c.state = SDKLoading
	}
	c.mu.Unlock()

	url := c.env.ScriptURL()
	if err := c.loader.ensure(ctx, c.runtime, url); err != nil {
		c.log.Error("WEBSDK", fmt.Sprintf("SDK load failed from %s: %v", url, err))
		c.setState(Uninitialized)
		return err
	}

	c.mu.Lock()
	if c.state == SDKLoading {
		c.state = SDKReady
	}
	c.mu.Unlock()
	return nil
}

// InitializeCardField loads the SDK if needed, creates a card field and
// attaches it to the named container. Attempted once per client lifetime:
// after a successful attach, later calls return the existing handle.
//
// On failure a status message is rendered into the container so the shopper
// sees why the card form is absent; the error is still returned.
func (c *Client) InitializeCardField(ctx context.Context, containerID string) (CardHandle, error) {
	c.mu.Lock()
	if c.initialized {
		card := c.card
		c.mu.Unlock()
		return card, nil
	}
	c.mu.Unlock()

	if c.settings.ApplicationID == "" {
		c.log.Warn("WEBSDK", "application id missing, refusing to initialize card field")
		c.showMessage(containerID, msgNotConfigured, true)
		return nil, &ConfigurationError{Missing: "applicationId"}
	}

	if err := c.EnsureSDKLoaded(ctx); err != nil {
		c.showMessage(containerID, msgLoadFailed, true)
		return nil, err
	}

	payments, err := c.runtime.PaymentsCapability(c.settings.ApplicationID, c.settings.LocationID)
	if err != nil || payments == nil {
		c.log.Error("WEBSDK", fmt.Sprintf("payments capability unavailable: %v", err))
		c.showMessage(containerID, msgSDKIncompatible, true)
		return nil, &SDKUnavailableError{Reason: "payments entry point not exposed by loaded SDK"}
	}

	card, err := payments.Card(ctx)
	if err != nil {
		c.log.Error("WEBSDK", fmt.Sprintf("card field creation failed: %v", err))
		c.showMessage(containerID, msgInitFailed, true)
		return nil, fmt.Errorf("failed to create card field: %w", err)
	}

	if err := card.Attach(ctx, containerID); err != nil {
		c.log.Error("WEBSDK", fmt.Sprintf("card field attach to #%s failed: %v", containerID, err))
		c.showMessage(containerID, msgInitFailed, true)
		return nil, fmt.Errorf("failed to attach card field: %w", err)
	}

	c.showMessage(containerID, msgCardReady, false)

	c.mu.Lock()
	c.payments = payments
	c.card = card
	c.state = FieldAttached
	c.initialized = true
	c.mu.Unlock()

	c.log.Info("WEBSDK", fmt.Sprintf("card field attached to #%s", containerID))
	return card, nil
}

// InitializeExpressButton attaches the wallet button when an express method
// is available. Unavailability is not an error: the container is hidden and
// ok is false. The returned handle runs its own tokenize path, independent
// of the card field.
func (c *Client) InitializeExpressButton(ctx context.Context, spec PaymentRequestSpec, containerID string) (handle ButtonHandle, ok bool, err error) {
	if c.settings.ApplicationID == "" {
		return nil, false, &ConfigurationError{Missing: "applicationId"}
	}

	if err := c.EnsureSDKLoaded(ctx); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	payments := c.payments
	c.mu.Unlock()
	if payments == nil {
		payments, err = c.runtime.PaymentsCapability(c.settings.ApplicationID, c.settings.LocationID)
		if err != nil || payments == nil {
			return nil, false, &SDKUnavailableError{Reason: "payments entry point not exposed by loaded SDK"}
		}
		c.mu.Lock()
		c.payments = payments
		c.mu.Unlock()
	}

	button, err := payments.PaymentRequestButton(ctx, spec)
	if err != nil {
		c.log.Warn("WEBSDK", fmt.Sprintf("payment request button creation failed: %v", err))
		return nil, false, fmt.Errorf("failed to create payment request button: %w", err)
	}

	canUse, err := button.CanCreatePaymentRequest(ctx)
	if err != nil {
		c.log.Warn("WEBSDK", fmt.Sprintf("express availability check failed: %v", err))
		return nil, false, fmt.Errorf("failed to check express availability: %w", err)
	}
	if !canUse {
		if container, found := c.runtime.Container(containerID); found {
			container.Hide()
		}
		c.log.Info("WEBSDK", "express payments unavailable on this device, hiding button container")
		return nil, false, nil
	}

	if err := button.Attach(ctx, containerID); err != nil {
		return nil, false, fmt.Errorf("failed to attach payment request button: %w", err)
	}

	c.log.Info("WEBSDK", fmt.Sprintf("express button attached to #%s", containerID))
	return button, true, nil
}

// Tokenize requests a single-use payment token from the given handle. Every
// call yields a fresh token; tokens are never reused across attempts.
func (c *Client) Tokenize(ctx context.Context, src TokenSource) (string, error) {
	c.setState(Tokenizing)

	result, err := src.Tokenize(ctx)
	if err != nil {
		c.setState(TokenizationFailed)
		return "", &TokenizationError{Status: TokenizeStatusError, Details: []string{err.Error()}}
	}

	if result.Status == TokenizeStatusOK && result.Token != "" {
		c.setState(Tokenized)
		return result.Token, nil
	}

	details := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		details = append(details, e.Message)
	}
	c.setState(TokenizationFailed)
	return "", &TokenizationError{Status: result.Status, Details: details}
}

// ResetToAttached returns the state machine to FieldAttached so tokenization
// can be retried.
func (c *Client) ResetToAttached() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Tokenized || c.state == TokenizationFailed {
		c.state = FieldAttached
	}
}

func (c *Client) showMessage(containerID, msg string, isError bool) {
	if container, found := c.runtime.Container(containerID); found {
		container.ShowMessage(msg, isError)
	}
}
