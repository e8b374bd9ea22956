package square

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
)

const (
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	productionBaseURL = "https://connect.squareup.com"
)

// ChargeRequest is one charge attempt. The caller assigns the idempotency
// key, fresh for every attempt, so it can persist the key before the
// request leaves the process.
type ChargeRequest struct {
	Token            string `validate:"required"`
	AmountMinorUnits int64  `validate:"gte=0"`
	Currency         string `validate:"required,len=3"`
	IdempotencyKey   string
	Note             string
}

// ChargeResult is the interpreted outcome of a payment-creation call.
type ChargeResult struct {
	TransactionID  string
	IdempotencyKey string
}

// ProbeResult is the outcome of a connectivity test.
type ProbeResult struct {
	OK         bool
	StatusCode int
	Message    string
}

type createPaymentBody struct {
	SourceID       string      `json:"source_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	AmountMoney    amountMoney `json:"amount_money"`
	LocationID     string      `json:"location_id"`
	Note           string      `json:"note,omitempty"`
}

type amountMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type paymentEnvelope struct {
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

// Client talks to the Square payments API over an authenticated channel.
// Stateless: each call is an independently timeout-bounded outbound
// request; credentials are read-only.
type Client struct {
	cfg      config.SquareConfig
	baseURL  string
	http     *resty.Client
	validate *validator.Validate
	log      *logger.Logger
}

func NewClient(cfg config.SquareConfig, log *logger.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = productionBaseURL
	}
	return &Client{
		cfg:      cfg,
		baseURL:  baseURL,
		http:     resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		validate: validator.New(),
		log:      log,
	}
}

// NewClientWithBaseURL points the client at a non-standard host; used by
// tests against a local stub server.
func NewClientWithBaseURL(cfg config.SquareConfig, baseURL string, log *logger.Logger) *Client {
	c := NewClient(cfg, log)
	c.baseURL = baseURL
	c.http.SetBaseURL(baseURL)
	return c
}

// CreatePayment turns a single-use token into a charge. Each call is its
// own logical attempt: the idempotency key comes from the caller and is
// never reused across attempts; a missing key gets a fresh one. The request
// is bounded by the configured charge timeout; there is no automatic retry.
func (c *Client) CreatePayment(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if c.cfg.AccessToken == "" {
		return ChargeResult{}, &ConfigurationError{Missing: "access token"}
	}
	if c.cfg.LocationID == "" {
		return ChargeResult{}, &ConfigurationError{Missing: "location id"}
	}
	if err := c.validate.Struct(req); err != nil {
		return ChargeResult{}, fmt.Errorf("invalid charge request: %w", err)
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	body := createPaymentBody{
		SourceID:       req.Token,
		IdempotencyKey: idempotencyKey,
		AmountMoney: amountMoney{
			Amount:   req.AmountMinorUnits,
			Currency: strings.ToUpper(req.Currency),
		},
		LocationID: c.cfg.LocationID,
		Note:       req.Note,
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ChargeTimeout)
	defer cancel()

	c.log.LogSquare("CHARGE", fmt.Sprintf("POST /v2/payments amount=%d %s key=%s",
		req.AmountMinorUnits, body.AmountMoney.Currency, idempotencyKey))

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v2/payments")
	if err != nil {
		// No response at all; distinct from a processor rejection.
		c.log.Error("SQUARE", fmt.Sprintf("charge request failed before a response arrived: %v", err))
		return ChargeResult{}, &NetworkError{Op: "charge", Err: err}
	}

	raw := resp.Body()
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		var envelope paymentEnvelope
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Payment.ID != "" {
			c.log.LogSquare("CHARGE", fmt.Sprintf("payment created: %s", envelope.Payment.ID))
			return ChargeResult{TransactionID: envelope.Payment.ID, IdempotencyKey: idempotencyKey}, nil
		}
		// 2xx without a payment id still counts as a failure.
		c.log.Error("SQUARE", fmt.Sprintf("2xx response missing payment id (HTTP %d)", resp.StatusCode()))
		return ChargeResult{IdempotencyKey: idempotencyKey}, &ProcessorError{
			StatusCode: resp.StatusCode(),
			Message:    unknownErrorMessage,
		}
	}

	message := ExtractErrorMessage(raw)
	code := ExtractErrorCode(raw)
	c.log.Error("SQUARE", fmt.Sprintf("charge rejected (HTTP %d, code=%s): %s", resp.StatusCode(), code, message))
	return ChargeResult{IdempotencyKey: idempotencyKey}, &ProcessorError{
		StatusCode: resp.StatusCode(),
		Code:       code,
		Message:    message,
	}
}

// TestConnection verifies that the stored credential can authenticate
// against Square, independent of any purchase flow. Only the bearer
// credential is sent; the message never contains it.
func (c *Client) TestConnection(ctx context.Context) ProbeResult {
	if c.cfg.AccessToken == "" {
		return ProbeResult{OK: false, Message: "Access token not configured in gateway settings."}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.AccessToken).
		Get("/v2/locations")
	if err != nil {
		c.log.Error("SQUARE", fmt.Sprintf("connectivity probe got no response: %v", err))
		return ProbeResult{OK: false, Message: (&NetworkError{Op: "probe", Err: err}).Error()}
	}

	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		c.log.LogSquare("PROBE", fmt.Sprintf("connected (HTTP %d)", resp.StatusCode()))
		return ProbeResult{
			OK:         true,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("Connected (HTTP %d)", resp.StatusCode()),
		}
	}

	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), ExtractErrorMessage(resp.Body()))
	c.log.Error("SQUARE", "connectivity probe failed: "+message)
	return ProbeResult{OK: false, StatusCode: resp.StatusCode(), Message: message}
}
