package checkout_api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-gateway/internal/checkout"
	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
	"ms-payment-gateway/internal/sse"
	"ms-payment-gateway/internal/websdk"
)

func newTestHandler() *Handler {
	emitter := sse.NewCommandEmitter()
	dispatcher := sse.NewDispatcher(emitter, logger.NewTestLogger())
	settings := config.SquareConfig{
		ApplicationID: "sq0idp-app",
		LocationID:    "LOC-1",
		AccessToken:   "EAAA-secret-token",
		Environment:   "sandbox",
		EnableExpress: true,
	}.ClientSettings()
	return NewHandler(logger.NewTestLogger(), emitter, dispatcher, settings, nil)
}

func TestGetConfig_NeverExposesAccessToken(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/config", nil)
	rec := httptest.NewRecorder()
	h.GetConfig(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "EAAA-secret-token")

	var settings map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "sq0idp-app", settings["applicationId"])
	assert.Equal(t, "LOC-1", settings["locationId"])
	assert.Equal(t, "sandbox", settings["environment"])
	assert.Equal(t, config.GatewayID, settings["gatewayId"])
}

func TestHandleBridgeEvents_ResolvesPendingCommand(t *testing.T) {
	h := newTestHandler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands := h.Emitter.Subscribe(ctx, "session-1")

	resultChan := make(chan models.BridgeResult, 1)
	go func() {
		result, err := h.Dispatcher.Send(ctx, "session-1", models.CmdSDKPresent, nil)
		if err == nil {
			resultChan <- result
		}
	}()

	var cmd models.BridgeCommand
	select {
	case cmd = <-commands:
	case <-time.After(time.Second):
		t.Fatal("command never emitted")
	}

	body, err := json.Marshal(models.BridgeEvent{
		Type:      models.EventResult,
		SessionID: "session-1",
		Result: &models.BridgeResult{
			CommandID: cmd.CommandID,
			OK:        true,
			Payload:   json.RawMessage(`{"present":true}`),
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleBridgeEvents(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case result := <-resultChan:
		assert.True(t, result.OK)
	case <-time.After(time.Second):
		t.Fatal("pending command was not resolved")
	}
}

func TestHandleBridgeEvents_RejectsUnknownType(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/events",
		bytes.NewReader([]byte(`{"type":"bogus","session_id":"session-1"}`)))
	rec := httptest.NewRecorder()
	h.HandleBridgeEvents(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubForm struct {
	method string
	token  string
}

func (f *stubForm) SelectedPaymentMethod() string    { return f.method }
func (f *stubForm) TokenFieldValue() string          { return f.token }
func (f *stubForm) SetTokenFieldValue(token string)  { f.token = token }
func (f *stubForm) SetPlaceOrderEnabled(enabled bool) {}
func (f *stubForm) Submit()                           {}
func (f *stubForm) ShowError(msg string)              {}

type stubClient struct{}

func (c *stubClient) InitializeCardField(ctx context.Context, containerID string) (websdk.CardHandle, error) {
	return nil, &websdk.SDKUnavailableError{Reason: "no session"}
}

func (c *stubClient) InitializeExpressButton(ctx context.Context, spec websdk.PaymentRequestSpec, containerID string) (websdk.ButtonHandle, bool, error) {
	return nil, false, nil
}

func (c *stubClient) Tokenize(ctx context.Context, src websdk.TokenSource) (string, error) {
	return "", &websdk.SDKUnavailableError{Reason: "no session"}
}

func (c *stubClient) ResetToAttached() {}

func submitVia(t *testing.T, h *Handler, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Post("/api/v1/checkout/submit/{sessionID}", h.HandleSubmit)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit/"+sessionID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleSubmit_UnknownSessionRejected(t *testing.T) {
	h := newTestHandler()

	rec := submitVia(t, h, "session-unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSubmit_OtherGatewayAllowed(t *testing.T) {
	h := newTestHandler()

	form := &stubForm{method: "cod"}
	bridge := checkout.NewBridge(&stubClient{}, form, nil, checkout.BridgeOptions{}, logger.NewTestLogger())
	h.RegisterBridge("session-1", bridge)

	rec := submitVia(t, h, "session-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "allow", body["action"])
}

func TestHandleSubmit_TokenPresentAllowed(t *testing.T) {
	h := newTestHandler()

	form := &stubForm{method: config.GatewayID, token: "cnon:tok-1"}
	bridge := checkout.NewBridge(&stubClient{}, form, nil, checkout.BridgeOptions{}, logger.NewTestLogger())
	h.RegisterBridge("session-1", bridge)

	rec := submitVia(t, h, "session-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "allow", body["action"])
}

func TestHandleSubmit_UninitializedBlocked(t *testing.T) {
	h := newTestHandler()

	form := &stubForm{method: config.GatewayID}
	bridge := checkout.NewBridge(&stubClient{}, form, nil, checkout.BridgeOptions{}, logger.NewTestLogger())
	h.RegisterBridge("session-1", bridge)

	rec := submitVia(t, h, "session-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "blocked", body["action"])
}
