package checkout_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"ms-payment-gateway/internal/checkout"
	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
	"ms-payment-gateway/internal/sse"
)

// BridgeFactory builds the server-side bridge for a newly connected checkout
// session. The context ends when the session's stream disconnects.
type BridgeFactory func(ctx context.Context, sessionID string) *checkout.Bridge

// Handler exposes the storefront checkout surface: client settings, the
// per-session command stream, the browser event postback, and the submit
// intercept.
type Handler struct {
	Logger     *logger.Logger
	Emitter    *sse.CommandEmitter
	Dispatcher *sse.Dispatcher
	Settings   config.ClientSettings

	newBridge BridgeFactory

	mu      sync.Mutex
	bridges map[string]*checkout.Bridge
}

func NewHandler(log *logger.Logger, emitter *sse.CommandEmitter, dispatcher *sse.Dispatcher, settings config.ClientSettings, factory BridgeFactory) *Handler {
	return &Handler{
		Logger:     log,
		Emitter:    emitter,
		Dispatcher: dispatcher,
		Settings:   settings,
		newBridge:  factory,
		bridges:    make(map[string]*checkout.Bridge),
	}
}

// GetConfig returns the client-safe gateway settings. The access token never
// appears here; only the identifiers the hosted SDK needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Settings)
}

// HandleCommandStream streams bridge commands to one checkout session over SSE.
func (h *Handler) HandleCommandStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	h.setupSSEHeaders(w)

	// Context cancels when the client disconnects
	ctx := r.Context()

	commandChan := h.Emitter.Subscribe(ctx, sessionID)

	// Send initial connection established message
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"sessionID\":\"%s\"}\n\n", sessionID)
	w.(http.Flusher).Flush()

	h.Logger.LogCheckout(sessionID, "client connected to command stream")

	// Initialization talks back over this very stream, so it must not run
	// before the write loop below is draining commands.
	go h.startBridge(ctx, sessionID)
	defer h.dropBridge(sessionID)

	for {
		select {
		case cmd, ok := <-commandChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for session: %s", sessionID))
				return
			}

			jsonData, err := json.Marshal(cmd)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize bridge command: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: command\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.LogCheckout(sessionID, "client disconnected from command stream")
			return
		}
	}
}

// HandleBridgeEvents receives command results and signals posted back by the
// browser side of the bridge.
func (h *Handler) HandleBridgeEvents(w http.ResponseWriter, r *http.Request) {
	var event models.BridgeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	if err := h.Dispatcher.HandleEvent(event); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleSubmit intercepts a checkout form submission for one session and
// reports the bridge's decision.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	h.mu.Lock()
	bridge, ok := h.bridges[sessionID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "no active checkout session", http.StatusNotFound)
		return
	}

	action := bridge.HandleSubmit(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"action": actionName(action)})
}

// RegisterBridge binds a bridge to a session. The stream handler does this on
// connect; it is exported for wiring variants that build bridges elsewhere.
func (h *Handler) RegisterBridge(sessionID string, bridge *checkout.Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridges[sessionID] = bridge
}

func (h *Handler) startBridge(ctx context.Context, sessionID string) {
	if h.newBridge == nil {
		return
	}

	h.mu.Lock()
	_, exists := h.bridges[sessionID]
	h.mu.Unlock()
	if exists {
		return
	}

	bridge := h.newBridge(ctx, sessionID)
	h.RegisterBridge(sessionID, bridge)
	bridge.Start(ctx)
}

func (h *Handler) dropBridge(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bridges, sessionID)
}

func actionName(action checkout.SubmitAction) string {
	switch action {
	case checkout.SubmitResubmitted:
		return "resubmitted"
	case checkout.SubmitBlocked:
		return "blocked"
	default:
		return "allow"
	}
}

// Helper function to set up SSE headers
func (h *Handler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "0")
	w.Header().Set("Referrer-Policy", "no-referrer")
}
