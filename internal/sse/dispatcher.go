package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/models"
)

var (
	// ErrNoSession means no browser is subscribed to the session's stream.
	ErrNoSession = errors.New("no connected checkout session")
	// ErrCommandTimeout means the browser never answered a command.
	ErrCommandTimeout = errors.New("checkout session did not respond")
)

const defaultCommandTimeout = 10 * time.Second

// Dispatcher pushes commands to connected checkout sessions and correlates
// the results posted back on the events endpoint.
type Dispatcher struct {
	emitter *CommandEmitter
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]chan models.BridgeResult
	signals map[string][]chan struct{}
}

func NewDispatcher(emitter *CommandEmitter, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		emitter: emitter,
		timeout: defaultCommandTimeout,
		log:     log,
		pending: make(map[string]chan models.BridgeResult),
		signals: make(map[string][]chan struct{}),
	}
}

// Send pushes one command and blocks until the session answers, the context
// ends, or the command times out.
func (d *Dispatcher) Send(ctx context.Context, sessionID, kind string, payload any) (models.BridgeResult, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return models.BridgeResult{}, fmt.Errorf("failed to marshal command payload: %w", err)
		}
		raw = data
	}

	cmd := models.BridgeCommand{
		CommandID: uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Payload:   raw,
	}

	resultChan := make(chan models.BridgeResult, 1)
	d.mu.Lock()
	d.pending[cmd.CommandID] = resultChan
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, cmd.CommandID)
		d.mu.Unlock()
	}()

	if d.emitter.Emit(cmd) == 0 {
		return models.BridgeResult{}, ErrNoSession
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case result := <-resultChan:
		return result, nil
	case <-ctx.Done():
		return models.BridgeResult{}, ctx.Err()
	case <-timer.C:
		d.log.Warn("CHECKOUT", fmt.Sprintf("command %s (%s) timed out for session %s", cmd.Kind, cmd.CommandID, sessionID))
		return models.BridgeResult{}, ErrCommandTimeout
	}
}

// Resolve delivers a posted result to its waiting Send call. Returns false
// when nothing is waiting, which happens after a timeout.
func (d *Dispatcher) Resolve(result models.BridgeResult) bool {
	d.mu.Lock()
	resultChan, ok := d.pending[result.CommandID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case resultChan <- result:
		return true
	default:
		return false
	}
}

// SignalContainerInserted fans a container insertion notice out to the
// session's subscribers.
func (d *Dispatcher) SignalContainerInserted(sessionID string) {
	d.mu.Lock()
	subscribers := append([]chan struct{}(nil), d.signals[sessionID]...)
	d.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscribeInsertions registers for a session's container insertion notices.
// The cancel function removes the subscription.
func (d *Dispatcher) SubscribeInsertions(sessionID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	d.mu.Lock()
	d.signals[sessionID] = append(d.signals[sessionID], ch)
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subscribers := d.signals[sessionID]
		for i, sub := range subscribers {
			if sub == ch {
				d.signals[sessionID] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(d.signals[sessionID]) == 0 {
			delete(d.signals, sessionID)
		}
	}
	return ch, cancel
}

// HandleEvent routes one posted browser event.
func (d *Dispatcher) HandleEvent(event models.BridgeEvent) error {
	switch event.Type {
	case models.EventResult:
		if event.Result == nil {
			return errors.New("result event without result body")
		}
		if !d.Resolve(*event.Result) {
			d.log.Warn("CHECKOUT", "dropped result for unknown command "+event.Result.CommandID)
		}
		return nil
	case models.EventContainerInserted:
		d.SignalContainerInserted(event.SessionID)
		return nil
	default:
		return fmt.Errorf("unknown bridge event type %q", event.Type)
	}
}
