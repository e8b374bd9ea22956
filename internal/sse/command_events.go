package sse

import (
	"context"
	"sync"

	"ms-payment-gateway/internal/models"
)

// CommandEmitter manages SSE connections and command delivery for checkout
// bridge sessions. Each connected browser subscribes under its session ID.
type CommandEmitter struct {
	// Session channel clients map - key: sessionID, value: slice of client channels
	sessionClients     map[string][]chan models.BridgeCommand
	sessionClientMutex sync.RWMutex
}

// NewCommandEmitter creates a new SSE command emitter for checkout sessions
func NewCommandEmitter() *CommandEmitter {
	return &CommandEmitter{
		sessionClients: make(map[string][]chan models.BridgeCommand),
	}
}

// Subscribe adds a client to the session's command stream
func (e *CommandEmitter) Subscribe(ctx context.Context, sessionID string) chan models.BridgeCommand {
	clientChan := make(chan models.BridgeCommand, 10)

	e.sessionClientMutex.Lock()
	if e.sessionClients[sessionID] == nil {
		e.sessionClients[sessionID] = []chan models.BridgeCommand{}
	}
	e.sessionClients[sessionID] = append(e.sessionClients[sessionID], clientChan)
	e.sessionClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeClient(sessionID, clientChan)
	}()

	return clientChan
}

// Emit delivers a command to all clients of its session and reports how many
// received it.
func (e *CommandEmitter) Emit(cmd models.BridgeCommand) int {
	e.sessionClientMutex.RLock()
	clients := e.sessionClients[cmd.SessionID]
	e.sessionClientMutex.RUnlock()

	delivered := 0
	for _, clientChan := range clients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- cmd:
			delivered++
		default:
			// Channel buffer full, skip this client for now
		}
	}
	return delivered
}

// Helper method to remove clients when they disconnect
func (e *CommandEmitter) removeClient(sessionID string, clientChan chan models.BridgeCommand) {
	e.sessionClientMutex.Lock()
	defer e.sessionClientMutex.Unlock()

	clients := e.sessionClients[sessionID]
	for i, ch := range clients {
		if ch == clientChan {
			// Remove client from slice
			e.sessionClients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	// Clean up map entry if no more clients
	if len(e.sessionClients[sessionID]) == 0 {
		delete(e.sessionClients, sessionID)
	}
}

// ClientCount returns the number of clients currently subscribed to a session
func (e *CommandEmitter) ClientCount(sessionID string) int {
	e.sessionClientMutex.RLock()
	defer e.sessionClientMutex.RUnlock()
	return len(e.sessionClients[sessionID])
}
