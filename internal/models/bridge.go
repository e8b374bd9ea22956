package models

import "encoding/json"

// Bridge command kinds pushed to a connected checkout session over SSE.
const (
	CmdSDKPresent       = "sdk.present"
	CmdInjectScript     = "sdk.inject"
	CmdPaymentsCreate   = "payments.create"
	CmdCardCreate       = "card.create"
	CmdCardAttach       = "card.attach"
	CmdTokenize         = "source.tokenize"
	CmdButtonCreate     = "button.create"
	CmdButtonAttach     = "button.attach"
	CmdButtonCanPay     = "button.canPay"
	CmdContainerExists  = "container.exists"
	CmdContainerMessage = "container.message"
	CmdContainerHide    = "container.hide"

	CmdFormMethod        = "form.method"
	CmdFormTokenValue    = "form.tokenValue"
	CmdFormSetTokenValue = "form.setTokenValue"
	CmdFormPlaceOrder    = "form.placeOrder"
	CmdFormSubmit        = "form.submit"
	CmdFormShowError     = "form.showError"
)

// Client-originated event types posted back on the events endpoint.
const (
	EventResult            = "result"
	EventContainerInserted = "container.inserted"
)

// BridgeCommand is one instruction for the browser side of the checkout
// bridge. Payload shape depends on Kind.
type BridgeCommand struct {
	CommandID string          `json:"command_id"`
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BridgeResult is the browser's answer to one command.
type BridgeResult struct {
	CommandID string          `json:"command_id"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BridgeEvent is the envelope posted back by the browser. Result is set for
// command answers; signals like container insertion carry only Type.
type BridgeEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Result    *BridgeResult `json:"result,omitempty"`
}
