package sse

import (
	"context"
	"encoding/json"
	"errors"

	"ms-payment-gateway/internal/models"
	"ms-payment-gateway/internal/websdk"
)

// SessionRuntime drives one connected browser through the dispatcher. It is
// the production implementation of the SDK runtime surface; every call
// becomes a command on the session's event stream.
type SessionRuntime struct {
	d         *Dispatcher
	sessionID string
}

func NewSessionRuntime(d *Dispatcher, sessionID string) *SessionRuntime {
	return &SessionRuntime{d: d, sessionID: sessionID}
}

func (r *SessionRuntime) SDKPresent() bool {
	result, err := r.d.Send(context.Background(), r.sessionID, models.CmdSDKPresent, nil)
	if err != nil || !result.OK {
		return false
	}
	var payload struct {
		Present bool `json:"present"`
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return false
	}
	return payload.Present
}

func (r *SessionRuntime) InjectScript(ctx context.Context, url string) error {
	result, err := r.d.Send(ctx, r.sessionID, models.CmdInjectScript, map[string]string{"url": url})
	if err != nil {
		return err
	}
	if !result.OK {
		return errors.New(result.Error)
	}
	return nil
}

func (r *SessionRuntime) PaymentsCapability(applicationID, locationID string) (websdk.PaymentsAPI, error) {
	result, err := r.d.Send(context.Background(), r.sessionID, models.CmdPaymentsCreate, map[string]string{
		"applicationId": applicationID,
		"locationId":    locationID,
	})
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, errors.New(result.Error)
	}
	return &sessionPayments{rt: r}, nil
}

func (r *SessionRuntime) Container(id string) (websdk.Container, bool) {
	result, err := r.d.Send(context.Background(), r.sessionID, models.CmdContainerExists, map[string]string{"id": id})
	if err != nil || !result.OK {
		return nil, false
	}
	var payload struct {
		Exists bool `json:"exists"`
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil || !payload.Exists {
		return nil, false
	}
	return &sessionContainer{rt: r, id: id}, true
}

type sessionPayments struct {
	rt *SessionRuntime
}

func (p *sessionPayments) Card(ctx context.Context) (websdk.CardHandle, error) {
	handleID, err := p.createHandle(ctx, models.CmdCardCreate, nil)
	if err != nil {
		return nil, err
	}
	return &sessionHandle{rt: p.rt, handleID: handleID, attachKind: models.CmdCardAttach}, nil
}

func (p *sessionPayments) PaymentRequestButton(ctx context.Context, spec websdk.PaymentRequestSpec) (websdk.ButtonHandle, error) {
	handleID, err := p.createHandle(ctx, models.CmdButtonCreate, spec)
	if err != nil {
		return nil, err
	}
	return &sessionButton{
		sessionHandle: sessionHandle{rt: p.rt, handleID: handleID, attachKind: models.CmdButtonAttach},
	}, nil
}

func (p *sessionPayments) createHandle(ctx context.Context, kind string, payload any) (string, error) {
	result, err := p.rt.d.Send(ctx, p.rt.sessionID, kind, payload)
	if err != nil {
		return "", err
	}
	if !result.OK {
		return "", errors.New(result.Error)
	}
	var created struct {
		HandleID string `json:"handleId"`
	}
	if err := json.Unmarshal(result.Payload, &created); err != nil {
		return "", err
	}
	return created.HandleID, nil
}

// sessionHandle is a remote card field. Tokenize returns the raw status and
// errors the browser reported; interpreting them is the engine's job.
type sessionHandle struct {
	rt         *SessionRuntime
	handleID   string
	attachKind string
}

func (h *sessionHandle) Attach(ctx context.Context, containerID string) error {
	result, err := h.rt.d.Send(ctx, h.rt.sessionID, h.attachKind, map[string]string{
		"handleId":    h.handleID,
		"containerId": containerID,
	})
	if err != nil {
		return err
	}
	if !result.OK {
		return errors.New(result.Error)
	}
	return nil
}

func (h *sessionHandle) Tokenize(ctx context.Context) (websdk.TokenizeResult, error) {
	result, err := h.rt.d.Send(ctx, h.rt.sessionID, models.CmdTokenize, map[string]string{"handleId": h.handleID})
	if err != nil {
		return websdk.TokenizeResult{}, err
	}
	if !result.OK {
		return websdk.TokenizeResult{}, errors.New(result.Error)
	}
	var tokenized websdk.TokenizeResult
	if err := json.Unmarshal(result.Payload, &tokenized); err != nil {
		return websdk.TokenizeResult{}, err
	}
	return tokenized, nil
}

type sessionButton struct {
	sessionHandle
}

func (b *sessionButton) CanCreatePaymentRequest(ctx context.Context) (bool, error) {
	result, err := b.rt.d.Send(ctx, b.rt.sessionID, models.CmdButtonCanPay, map[string]string{"handleId": b.handleID})
	if err != nil {
		return false, err
	}
	if !result.OK {
		return false, errors.New(result.Error)
	}
	var payload struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return false, err
	}
	return payload.Available, nil
}

// sessionContainer shows user-facing messages inside a named element.
// Failures are swallowed: a message the browser never renders must not fail
// the payment flow around it.
type sessionContainer struct {
	rt *SessionRuntime
	id string
}

func (c *sessionContainer) ShowMessage(msg string, isError bool) {
	_, _ = c.rt.d.Send(context.Background(), c.rt.sessionID, models.CmdContainerMessage, map[string]any{
		"id":      c.id,
		"message": msg,
		"isError": isError,
	})
}

func (c *sessionContainer) Hide() {
	_, _ = c.rt.d.Send(context.Background(), c.rt.sessionID, models.CmdContainerHide, map[string]string{"id": c.id})
}

// SessionForm is the remote checkout form of one connected session.
type SessionForm struct {
	d         *Dispatcher
	sessionID string
}

func NewSessionForm(d *Dispatcher, sessionID string) *SessionForm {
	return &SessionForm{d: d, sessionID: sessionID}
}

func (f *SessionForm) SelectedPaymentMethod() string {
	return f.query(models.CmdFormMethod, "method")
}

func (f *SessionForm) TokenFieldValue() string {
	return f.query(models.CmdFormTokenValue, "value")
}

func (f *SessionForm) SetTokenFieldValue(token string) {
	_, _ = f.d.Send(context.Background(), f.sessionID, models.CmdFormSetTokenValue, map[string]string{"value": token})
}

func (f *SessionForm) SetPlaceOrderEnabled(enabled bool) {
	_, _ = f.d.Send(context.Background(), f.sessionID, models.CmdFormPlaceOrder, map[string]bool{"enabled": enabled})
}

func (f *SessionForm) Submit() {
	_, _ = f.d.Send(context.Background(), f.sessionID, models.CmdFormSubmit, nil)
}

func (f *SessionForm) ShowError(msg string) {
	_, _ = f.d.Send(context.Background(), f.sessionID, models.CmdFormShowError, map[string]string{"message": msg})
}

func (f *SessionForm) query(kind, field string) string {
	result, err := f.d.Send(context.Background(), f.sessionID, kind, nil)
	if err != nil || !result.OK {
		return ""
	}
	var payload map[string]string
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return ""
	}
	return payload[field]
}

// InsertionSignal adapts a session's container insertion notices to the
// bridge's signal interface.
type InsertionSignal struct {
	d         *Dispatcher
	sessionID string
}

func NewInsertionSignal(d *Dispatcher, sessionID string) *InsertionSignal {
	return &InsertionSignal{d: d, sessionID: sessionID}
}

func (s *InsertionSignal) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	return s.d.SubscribeInsertions(s.sessionID)
}
