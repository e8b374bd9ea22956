package websdk

import "context"

// Runtime abstracts the surface the hosted SDK runs in. In production this
// is a connected browser shim driven over the checkout event stream; tests
// use in-memory fakes.
type Runtime interface {
	// SDKPresent reports whether the SDK is already in the global scope.
	SDKPresent() bool
	// InjectScript loads the hosted SDK script and returns once it reports
	// successful load.
	InjectScript(ctx context.Context, url string) error
	// PaymentsCapability resolves the global payments entry point. Returns
	// an error when the loaded SDK does not expose it.
	PaymentsCapability(applicationID, locationID string) (PaymentsAPI, error)
	// Container looks up a DOM container by element id.
	Container(id string) (Container, bool)
}

// PaymentsAPI is the payments capability exposed by the loaded SDK.
type PaymentsAPI interface {
	Card(ctx context.Context) (CardHandle, error)
	PaymentRequestButton(ctx context.Context, spec PaymentRequestSpec) (ButtonHandle, error)
}

// TokenSource produces single-use payment tokens. Both the card field and
// the express button satisfy it.
type TokenSource interface {
	Tokenize(ctx context.Context) (TokenizeResult, error)
}

type CardHandle interface {
	TokenSource
	Attach(ctx context.Context, containerID string) error
}

type ButtonHandle interface {
	TokenSource
	Attach(ctx context.Context, containerID string) error
	// CanCreatePaymentRequest reports whether an express method (Apple Pay /
	// Google Pay) is available on this device and browser.
	CanCreatePaymentRequest(ctx context.Context) (bool, error)
}

// Container is a named DOM element the SDK renders into.
type Container interface {
	ShowMessage(msg string, isError bool)
	Hide()
}

// PaymentRequestSpec describes the express payment request shown on the
// wallet sheet.
type PaymentRequestSpec struct {
	CountryCode  string `json:"countryCode"`
	CurrencyCode string `json:"currencyCode"`
	TotalLabel   string `json:"totalLabel"`
	TotalAmount  string `json:"totalAmount"`
}

const (
	TokenizeStatusOK    = "OK"
	TokenizeStatusError = "ERROR"
)

// TokenizeResult is the raw outcome reported by a field or button handle.
type TokenizeResult struct {
	Status string          `json:"status"`
	Token  string          `json:"token,omitempty"`
	Errors []TokenizeError `json:"errors,omitempty"`
}

type TokenizeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
