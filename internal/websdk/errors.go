package websdk

import (
	"fmt"
	"strings"
)

// SDKLoadError means the hosted SDK script could not be fetched or injected.
type SDKLoadError struct {
	URL string
	Err error
}

func (e *SDKLoadError) Error() string {
	return fmt.Sprintf("failed to load payments SDK from %s: %v", e.URL, e.Err)
}

func (e *SDKLoadError) Unwrap() error { return e.Err }

// ConfigurationError means the client-side gateway settings are incomplete.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment configuration incomplete: %s missing", e.Missing)
}

// SDKUnavailableError means the SDK loaded but does not expose the expected
// payments capability.
type SDKUnavailableError struct {
	Reason string
}

func (e *SDKUnavailableError) Error() string {
	return "payments SDK unavailable: " + e.Reason
}

// TokenizationError carries the processor's detail messages for a rejected
// tokenization attempt. Message joins them into one user-facing string.
type TokenizationError struct {
	Status  string
	Details []string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("tokenization failed with status %s: %s", e.Status, e.Message())
}

func (e *TokenizationError) Message() string {
	if len(e.Details) == 0 {
		return "Payment could not be tokenized."
	}
	return strings.Join(e.Details, "\n")
}
