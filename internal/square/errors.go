package square

import (
	"encoding/json"
	"fmt"
)

// ConfigurationError means stored credentials are incomplete; no request
// was sent.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return "Square credentials not configured: " + e.Missing + " missing"
}

// NetworkError means no response was received from Square at all. It is
// reported separately from ProcessorError so logs can tell a connectivity
// problem from a decline.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("no response from Square during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProcessorError means Square replied with a failure.
type ProcessorError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("Square rejected the request (HTTP %d): %s", e.StatusCode, e.Message)
}

const unknownErrorMessage = "Unknown error from Square"

type apiError struct {
	Category string `json:"category,omitempty"`
	Code     string `json:"code,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Message  string `json:"message,omitempty"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

// ExtractErrorMessage pulls a human-readable message out of a Square error
// body. Priority: errors[0].detail, then errors[0].message, then a generic
// fallback. Transport-independent so it can be tested on raw bodies.
func ExtractErrorMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return unknownErrorMessage
	}
	first := envelope.Errors[0]
	if first.Detail != "" {
		return first.Detail
	}
	if first.Message != "" {
		return first.Message
	}
	return unknownErrorMessage
}

// ExtractErrorCode returns the first structured error's code, if any.
func ExtractErrorCode(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return ""
	}
	return envelope.Errors[0].Code
}
