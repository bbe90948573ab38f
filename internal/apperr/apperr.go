// Package apperr defines the error taxonomy shared by the story client:
// local validation failures, server-reported business failures, HTTP status
// failures, transport failures, malformed payloads and session persistence
// failures.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports local input that failed a rule. It never reaches the network.
type ValidationError struct {
	// Field is the name of the offending input field.
	Field string
	// Message is the user-facing description of the rule.
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ApplicationError reports a business-rule failure returned by the server
// on an otherwise successful HTTP response.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// RequestError reports a non-2xx HTTP status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the server rejected the bearer token.
func (e *RequestError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// TransportError reports that no response was obtained (dial, DNS, timeout, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a successful response whose payload could not be parsed.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid response: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// StorageError reports a failure of the durable session storage.
type StorageError struct {
	// Op is the storage operation that failed ("load", "save", "delete").
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Validation is a shorthand constructor for ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Message maps any error to the human-readable text shown by a presentation layer.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		validationErr  *ValidationError
		applicationErr *ApplicationError
		requestErr     *RequestError
		transportErr   *TransportError
		protocolErr    *ProtocolError
		storageErr     *StorageError
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &applicationErr):
		return applicationErr.Message
	case errors.As(err, &requestErr):
		if requestErr.Unauthorized() {
			return "Session expired or invalid, please log in again"
		}
		if requestErr.Message != "" {
			return fmt.Sprintf("Error %d: %s", requestErr.StatusCode, requestErr.Message)
		}
		return fmt.Sprintf("Error %d", requestErr.StatusCode)
	case errors.As(err, &transportErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return "The server took too long to respond"
		}
		return "Unable to reach the server, check your connection"
	case errors.As(err, &protocolErr):
		return "The server sent an unexpected response"
	case errors.As(err, &storageErr):
		return "Unable to access the saved session"
	default:
		return err.Error()
	}
}
