// Package core provides the wire types, error taxonomy and interfaces
// shared by the model server components.
package core

import (
	"fmt"
	"net/http"
)

// ErrorType labels the category of a ServeError. The values mirror the
// "type" field of the OpenAI-style error envelope returned to clients.
type ErrorType string

const (
	// ErrorTypeNotFound covers model-not-found and the disabled list endpoint (404)
	ErrorTypeNotFound ErrorType = "NotFoundError"
	// ErrorTypeFileNotFound indicates a missing or expired uploaded file (404)
	ErrorTypeFileNotFound ErrorType = "FileNotFound"
	// ErrorTypeValue indicates a malformed chat message sequence (404)
	ErrorTypeValue ErrorType = "ValueError"
	// ErrorTypeNotImplemented covers function calling and streaming rejections
	ErrorTypeNotImplemented ErrorType = "NotImplementedError"
	// ErrorTypeInvalidRequest indicates a client error (400)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeUpstream indicates an inference runtime failure (502)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeInternal indicates an unexpected server failure (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

// ServeError is the error type for all domain failures. Every component
// returns these; the HTTP layer translates them exactly once into the
// documented error envelopes.
type ServeError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	// Data carries request diagnostics echoed back to the client
	// (the original message list for sequence errors).
	Data any
	// Original error for debugging (not exposed to clients)
	Err error
}

// Error implements the error interface
func (e *ServeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ServeError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *ServeError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeNotFound, ErrorTypeFileNotFound, ErrorTypeValue:
		return http.StatusNotFound
	case ErrorTypeNotImplemented:
		return http.StatusNotImplemented
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Envelope converts the error to the JSON body returned to clients:
// {object:"error", message, type, param:null, code}.
func (e *ServeError) Envelope() map[string]any {
	body := map[string]any{
		"object":  "error",
		"message": e.Message,
		"type":    string(e.Type),
		"param":   nil,
		"code":    e.HTTPStatusCode(),
	}
	if e.Data != nil {
		body["data"] = e.Data
	}
	return body
}

// NewModelNotFoundError reports a request for a model this server does not host.
func NewModelNotFoundError(model string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("The model `%s` does not exist.", model),
		StatusCode: http.StatusNotFound,
	}
}

// NewFileNotFoundError reports a missing, expired or never-uploaded file id.
func NewFileNotFoundError(id string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeFileNotFound,
		Message:    fmt.Sprintf("The file '%s' is not found", id),
		StatusCode: http.StatusNotFound,
	}
}

// NewMessageSequenceError reports a chat message list that cannot be
// normalized. messages is echoed back for diagnostics, detail is kept on the
// wrapped error for logs.
func NewMessageSequenceError(messages []ChatMessage, detail string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeValue,
		Message:    "The last message should be from the user.",
		StatusCode: http.StatusNotFound,
		Data:       messages,
		Err:        fmt.Errorf("invalid message sequence: %s", detail),
	}
}

// NewFunctionCallError reports a request carrying function or tool definitions.
func NewFunctionCallError(name string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeNotImplemented,
		Message:    fmt.Sprintf("Function call `%s` is not allowed.", name),
		StatusCode: http.StatusNotFound,
	}
}

// NewNotImplementedError reports an intentionally unsupported feature.
func NewNotImplementedError(message string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeNotImplemented,
		Message:    message,
		StatusCode: http.StatusNotImplemented,
	}
}

// NewListNotSupportedError is the fixed response of GET /v1/files.
func NewListNotSupportedError() *ServeError {
	return &ServeError{
		Type:       ErrorTypeNotFound,
		Message:    "List files api not supported.",
		StatusCode: http.StatusNotFound,
	}
}

// NewInvalidPurposeError reports an upload purpose outside the allowed set.
func NewInvalidPurposeError(purpose string) *ServeError {
	return &ServeError{
		Type:       ErrorTypeInvalidRequest,
		Message:    fmt.Sprintf("The purpose `%s` is not supported.", purpose),
		StatusCode: http.StatusBadRequest,
	}
}

// NewInvalidRequestError reports a malformed client request.
func NewInvalidRequestError(message string, err error) *ServeError {
	return &ServeError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewDownloadError reports a failed image download. status is zero when the
// request never produced a response.
func NewDownloadError(url string, status int, err error) *ServeError {
	msg := fmt.Sprintf("Failed to download image from `%s`.", url)
	if status != 0 {
		msg = fmt.Sprintf("Failed to download image from `%s`: status %d.", url, status)
	}
	return &ServeError{
		Type:       ErrorTypeInvalidRequest,
		Message:    msg,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewUpstreamError reports an inference runtime failure.
func NewUpstreamError(message string, err error) *ServeError {
	return &ServeError{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// NewInternalError wraps an unexpected failure without leaking details.
func NewInternalError(err error) *ServeError {
	return &ServeError{
		Type:       ErrorTypeInternal,
		Message:    "an unexpected error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
