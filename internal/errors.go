package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures surfaced by the backend gateway
type ErrorKind int

const (
	// KindTransport means no response was received from the backend
	KindTransport ErrorKind = iota
	// KindBackend means the backend answered with a non-success status
	KindBackend
	// KindDecode means the backend answered but the body could not be decoded
	KindDecode
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindBackend:
		return "Backend"
	case KindDecode:
		return "Decode"
	default:
		return "Unknown"
	}
}

// genericTransportMessage is shown when the backend could not be reached at all
const genericTransportMessage = "could not reach the backend"

// GatewayError represents a failed backend call with the detail the user should see
type GatewayError struct {
	Kind       ErrorKind              `json:"kind"`
	Op         string                 `json:"op"`
	StatusCode int                    `json:"status_code,omitempty"`
	Detail     string                 `json:"detail,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Err        error                  `json:"-"`
}

// NewTransportError wraps a transport level failure
func NewTransportError(op string, err error) *GatewayError {
	return &GatewayError{
		Kind:       KindTransport,
		Op:         op,
		Err:        err,
		Suggestion: "Check that the backend is running and MEDIAFETCH_BACKEND_URL points at it",
		Context:    make(map[string]interface{}),
	}
}

// NewBackendError records a non-success response and the backend's detail message
func NewBackendError(op string, statusCode int, detail string) *GatewayError {
	err := &GatewayError{
		Kind:       KindBackend,
		Op:         op,
		StatusCode: statusCode,
		Detail:     strings.TrimSpace(detail),
		Context:    make(map[string]interface{}),
	}
	err.Suggestion = defaultBackendSuggestion(statusCode)
	return err
}

// NewDecodeError records a success response whose body could not be decoded
func NewDecodeError(op string, err error) *GatewayError {
	return &GatewayError{
		Kind:       KindDecode,
		Op:         op,
		Err:        err,
		Suggestion: "The backend may be running an incompatible version",
		Context:    make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	parts := []string{fmt.Sprintf("gateway error (op: %s, kind: %s)", e.Op, e.Kind.String())}

	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, " - ")
}

// Unwrap returns the underlying cause
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text: the backend detail when there is one,
// or a generic message for the failure kind
func (e *GatewayError) Message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Kind == KindTransport:
		return genericTransportMessage
	case e.Kind == KindDecode:
		return "unexpected response from the backend"
	case e.StatusCode != 0:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	default:
		return genericTransportMessage
	}
}

// DetailedError returns a detailed error message with all available information
func (e *GatewayError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s Error during %s", e.Kind.String(), e.Op))
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("Status: %d", e.StatusCode))
	}
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message()))
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", e.Err))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// WithSuggestion adds a custom suggestion to the error
func (e *GatewayError) WithSuggestion(suggestion string) *GatewayError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context information to the error
func (e *GatewayError) WithContext(key string, value interface{}) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether re-invoking the action later might succeed.
// The gateway never retries on its own.
func (e *GatewayError) IsRetryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindBackend:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}

// IsNotFound reports whether the backend answered 404
func (e *GatewayError) IsNotFound() bool {
	return e.Kind == KindBackend && e.StatusCode == 404
}

// ValidationError represents input validation errors caught before any network call
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// UserMessage builds the notification text shown when action fails
func UserMessage(action string, err error) string {
	if err == nil {
		return ""
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return fmt.Sprintf("%s failed: %s", action, gwErr.Message())
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return fmt.Sprintf("%s failed: %s", action, valErr.Message)
	}

	return fmt.Sprintf("%s failed: %v", action, err)
}

// defaultBackendSuggestion returns a default suggestion for a backend status code
func defaultBackendSuggestion(statusCode int) string {
	switch {
	case statusCode == 400:
		return "Check the URL and options, the backend rejected the request"
	case statusCode == 401 || statusCode == 403:
		return "Configure credentials for this platform with 'mediafetch auth configure'"
	case statusCode == 404:
		return "The item no longer exists on the backend, refresh the list"
	case statusCode == 429:
		return "The backend is rate limiting requests, try again later"
	case statusCode >= 500:
		return "The backend failed internally, try again later"
	default:
		return "Please check the error details and try again"
	}
}
