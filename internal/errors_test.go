package internal

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestGatewayError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want string
	}{
		{
			name: "backend_detail",
			err:  NewBackendError("start download", 400, "Unsupported platform or invalid URL"),
			want: "Unsupported platform or invalid URL",
		},
		{
			name: "backend_without_detail",
			err:  NewBackendError("list jobs", 502, ""),
			want: "HTTP 502",
		},
		{
			name: "transport",
			err:  NewTransportError("stats", errors.New("connection refused")),
			want: "could not reach the backend",
		},
		{
			name: "decode",
			err:  NewDecodeError("platforms", errors.New("unexpected EOF")),
			want: "unexpected response from the backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGatewayError_Error(t *testing.T) {
	err := NewBackendError("delete job", 404, "Download not found")

	msg := err.Error()
	for _, part := range []string{"delete job", "Backend", "HTTP 404", "Download not found"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewTransportError("health", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the transport cause")
	}

	wrapped := fmt.Errorf("refresh: %w", err)
	var gwErr *GatewayError
	if !errors.As(wrapped, &gwErr) {
		t.Fatal("errors.As should find the GatewayError")
	}
	if gwErr.Kind != KindTransport {
		t.Errorf("Kind = %v, want Transport", gwErr.Kind)
	}
}

func TestGatewayError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       *GatewayError
		retryable bool
		notFound  bool
	}{
		{"transport", NewTransportError("op", errors.New("x")), true, false},
		{"server_error", NewBackendError("op", 500, "boom"), true, false},
		{"rate_limited", NewBackendError("op", 429, ""), true, false},
		{"bad_request", NewBackendError("op", 400, "bad"), false, false},
		{"not_found", NewBackendError("op", 404, "gone"), false, true},
		{"decode", NewDecodeError("op", errors.New("x")), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := tt.err.IsNotFound(); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
		})
	}
}

func TestGatewayError_DetailedError(t *testing.T) {
	err := NewBackendError("configure auth", 400, "Unsupported platform").
		WithContext("platform", "youtube").
		WithSuggestion("Only instagram and reddit accept credentials")

	detailed := err.DetailedError()
	for _, part := range []string{
		"Backend Error during configure auth",
		"Status: 400",
		"Message: Unsupported platform",
		"platform=youtube",
		"Suggestion: Only instagram and reddit accept credentials",
	} {
		if !strings.Contains(detailed, part) {
			t.Errorf("DetailedError() missing %q:\n%s", part, detailed)
		}
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationErrorWithValue("url", "URL cannot be empty", "   ").
		WithSuggestion("Paste a link to a supported site")

	if !strings.Contains(err.Error(), "validation error for url: URL cannot be empty") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !strings.Contains(err.DetailedError(), "Provided value:") {
		t.Errorf("DetailedError() should include the value: %q", err.DetailedError())
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name   string
		action string
		err    error
		want   string
	}{
		{"nil", "Download", nil, ""},
		{"backend_detail", "Download", NewBackendError("start", 400, "Unsupported platform or invalid URL"), "Download failed: Unsupported platform or invalid URL"},
		{"transport", "Refresh", NewTransportError("list", errors.New("refused")), "Refresh failed: could not reach the backend"},
		{"validation", "Search", NewValidationError("query", "query cannot be empty"), "Search failed: query cannot be empty"},
		{"plain", "Delete", errors.New("boom"), "Delete failed: boom"},
		{"wrapped", "Delete", fmt.Errorf("ctx: %w", NewBackendError("delete", 404, "Download not found")), "Delete failed: Download not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.action, tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
