package internal

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func TestSecureLogger_RedactSensitiveData(t *testing.T) {
	logger := NewDefaultLogger(false, false)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "redact_bearer_token",
			input:    "Authorization: Bearer token123",
			expected: "Authorization: [REDACTED] [REDACTED]",
		},
		{
			name:     "redact_cookie_header",
			input:    "Cookie: session=abc123; theme=dark",
			expected: "Cookie: [REDACTED]; theme=dark",
		},
		{
			name:     "redact_query_password",
			input:    "POST /login?user=bob&password=hunter2&x=1",
			expected: "POST /login?user=bob&password=[REDACTED]&x=1",
		},
		{
			name:     "redact_json_client_secret",
			input:    `{"platform":"reddit","client_id":"abc","client_secret":"xyz"}`,
			expected: `{"platform":"reddit","client_id":[REDACTED],"client_secret":[REDACTED]}`,
		},
		{
			name:     "redact_json_with_spaces",
			input:    `{"username": "bob", "password": "hunter2"}`,
			expected: `{"username": "bob", "password": [REDACTED]}`,
		},
		{
			name:     "no_sensitive_data",
			input:    "Polling 3 jobs from http://localhost:8001",
			expected: "Polling 3 jobs from http://localhost:8001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := logger.redactSensitiveData(tt.input)
			if result != tt.expected {
				t.Errorf("redactSensitiveData() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSecureLogger_LogLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     LogLevel
		logFunc   func(*SecureLogger)
		shouldLog bool
	}{
		{"error_at_error", LogLevelError, func(l *SecureLogger) { l.Error("boom") }, true},
		{"warn_at_error", LogLevelError, func(l *SecureLogger) { l.Warn("careful") }, false},
		{"info_at_info", LogLevelInfo, func(l *SecureLogger) { l.Info("hello") }, true},
		{"debug_at_info", LogLevelInfo, func(l *SecureLogger) { l.Debug("details") }, false},
		{"debug_at_debug", LogLevelDebug, func(l *SecureLogger) { l.Debug("details") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, tt.level, false, false)
			tt.logFunc(logger)

			if got := buf.Len() > 0; got != tt.shouldLog {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.shouldLog, buf.String())
			}
		})
	}
}

func TestSecureLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, true)

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote info message: %q", buf.String())
	}

	logger.Error("kept")
	if !strings.Contains(buf.String(), "ERROR kept") {
		t.Errorf("quiet logger dropped error message: %q", buf.String())
	}
}

func TestSecureLogger_DebugIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true, false)

	logger.Debug("where am i")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Errorf("debug output should include caller file, got %q", buf.String())
	}
}

func TestSecureLogger_LogHTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false, false)

	req, err := http.NewRequest(http.MethodGet, "http://localhost:8001/api/stats", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Request-ID", "r-1")

	logger.LogHTTPRequest(req)

	out := buf.String()
	if strings.Contains(out, "abc") {
		t.Errorf("authorization value leaked: %q", out)
	}
	if !strings.Contains(out, "r-1") {
		t.Errorf("non-sensitive header missing: %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
	}
	for input, want := range cases {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
