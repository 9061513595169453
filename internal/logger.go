package internal

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// SecureLogger provides leveled logging with credential redaction
type SecureLogger struct {
	mu        sync.RWMutex
	logger    *log.Logger
	level     LogLevel
	debug     bool
	quiet     bool
	redactors []Redactor
}

// Redactor defines an interface for redacting sensitive information
type Redactor interface {
	Redact(input string) string
}

// HeaderRedactor redacts credential-bearing header values from strings
type HeaderRedactor struct{}

func (r *HeaderRedactor) Redact(input string) string {
	// Bearer first so the token is gone before the Authorization value is cut
	patterns := []string{
		"Bearer ",
		"Authorization:",
		"Set-Cookie:",
		"Cookie:",
	}

	result := input
	for _, pattern := range patterns {
		result = redactAfter(result, pattern, true, func(b byte) bool {
			return b == ' ' || b == ';' || b == '\n' || b == '\r'
		})
	}
	return result
}

// SecretRedactor redacts credential fields in key=value and JSON forms
type SecretRedactor struct{}

var secretKeys = []string{
	"password",
	"client_secret",
	"client_id",
	"token",
	"secret",
}

func (r *SecretRedactor) Redact(input string) string {
	result := input
	for _, key := range secretKeys {
		result = redactAfter(result, key+"=", false, func(b byte) bool {
			return b == '&' || b == ' ' || b == '\n'
		})
		result = redactAfter(result, `"`+key+`":`, true, func(b byte) bool {
			return b == ',' || b == '}' || b == '\n'
		})
	}
	return result
}

const redacted = "[REDACTED]"

// redactAfter replaces every value following pattern (ASCII case-insensitive)
// up to the first byte accepted by stop
func redactAfter(input, pattern string, skipSpace bool, stop func(byte) bool) string {
	result := input
	offset := 0
	for {
		index := indexFold(result[offset:], pattern)
		if index == -1 {
			return result
		}
		start := offset + index + len(pattern)
		if skipSpace {
			for start < len(result) && result[start] == ' ' {
				start++
			}
		}
		end := start
		for end < len(result) && !stop(result[end]) {
			end++
		}
		value := strings.Trim(result[start:end], `"`)
		if end > start && value != redacted {
			result = result[:start] + redacted + result[end:]
			end = start + len(redacted)
		}
		offset = end
	}
}

func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

// NewSecureLogger creates a new secure logger
func NewSecureLogger(output io.Writer, level LogLevel, debug, quiet bool) *SecureLogger {
	logger := log.New(output, "", 0) // We'll handle our own formatting

	sl := &SecureLogger{
		logger: logger,
		level:  level,
		debug:  debug,
		quiet:  quiet,
		redactors: []Redactor{
			&HeaderRedactor{},
			&SecretRedactor{},
		},
	}

	return sl
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger(debug, quiet bool) *SecureLogger {
	level := LogLevelInfo
	if debug {
		level = LogLevelDebug
	}
	if quiet {
		level = LogLevelError
	}

	return NewSecureLogger(os.Stderr, level, debug, quiet)
}

// redactSensitiveData applies all redactors to the input string
func (sl *SecureLogger) redactSensitiveData(input string) string {
	result := input
	for _, redactor := range sl.redactors {
		result = redactor.Redact(result)
	}
	return result
}

// formatMessage formats a log message with timestamp and caller information
func (sl *SecureLogger) formatMessage(level LogLevel, debug bool, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	if debug {
		// Skip frames belonging to the logging helpers themselves
		for depth := 3; depth <= 6; depth++ {
			_, file, line, ok := runtime.Caller(depth)
			if ok && !strings.HasSuffix(file, "logger.go") && !strings.HasSuffix(file, "log.go") {
				parts := strings.Split(file, "/")
				filename := parts[len(parts)-1]
				return fmt.Sprintf("[%s] %s %s:%d %s", timestamp, level.String(), filename, line, message)
			}
		}
	}

	return fmt.Sprintf("[%s] %s %s", timestamp, level.String(), message)
}

// shouldLog determines if a message should be logged based on level
func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) logf(level LogLevel, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}

	sl.mu.RLock()
	debug := sl.debug
	message := sl.redactSensitiveData(fmt.Sprintf(format, args...))
	sl.mu.RUnlock()

	sl.logger.Print(sl.formatMessage(level, debug, message))
}

// Error logs an error message
func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.logf(LogLevelError, format, args...)
}

// Warn logs a warning message
func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.logf(LogLevelWarn, format, args...)
}

// Info logs an info message
func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.logf(LogLevelInfo, format, args...)
}

// Debug logs a debug message
func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.logf(LogLevelDebug, format, args...)
}

// LogHTTPRequest logs a gateway request with credential headers redacted
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.Debug("HTTP Request: %s %s Headers: %v", req.Method, req.URL.String(), sl.sanitizeHeaders(req.Header))
}

// LogHTTPResponse logs a gateway response with credential headers redacted
func (sl *SecureLogger) LogHTTPResponse(resp *http.Response) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	sl.Debug("HTTP Response: %s Headers: %v", resp.Status, sl.sanitizeHeaders(resp.Header))
}

func (sl *SecureLogger) sanitizeHeaders(header http.Header) map[string]string {
	sanitized := make(map[string]string, len(header))
	for name, values := range header {
		if sl.isSensitiveHeader(name) {
			sanitized[name] = "[REDACTED]"
		} else {
			sanitized[name] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// isSensitiveHeader checks if a header contains sensitive information
func (sl *SecureLogger) isSensitiveHeader(name string) bool {
	sensitiveHeaders := []string{
		"authorization",
		"cookie",
		"x-api-key",
		"token",
	}

	lowerName := strings.ToLower(name)
	for _, sensitive := range sensitiveHeaders {
		if strings.Contains(lowerName, sensitive) {
			return true
		}
	}
	return false
}

// SetLevel sets the logging level
func (sl *SecureLogger) SetLevel(level LogLevel) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.level = level
}

// SetDebug enables or disables debug mode
func (sl *SecureLogger) SetDebug(debug bool) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.debug = debug
	if debug && sl.level < LogLevelDebug {
		sl.level = LogLevelDebug
	}
}

// SetQuiet enables or disables quiet mode
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.quiet = quiet
	if quiet {
		sl.level = LogLevelError
	}
}

// AddRedactor adds a custom redactor
func (sl *SecureLogger) AddRedactor(redactor Redactor) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.redactors = append(sl.redactors, redactor)
}
