package internal

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is reported by the bridge and sent in the User-Agent header
const Version = "1.0.0"

// Config holds application configuration
type Config struct {
	BackendURL      string
	DefaultTimeout  int
	PollInterval    time.Duration
	SuggestDebounce time.Duration
	SearchLimit     int
	ProxyURL        string
	DownloadsDir    string

	// Desktop shell configuration
	BackendCommand string
	BackendWorkDir string
	BridgeAddr     string
	BridgeOrigins  []string

	// Logging configuration
	LogLevel    string
	EnableDebug bool
	QuietMode   bool
	LogFile     string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BackendURL:      "http://localhost:8001",
		DefaultTimeout:  30,
		PollInterval:    5 * time.Second,
		SuggestDebounce: 300 * time.Millisecond,
		SearchLimit:     20,
		DownloadsDir:    defaultDownloadsDir(),

		BridgeAddr:    "127.0.0.1:17321",
		BridgeOrigins: []string{"http://localhost:3000"},

		// Logging defaults
		LogLevel:    "info",
		EnableDebug: false,
		QuietMode:   false,
		LogFile:     "", // Empty means stderr
	}
}

func defaultDownloadsDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "downloads")
	}
	return filepath.Join(homeDir, "Downloads", "mediafetch")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if backend := os.Getenv("MEDIAFETCH_BACKEND_URL"); backend != "" {
		c.BackendURL = strings.TrimRight(backend, "/")
	}

	if timeout := os.Getenv("MEDIAFETCH_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			c.DefaultTimeout = t
		}
	}

	if interval := os.Getenv("MEDIAFETCH_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.PollInterval = d
		}
	}

	if debounce := os.Getenv("MEDIAFETCH_SUGGEST_DEBOUNCE"); debounce != "" {
		if d, err := time.ParseDuration(debounce); err == nil {
			c.SuggestDebounce = d
		}
	}

	if limit := os.Getenv("MEDIAFETCH_SEARCH_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			c.SearchLimit = l
		}
	}

	c.ProxyURL = GetEnvWithDefault("MEDIAFETCH_PROXY", c.ProxyURL)
	c.DownloadsDir = GetEnvWithDefault("MEDIAFETCH_DOWNLOADS_DIR", c.DownloadsDir)
	c.BackendCommand = GetEnvWithDefault("MEDIAFETCH_BACKEND_CMD", c.BackendCommand)
	c.BackendWorkDir = GetEnvWithDefault("MEDIAFETCH_BACKEND_DIR", c.BackendWorkDir)
	c.BridgeAddr = GetEnvWithDefault("MEDIAFETCH_BRIDGE_ADDR", c.BridgeAddr)

	if origins := os.Getenv("MEDIAFETCH_BRIDGE_ORIGINS"); origins != "" {
		c.BridgeOrigins = splitList(origins)
	}

	// Load logging configuration from environment
	if logLevel := os.Getenv("MEDIAFETCH_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	if debug := os.Getenv("MEDIAFETCH_DEBUG"); debug != "" {
		c.EnableDebug = debug == "true" || debug == "1"
	}

	if quiet := os.Getenv("MEDIAFETCH_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}

	if logFile := os.Getenv("MEDIAFETCH_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// GetEnvWithDefault returns environment variable value or default
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig validates the configuration values
func (c *Config) ValidateConfig() error {
	if c.BackendURL == "" {
		return NewValidationError("backend_url", "backend URL cannot be empty")
	}

	parsed, err := url.Parse(c.BackendURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return NewValidationErrorWithValue("backend_url", "backend URL must be an absolute http or https URL", c.BackendURL)
	}

	if c.DefaultTimeout < 1 {
		return fmt.Errorf("invalid default timeout: %d (must be > 0)", c.DefaultTimeout)
	}

	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("invalid poll interval: %v (must be >= 100ms)", c.PollInterval)
	}

	if c.SuggestDebounce < 0 {
		return fmt.Errorf("invalid suggestion debounce: %v (must be >= 0)", c.SuggestDebounce)
	}

	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return fmt.Errorf("invalid search limit: %d (must be 1-100)", c.SearchLimit)
	}

	if c.ProxyURL != "" {
		if !strings.HasPrefix(c.ProxyURL, "http://") &&
			!strings.HasPrefix(c.ProxyURL, "https://") &&
			!strings.HasPrefix(c.ProxyURL, "socks5://") {
			return NewValidationErrorWithValue("proxy_url", "unsupported proxy scheme", c.ProxyURL).
				WithSuggestion("Use formats like http://proxy:8080 or socks5://proxy:1080")
		}
	}

	return nil
}
