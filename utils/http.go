package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"

	"mediafetch/internal"
)

// RequestIDHeader is attached to every outgoing request so backend logs can be correlated
const RequestIDHeader = "X-Request-ID"

// HTTPClientConfig contains configuration for the HTTP client
type HTTPClientConfig struct {
	Timeout  time.Duration
	ProxyURL string
	// UserAgent overrides the default "mediafetch/<version>"
	UserAgent string
}

// HTTPClient is the transport used by the backend gateway.
// It never retries: a failed request is reported once to the caller.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// DefaultUserAgent returns the User-Agent sent to the backend
func DefaultUserAgent() string {
	return "mediafetch/" + internal.Version
}

// NewHTTPClient creates a new HTTP client with default configuration
func NewHTTPClient() *HTTPClient {
	client, _ := NewHTTPClientWithConfig(&HTTPClientConfig{Timeout: 30 * time.Second})
	return client
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration.
// An unusable proxy URL is an error rather than a silent direct connection.
func NewHTTPClientWithConfig(config *HTTPClientConfig) (*HTTPClient, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if config.ProxyURL != "" {
		if err := configureProxy(transport, config.ProxyURL); err != nil {
			return nil, internal.NewValidationErrorWithValue("proxy_url", err.Error(), config.ProxyURL).
				WithSuggestion("Use formats like http://proxy:8080 or socks5://proxy:1080")
		}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent()
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}, nil
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsedURL)
	case "socks5":
		var auth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}

		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 proxy: %w", err)
		}
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
	}

	return nil
}

// UserAgent returns the User-Agent header value sent with every request
func (c *HTTPClient) UserAgent() string {
	return c.userAgent
}

// NewRequest builds a request with the standard headers set.
// A nil body sends no Content-Type.
func (c *HTTPClient) NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do sends the request once. Any response, including non-2xx, is returned
// with a nil error; only transport failures produce an error.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	logger := internal.GetLogger()
	logger.LogHTTPRequest(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Debug("%s %s failed after %v: %v", req.Method, req.URL.Path, time.Since(start), err)
		return nil, err
	}

	logger.LogHTTPResponse(resp)
	logger.Debug("%s %s -> %d in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// IsTimeout reports whether err is a client or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
