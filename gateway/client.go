// Package gateway is the HTTP client for the media backend's REST contract.
//
// Every method issues exactly one request (CosplaySuggestions may issue none)
// and never retries. Failures are returned as *internal.GatewayError whose
// Message is the backend's "detail" text when it sent one.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediafetch/internal"
	"mediafetch/metrics"
	"mediafetch/utils"
)

// Operation names used in errors, logs and metrics
const (
	OpHealth             = "health"
	OpMediaInfo          = "media_info"
	OpStartDownload      = "start_download"
	OpListJobs           = "list_jobs"
	OpGetJob             = "get_job"
	OpFetchFile          = "fetch_file"
	OpDeleteJob          = "delete_job"
	OpPlatforms          = "platforms"
	OpStats              = "stats"
	OpAuthStatus         = "auth_status"
	OpConfigureAuth      = "configure_auth"
	OpDeleteAuth         = "delete_auth"
	OpCosplaySuggestions = "cosplay_suggestions"
	OpCosplaySearch      = "cosplay_search"
	OpCosplayDownload    = "cosplay_download"
)

// MinSuggestionQuery is the shortest query, in characters, sent for suggestions
const MinSuggestionQuery = 2

// DefaultSearchLimit is the result limit used when a search does not set one
const DefaultSearchLimit = 20

const maxErrorBody = 64 << 10

// HealthStatus is the body of GET /api/health
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Client talks to one backend base URL
type Client struct {
	baseURL string
	http    *utils.HTTPClient
	metrics *metrics.Collector
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport
func WithHTTPClient(h *utils.HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

// WithMetrics records every call in m
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for baseURL, e.g. "http://localhost:8001"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    utils.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client using the configured backend, timeout and proxy
func NewFromConfig(cfg *internal.Config, m *metrics.Collector) (*Client, error) {
	httpClient, err := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(cfg.DefaultTimeout) * time.Second,
		ProxyURL: cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg.BackendURL, WithHTTPClient(httpClient), WithMetrics(m)), nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks that the backend is up
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, OpHealth, http.MethodGet, "/api/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MediaInfo fetches metadata for a URL without starting a download
func (c *Client) MediaInfo(ctx context.Context, rawURL string) (*internal.MediaInfo, error) {
	var out internal.MediaInfo
	body := map[string]string{"url": rawURL}
	if err := c.do(ctx, OpMediaInfo, http.MethodPost, "/api/media/info", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartDownload asks the backend to create a job for rawURL
func (c *Client) StartDownload(ctx context.Context, rawURL string, opts internal.DownloadOptions) (*internal.StartResult, error) {
	if opts.Platform == "" {
		opts.Platform = internal.PlatformAuto
	}

	var out internal.StartResult
	body := internal.DownloadRequest{URL: rawURL, DownloadOptions: opts}
	if err := c.do(ctx, OpStartDownload, http.MethodPost, "/api/media/download", nil, body, &out); err != nil {
		return nil, err
	}
	if out.DownloadID == "" {
		return nil, internal.NewDecodeError(OpStartDownload, errors.New("response has no download_id"))
	}
	return &out, nil
}

// ListJobs returns the backend's job list, newest first
func (c *Client) ListJobs(ctx context.Context, opts internal.ListOptions) ([]internal.Job, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Platform != "" {
		query.Set("platform", string(opts.Platform))
	}

	var out []internal.Job
	if err := c.do(ctx, OpListJobs, http.MethodGet, "/api/media/downloads", query, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []internal.Job{}
	}
	return out, nil
}

// GetJob returns the current snapshot of one job
func (c *Client) GetJob(ctx context.Context, id string) (*internal.Job, error) {
	var out internal.Job
	if err := c.do(ctx, OpGetJob, http.MethodGet, "/api/media/status/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchFile opens the payload of a completed job. The caller closes the reader.
func (c *Client) FetchFile(ctx context.Context, id string) (io.ReadCloser, internal.FileMeta, error) {
	start := time.Now()
	path := "/api/media/download/" + url.PathEscape(id)

	resp, err := c.send(ctx, OpFetchFile, http.MethodGet, path, nil, nil)
	if err != nil {
		c.observe(OpFetchFile, err, start)
		return nil, internal.FileMeta{}, err
	}

	meta := internal.FileMeta{
		Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if meta.Filename == "" {
		meta.Filename = id
	}

	c.observe(OpFetchFile, nil, start)
	return resp.Body, meta, nil
}

// DeleteJob removes a job and its file on the backend
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, OpDeleteJob, http.MethodDelete, "/api/media/download/"+url.PathEscape(id), nil, nil, nil)
}

// Platforms returns the backend's platform catalog
func (c *Client) Platforms(ctx context.Context) ([]internal.PlatformInfo, error) {
	var out struct {
		SupportedPlatforms []internal.PlatformInfo `json:"supported_platforms"`
	}
	if err := c.do(ctx, OpPlatforms, http.MethodGet, "/api/platforms", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.SupportedPlatforms == nil {
		out.SupportedPlatforms = []internal.PlatformInfo{}
	}
	return out.SupportedPlatforms, nil
}

// Stats returns aggregate job counts
func (c *Client) Stats(ctx context.Context) (*internal.Stats, error) {
	var out internal.Stats
	if err := c.do(ctx, OpStats, http.MethodGet, "/api/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthStatus returns the credential status of every platform the backend knows
func (c *Client) AuthStatus(ctx context.Context) (internal.AuthStatus, error) {
	out := internal.AuthStatus{}
	if err := c.do(ctx, OpAuthStatus, http.MethodGet, "/api/auth/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConfigureAuth submits credentials and returns the backend's confirmation message
func (c *Client) ConfigureAuth(ctx context.Context, cred internal.Credential) (string, error) {
	if err := cred.Validate(); err != nil {
		return "", err
	}

	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, OpConfigureAuth, http.MethodPost, "/api/auth/configure", nil, internal.ToAuthConfig(cred), &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// DeleteAuth removes the stored credentials of a platform
func (c *Client) DeleteAuth(ctx context.Context, platform internal.Platform) error {
	return c.do(ctx, OpDeleteAuth, http.MethodDelete, "/api/auth/"+url.PathEscape(string(platform)), nil, nil, nil)
}

// CosplaySuggestions returns name completions for a partial query. Queries
// shorter than MinSuggestionQuery characters return nil without a request.
func (c *Client) CosplaySuggestions(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSuggestionQuery {
		c.metrics.ObserveRequest(OpCosplaySuggestions, metrics.OutcomeSkipped, 0)
		return nil, nil
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	path := "/api/cosplay/suggestions/" + url.PathEscape(query)
	if err := c.do(ctx, OpCosplaySuggestions, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out.Suggestions, nil
}

// CosplaySearch searches galleries. Empty Platforms means all, zero Limit means DefaultSearchLimit.
func (c *Client) CosplaySearch(ctx context.Context, search internal.CosplaySearch) ([]internal.CosplayResult, error) {
	search.Query = strings.TrimSpace(search.Query)
	if search.Query == "" {
		return nil, internal.NewValidationError("query", "search query cannot be empty")
	}
	if len(search.Platforms) == 0 {
		search.Platforms = []string{"all"}
	}
	if search.Limit <= 0 {
		search.Limit = DefaultSearchLimit
	}

	var out struct {
		Results []internal.CosplayResult `json:"results"`
	}
	if err := c.do(ctx, OpCosplaySearch, http.MethodPost, "/api/cosplay/search", nil, search, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []internal.CosplayResult{}
	}
	return out.Results, nil
}

// CosplayDownload queues the selected galleries with the given quality
func (c *Client) CosplayDownload(ctx context.Context, ids []string, quality string) (*internal.CosplayDownloadResult, error) {
	if len(ids) == 0 {
		return nil, internal.NewValidationError("cosplay_results", "select at least one gallery")
	}

	var out internal.CosplayDownloadResult
	body := internal.CosplayDownloadRequest{CosplayResults: ids, Quality: quality}
	if err := c.do(ctx, OpCosplayDownload, http.MethodPost, "/api/cosplay/download", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one JSON request and decodes a 2xx body into out when out is non-nil
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	defer func() { c.observe(op, err, start) }()

	resp, err := c.send(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internal.NewDecodeError(op, err).WithContext("path", path)
	}
	return nil
}

// send issues the request and turns transport failures and non-2xx answers into
// GatewayErrors. On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.http.NewRequest(ctx, method, target, reader)
	if err != nil {
		return nil, internal.NewTransportError(op, err).WithContext("path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		gwErr := internal.NewTransportError(op, err).WithContext("path", path)
		if utils.IsTimeout(err) {
			gwErr.WithSuggestion("The backend did not answer in time, try again or raise MEDIAFETCH_TIMEOUT")
		}
		return nil, gwErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, internal.NewBackendError(op, resp.StatusCode, ParseDetail(raw)).
			WithContext("path", path).
			WithContext("request_id", req.Header.Get(utils.RequestIDHeader))
	}

	return resp, nil
}

func (c *Client) observe(op string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveRequest(op, outcomeOf(err), time.Since(start))
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var gwErr *internal.GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case internal.KindTransport:
			return metrics.OutcomeTransport
		case internal.KindDecode:
			return metrics.OutcomeDecode
		}
	}
	return metrics.OutcomeBackend
}

// ParseDetail extracts the user-facing message from an error body. It accepts
// {"detail": "text"} and validation lists {"detail": [{"msg": "text"}, ...]}.
func ParseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil || params["filename"] == "" {
		return ""
	}
	return utils.SanitizeFilename(params["filename"])
}
