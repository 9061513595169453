// Package testbackend is an in-memory implementation of the media backend's
// REST contract, used as the test double for the gateway, session and CLI.
package testbackend

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mediafetch/internal"
	"mediafetch/utils"
)

// naiveLayout is how the backend serializes datetimes: no zone designator
const naiveLayout = "2006-01-02T15:04:05.000000"

// Request is one recorded call
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Body     []byte
}

// Failure overrides the response of one route
type Failure struct {
	Status int
	Detail string
	// RawBody is written verbatim instead of {"detail": ...} when set
	RawBody string
	// Drop closes the connection without a response
	Drop bool
	// Times limits how many calls fail; 0 means every call
	Times int
}

// JobStep is one scripted transition, applied on a later list or status call
type JobStep struct {
	Status       internal.JobStatus
	Progress     float64
	Filename     string
	Payload      []byte
	ErrorMessage string
}

type jobRecord struct {
	job     internal.Job
	payload []byte
}

// Backend holds all state behind the fake REST contract
type Backend struct {
	mu          sync.Mutex
	jobs        map[string]*jobRecord
	scripts     map[string][]JobStep
	auth        map[string]internal.AuthState
	results     []internal.CosplayResult
	suggestions []string
	failures    map[string]*Failure
	requests    []Request
	clock       time.Time

	router *gin.Engine
	server *httptest.Server
}

// New creates a backend with default auth status and suggestions
func New() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		jobs:     make(map[string]*jobRecord),
		scripts:  make(map[string][]JobStep),
		failures: make(map[string]*Failure),
		auth: map[string]internal.AuthState{
			"instagram": {Configured: false},
			"reddit":    {Configured: false},
			"youtube":   {Configured: true, Note: "YouTube works without authentication"},
		},
		suggestions: []string{"Dva Overwatch", "Dva Cheerleader", "Mercy Overwatch", "Tifa Lockhart", "2B Nier"},
		clock:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	b.router = b.setupRouter()
	return b
}

// Start serves a new backend over HTTP for the duration of the test
func Start(t testing.TB) *Backend {
	t.Helper()

	b := New()
	b.server = httptest.NewServer(b.router)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of a started backend
func (b *Backend) URL() string {
	if b.server == nil {
		return ""
	}
	return b.server.URL
}

// Handler exposes the router for callers that manage their own server
func (b *Backend) Handler() http.Handler {
	return b.router
}

// Close stops the HTTP server so further calls fail at the transport level
func (b *Backend) Close() {
	if b.server != nil {
		b.server.Close()
	}
}

// Requests returns a copy of every recorded call
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsTo returns the recorded calls to method and path
func (b *Backend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// CountPrefix counts recorded calls whose path starts with prefix
func (b *Backend) CountPrefix(prefix string) int {
	n := 0
	for _, r := range b.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests forgets recorded calls
func (b *Backend) ResetRequests() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

// Fail makes calls to the route pattern (gin syntax, e.g. "/api/media/status/:id") fail
func (b *Backend) Fail(method, route string, f Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := f
	b.failures[method+" "+route] = &copied
}

// ClearFailures removes every injected failure
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]*Failure)
}

// AddJob stores job as-is; a zero CreatedAt is filled from the backend clock
func (b *Backend) AddJob(job internal.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if job.CreatedAt.IsZero() {
		job.CreatedAt = internal.Timestamp{Time: b.tick()}
	}
	b.jobs[job.ID] = &jobRecord{job: job}
}

// Job returns the stored job
func (b *Backend) Job(id string) (internal.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.jobs[id]
	if !ok {
		return internal.Job{}, false
	}
	return rec.job, true
}

// JobCount returns the number of stored jobs
func (b *Backend) JobCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// Advance applies step to the job immediately
func (b *Backend) Advance(id string, step JobStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(id, step)
}

// Script queues steps that are applied one per list or status call
func (b *Backend) Script(id string, steps ...JobStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[id] = append(b.scripts[id], steps...)
}

// SetCosplayResults replaces the gallery catalog returned by searches
func (b *Backend) SetCosplayResults(results []internal.CosplayResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append([]internal.CosplayResult(nil), results...)
}

// SetAuth overrides the auth status of one platform
func (b *Backend) SetAuth(platform string, state internal.AuthState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auth[platform] = state
}

// tick advances the clock so creation order is strict; caller holds mu
func (b *Backend) tick() time.Time {
	b.clock = b.clock.Add(time.Second)
	return b.clock
}

// apply mutates a stored job; caller holds mu
func (b *Backend) apply(id string, step JobStep) {
	rec, ok := b.jobs[id]
	if !ok {
		return
	}

	rec.job.Status = step.Status
	rec.job.Progress = step.Progress
	if step.Filename != "" {
		rec.job.Filename = step.Filename
	}
	if step.Payload != nil {
		rec.payload = step.Payload
		size := int64(len(step.Payload))
		rec.job.FileSize = &size
	}
	if step.ErrorMessage != "" {
		rec.job.ErrorMessage = step.ErrorMessage
	}
	if step.Status.IsTerminal() {
		rec.job.CompletedAt = internal.Timestamp{Time: b.tick()}
	}
}

// runScripts pops one step per scripted job; caller holds mu
func (b *Backend) runScripts() {
	for id, steps := range b.scripts {
		if len(steps) == 0 {
			delete(b.scripts, id)
			continue
		}
		b.apply(id, steps[0])
		b.scripts[id] = steps[1:]
	}
}

func (b *Backend) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(b.recordRequest())
	router.Use(b.injectFailure())

	api := router.Group("/api")
	{
		api.GET("/health", b.health)

		media := api.Group("/media")
		{
			media.POST("/info", b.mediaInfo)
			media.POST("/download", b.startDownload)
			media.GET("/downloads", b.listDownloads)
			media.GET("/status/:id", b.downloadStatus)
			media.GET("/download/:id", b.downloadFile)
			media.DELETE("/download/:id", b.deleteDownload)
		}

		api.GET("/platforms", b.platforms)
		api.GET("/stats", b.stats)

		auth := api.Group("/auth")
		{
			auth.GET("/status", b.authStatus)
			auth.POST("/configure", b.configureAuth)
			auth.DELETE("/:platform", b.deleteAuth)
		}

		cosplay := api.Group("/cosplay")
		{
			cosplay.GET("/suggestions/:query", b.cosplaySuggestions)
			cosplay.POST("/search", b.cosplaySearch)
			cosplay.POST("/download", b.cosplayDownload)
		}
	}

	return router
}

func (b *Backend) recordRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			RawQuery: c.Request.URL.RawQuery,
			Body:     body,
		})
		b.mu.Unlock()

		c.Next()
	}
}

func (b *Backend) injectFailure() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()

		b.mu.Lock()
		f, ok := b.failures[key]
		var failure Failure
		if ok {
			failure = *f
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					delete(b.failures, key)
				}
			}
		}
		b.mu.Unlock()

		if !ok {
			c.Next()
			return
		}

		if failure.Drop {
			if conn, _, err := c.Writer.Hijack(); err == nil {
				conn.Close()
			}
			c.Abort()
			return
		}

		if failure.RawBody != "" {
			c.Data(failure.Status, "application/json", []byte(failure.RawBody))
			c.Abort()
			return
		}

		c.AbortWithStatusJSON(failure.Status, gin.H{"detail": failure.Detail})
	}
}

func detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}

func (b *Backend) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "Media backend is running"})
}

type urlBody struct {
	URL string `json:"url"`
}

func (b *Backend) mediaInfo(c *gin.Context) {
	var req urlBody
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		detail(c, http.StatusUnprocessableEntity, "url is required")
		return
	}

	platform := utils.Classify(req.URL)
	if platform == internal.PlatformUnknown {
		detail(c, http.StatusBadRequest, "Unsupported platform or invalid URL: unknown")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":      "Test media",
		"platform":   platform,
		"uploader":   "tester",
		"duration":   212,
		"view_count": 1000,
		"thumbnail":  "https://img.example.com/thumb.jpg",
	})
}

func (b *Backend) startDownload(c *gin.Context) {
	var req internal.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		detail(c, http.StatusUnprocessableEntity, "url is required")
		return
	}

	platform := utils.ResolvePlatform(req.URL, req.Platform)
	if platform == internal.PlatformUnknown {
		detail(c, http.StatusBadRequest, "Unsupported platform or invalid URL")
		return
	}

	b.mu.Lock()
	id := uuid.NewString()
	b.jobs[id] = &jobRecord{job: internal.Job{
		ID:        id,
		URL:       req.URL,
		Platform:  platform,
		Status:    internal.JobPending,
		Progress:  0.0,
		CreatedAt: internal.Timestamp{Time: b.tick()},
	}}
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"download_id": id, "status": "started", "platform": platform})
}

func (b *Backend) listDownloads(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			detail(c, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
	}
	status := c.Query("status")
	platform := c.Query("platform")

	b.mu.Lock()
	b.runScripts()
	jobs := make([]internal.Job, 0, len(b.jobs))
	for _, rec := range b.jobs {
		if status != "" && string(rec.job.Status) != status {
			continue
		}
		if platform != "" && string(rec.job.Platform) != platform {
			continue
		}
		jobs = append(jobs, rec.job)
	}
	b.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt.Time)
	})
	if limit >= 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	out := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, wireJob(job))
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) downloadStatus(c *gin.Context) {
	b.mu.Lock()
	b.runScripts()
	rec, ok := b.jobs[c.Param("id")]
	var job internal.Job
	if ok {
		job = rec.job
	}
	b.mu.Unlock()

	if !ok {
		detail(c, http.StatusNotFound, "Download not found")
		return
	}
	c.JSON(http.StatusOK, wireJob(job))
}

func (b *Backend) downloadFile(c *gin.Context) {
	b.mu.Lock()
	rec, ok := b.jobs[c.Param("id")]
	var job internal.Job
	var payload []byte
	if ok {
		job = rec.job
		payload = rec.payload
	}
	b.mu.Unlock()

	switch {
	case !ok:
		detail(c, http.StatusNotFound, "Download not found")
	case job.Status != internal.JobCompleted:
		detail(c, http.StatusBadRequest, "Download not completed")
	case job.Filename == "" || payload == nil:
		detail(c, http.StatusNotFound, "File information not found")
	default:
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, job.Filename))
		c.Data(http.StatusOK, "application/octet-stream", payload)
	}
}

func (b *Backend) deleteDownload(c *gin.Context) {
	id := c.Param("id")

	b.mu.Lock()
	_, ok := b.jobs[id]
	delete(b.jobs, id)
	delete(b.scripts, id)
	b.mu.Unlock()

	if !ok {
		detail(c, http.StatusNotFound, "Download not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Download deleted successfully"})
}

func (b *Backend) platforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported_platforms": []gin.H{
			{"name": "YouTube", "key": "youtube", "formats": []string{"mp4", "avi", "mkv", "webm", "mp3"}},
			{"name": "Instagram", "key": "instagram", "formats": []string{"jpg", "mp4"}},
			{"name": "Reddit", "key": "reddit", "formats": []string{"jpg", "png", "gif", "mp4", "webm"}},
			{"name": "Other (via yt-dlp)", "key": "other", "formats": []string{"mp4", "avi", "mkv", "webm", "mp3"}},
		},
	})
}

func (b *Backend) stats(c *gin.Context) {
	b.mu.Lock()
	var total, completed, failed, downloading int
	for _, rec := range b.jobs {
		total++
		switch rec.job.Status {
		case internal.JobCompleted:
			completed++
		case internal.JobFailed:
			failed++
		case internal.JobDownloading:
			downloading++
		}
	}
	b.mu.Unlock()

	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"total_downloads":       total,
		"completed_downloads":   completed,
		"failed_downloads":      failed,
		"currently_downloading": downloading,
		"success_rate":          rate,
	})
}

func (b *Backend) authStatus(c *gin.Context) {
	b.mu.Lock()
	out := make(gin.H, len(b.auth))
	for platform, state := range b.auth {
		entry := gin.H{"configured": state.Configured}
		switch platform {
		case "instagram":
			if state.Username != "" {
				entry["username"] = state.Username
			} else {
				entry["username"] = nil
			}
		case "reddit":
			entry["has_user_auth"] = state.HasUserAuth
		default:
			if state.Note != "" {
				entry["note"] = state.Note
			}
		}
		out[platform] = entry
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, out)
}

func (b *Backend) configureAuth(c *gin.Context) {
	var req internal.AuthConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	var state internal.AuthState
	switch req.Platform {
	case "instagram":
		if req.Username == "" || req.Password == "" {
			detail(c, http.StatusBadRequest, "Username and password required for Instagram")
			return
		}
		state = internal.AuthState{Configured: true, Username: req.Username}
	case "reddit":
		if req.ClientID == "" || req.ClientSecret == "" {
			detail(c, http.StatusBadRequest, "Client ID and secret required for Reddit")
			return
		}
		state = internal.AuthState{Configured: true, HasUserAuth: req.Username != "" && req.Password != ""}
	default:
		detail(c, http.StatusBadRequest, "Unsupported platform")
		return
	}

	b.mu.Lock()
	b.auth[req.Platform] = state
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s authentication configured", internal.ParsePlatform(req.Platform).DisplayName())})
}

func (b *Backend) deleteAuth(c *gin.Context) {
	platform := c.Param("platform")
	if platform != "instagram" && platform != "reddit" {
		detail(c, http.StatusBadRequest, "Unsupported platform")
		return
	}

	b.mu.Lock()
	b.auth[platform] = internal.AuthState{}
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s authentication removed", platform)})
}

func (b *Backend) cosplaySuggestions(c *gin.Context) {
	query := strings.ToLower(c.Param("query"))

	b.mu.Lock()
	suggestions := make([]string, 0)
	for _, s := range b.suggestions {
		if strings.Contains(strings.ToLower(s), query) {
			suggestions = append(suggestions, s)
		}
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (b *Backend) cosplaySearch(c *gin.Context) {
	var req internal.CosplaySearch
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		detail(c, http.StatusBadRequest, "Query is required")
		return
	}

	b.mu.Lock()
	results := append([]internal.CosplayResult(nil), b.results...)
	b.mu.Unlock()

	if len(results) == 0 {
		for i := 1; i <= 3; i++ {
			results = append(results, internal.CosplayResult{
				ID:           fmt.Sprintf("c%d", i),
				Name:         fmt.Sprintf("%s #%d", req.Query, i),
				Platform:     internal.PlatformCosplaytele,
				URL:          fmt.Sprintf("https://cosplaytele.com/gallery-%d", i),
				GalleryCount: 10 * i,
			})
		}
		b.SetCosplayResults(results)
	}

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (b *Backend) cosplayDownload(c *gin.Context) {
	var req internal.CosplayDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if len(req.CosplayResults) == 0 {
		detail(c, http.StatusBadRequest, "No cosplay results selected")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	byID := make(map[string]internal.CosplayResult, len(b.results))
	for _, r := range b.results {
		byID[r.ID] = r
	}

	for _, id := range req.CosplayResults {
		if _, ok := byID[id]; !ok {
			detail(c, http.StatusNotFound, "Cosplay result not found: "+id)
			return
		}
	}

	ids := make([]string, 0, len(req.CosplayResults))
	for _, resultID := range req.CosplayResults {
		result := byID[resultID]
		id := uuid.NewString()
		b.jobs[id] = &jobRecord{job: internal.Job{
			ID:           id,
			URL:          result.URL,
			Platform:     result.Platform,
			Status:       internal.JobPending,
			Title:        result.Name,
			CreatedAt:    internal.Timestamp{Time: b.tick()},
			CosplayQuery: result.Name,
		}}
		ids = append(ids, id)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("%d galleries queued for download", len(ids)),
		"download_ids": ids,
	})
}

// wireJob renders a job the way the backend does: naive datetimes and
// explicit nulls for absent optional fields
func wireJob(job internal.Job) gin.H {
	out := gin.H{
		"id":            job.ID,
		"url":           job.URL,
		"platform":      job.Platform,
		"status":        job.Status,
		"progress":      job.Progress,
		"filename":      nullable(job.Filename),
		"file_size":     nil,
		"title":         nullable(job.Title),
		"uploader":      nullable(job.Uploader),
		"error_message": nullable(job.ErrorMessage),
		"created_at":    job.CreatedAt.UTC().Format(naiveLayout),
		"completed_at":  nil,
	}
	if job.FileSize != nil {
		out["file_size"] = *job.FileSize
	}
	if !job.CompletedAt.IsZero() {
		out["completed_at"] = job.CompletedAt.UTC().Format(naiveLayout)
	}
	if job.CosplayQuery != "" {
		out["cosplay_query"] = job.CosplayQuery
	}
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
