package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// JobStatus is the backend-owned lifecycle state of a download job
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobDownloading JobStatus = "downloading"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
)

// Known reports whether the status is one of the four documented states
func (s JobStatus) Known() bool {
	switch s {
	case JobPending, JobDownloading, JobCompleted, JobFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Timestamp decodes backend datetimes, which may lack a zone designator
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts RFC3339, naive ISO-8601 (read as UTC), null and ""
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON writes RFC3339 or null for the zero value
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Job is one backend-reported download snapshot. The client never mutates it.
type Job struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Platform     Platform  `json:"platform,omitempty"`
	Status       JobStatus `json:"status"`
	Progress     float64   `json:"progress"`
	Filename     string    `json:"filename,omitempty"`
	FileSize     *int64    `json:"file_size,omitempty"`
	Title        string    `json:"title,omitempty"`
	Uploader     string    `json:"uploader,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    Timestamp `json:"created_at"`
	CompletedAt  Timestamp `json:"completed_at"`
	CosplayQuery string    `json:"cosplay_query,omitempty"`
}

// DownloadOptions are the user-selected options for a new download
type DownloadOptions struct {
	Quality      string `json:"quality"`
	AudioOnly    bool   `json:"audio_only"`
	OutputFormat string `json:"output_format"`
	Platform     string `json:"platform"`
}

// DefaultDownloadOptions returns best/video/mp4 with platform auto-detection
func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{
		Quality:      "best",
		AudioOnly:    false,
		OutputFormat: "mp4",
		Platform:     PlatformAuto,
	}
}

// DownloadRequest is the body of POST /api/media/download
type DownloadRequest struct {
	URL string `json:"url"`
	DownloadOptions
}

// StartResult is the backend answer to a download request
type StartResult struct {
	DownloadID string   `json:"download_id"`
	Status     string   `json:"status,omitempty"`
	Platform   Platform `json:"platform"`
}

// MediaInfo is the metadata snapshot returned by POST /api/media/info
type MediaInfo struct {
	Title      string   `json:"title"`
	Platform   Platform `json:"platform"`
	Uploader   string   `json:"uploader,omitempty"`
	Duration   int      `json:"duration,omitempty"`
	ViewCount  int64    `json:"view_count,omitempty"`
	UploadDate string   `json:"upload_date,omitempty"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	MediaType  string   `json:"media_type,omitempty"`
	MediaCount int      `json:"media_count,omitempty"`
}

// PlatformInfo is one entry of GET /api/platforms
type PlatformInfo struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Formats []string `json:"formats,omitempty"`
}

// Stats is the aggregate returned by GET /api/stats
type Stats struct {
	Total       int     `json:"total_downloads"`
	Completed   int     `json:"completed_downloads"`
	Failed      int     `json:"failed_downloads"`
	Downloading int     `json:"currently_downloading"`
	SuccessRate float64 `json:"success_rate"`
}

// AuthState is the non-secret status of one platform's credentials
type AuthState struct {
	Configured  bool   `json:"configured"`
	Username    string `json:"username,omitempty"`
	HasUserAuth bool   `json:"has_user_auth,omitempty"`
	Note        string `json:"note,omitempty"`
}

// AuthStatus maps platform keys to their credential state
type AuthStatus map[string]AuthState

// ListOptions filters GET /api/media/downloads
type ListOptions struct {
	Limit    int
	Status   JobStatus
	Platform Platform
}

// CosplaySearch is the body of POST /api/cosplay/search
type CosplaySearch struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
	Limit     int      `json:"limit"`
}

// CosplayResult is one gallery found by a cosplay search
type CosplayResult struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Platform     Platform `json:"platform"`
	URL          string   `json:"url,omitempty"`
	GalleryCount int      `json:"gallery_count,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// CosplayDownloadRequest is the body of POST /api/cosplay/download
type CosplayDownloadRequest struct {
	CosplayResults []string `json:"cosplay_results"`
	Quality        string   `json:"quality"`
}

// CosplayDownloadResult is the backend answer to a bulk download
type CosplayDownloadResult struct {
	Message     string   `json:"message,omitempty"`
	DownloadIDs []string `json:"download_ids,omitempty"`
}

// FileMeta describes a completed job's payload as announced by the backend
type FileMeta struct {
	Filename    string
	ContentType string
	Size        int64
}
