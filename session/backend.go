package session

import (
	"context"

	"mediafetch/internal"
)

// Backend is the subset of the gateway used by a session
type Backend interface {
	MediaInfo(ctx context.Context, rawURL string) (*internal.MediaInfo, error)
	StartDownload(ctx context.Context, rawURL string, opts internal.DownloadOptions) (*internal.StartResult, error)
	ListJobs(ctx context.Context, opts internal.ListOptions) ([]internal.Job, error)
	GetJob(ctx context.Context, id string) (*internal.Job, error)
	DeleteJob(ctx context.Context, id string) error
	Platforms(ctx context.Context) ([]internal.PlatformInfo, error)
	Stats(ctx context.Context) (*internal.Stats, error)
	AuthStatus(ctx context.Context) (internal.AuthStatus, error)
	ConfigureAuth(ctx context.Context, cred internal.Credential) (string, error)
	DeleteAuth(ctx context.Context, platform internal.Platform) error
	CosplaySuggestions(ctx context.Context, query string) ([]string, error)
	CosplaySearch(ctx context.Context, search internal.CosplaySearch) ([]internal.CosplayResult, error)
	CosplayDownload(ctx context.Context, ids []string, quality string) (*internal.CosplayDownloadResult, error)
}
