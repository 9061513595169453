// Package session holds the download-session view-model: an immutable
// Snapshot replaced on every Event, the single-writer Store that applies
// events, and the Poller and Suggester tasks bound to a mounted view.
package session

import (
	"math"

	"mediafetch/internal"
)

// Action names a user-triggered operation guarded by the loading flag
type Action string

const (
	ActionFetchInfo        Action = "fetch_info"
	ActionStartDownload    Action = "start_download"
	ActionRefresh          Action = "refresh"
	ActionDeleteJob        Action = "delete_job"
	ActionLoadCatalog      Action = "load_catalog"
	ActionLoadAuth         Action = "load_auth"
	ActionSaveAuth         Action = "save_auth"
	ActionDeleteAuth       Action = "delete_auth"
	ActionSearch           Action = "search"
	ActionDownloadSelected Action = "download_selected"
)

// Snapshot is one immutable state of the session. Reduce never modifies a
// Snapshot in place; slices and maps are copied before they change.
type Snapshot struct {
	Jobs    []internal.Job
	Stats   *internal.Stats
	Catalog []internal.PlatformInfo
	Auth    internal.AuthStatus

	// Refreshes counts successful job list loads
	Refreshes uint64

	URL              string
	SelectedPlatform internal.Platform
	MediaInfo        *internal.MediaInfo
	Options          internal.DownloadOptions
	LastStarted      *internal.StartResult

	Query       string
	Suggestions []string
	Results     []internal.CosplayResult
	// Selection keeps result ids in the order they were picked
	Selection []string

	Loading map[Action]bool
	Notice  *internal.Notice
	Mounted bool
}

// Initial returns the state of a freshly created session
func Initial() Snapshot {
	return Snapshot{
		Jobs:    []internal.Job{},
		Auth:    internal.AuthStatus{},
		Options: internal.DefaultDownloadOptions(),
		Loading: map[Action]bool{},
	}
}

// IsLoading reports whether action is in flight
func (s Snapshot) IsLoading(action Action) bool {
	return s.Loading[action]
}

// Busy reports whether any action is in flight
func (s Snapshot) Busy() bool {
	for _, v := range s.Loading {
		if v {
			return true
		}
	}
	return false
}

// IsSelected reports whether a cosplay result is in the selection set
func (s Snapshot) IsSelected(id string) bool {
	return indexOf(s.Selection, id) >= 0
}

// Job returns the job with the given id from the latest list
func (s Snapshot) Job(id string) (internal.Job, bool) {
	for _, job := range s.Jobs {
		if job.ID == id {
			return job, true
		}
	}
	return internal.Job{}, false
}

// Counts tallies the latest job list by status. Unknown statuses are counted
// under their own key.
func (s Snapshot) Counts() map[internal.JobStatus]int {
	counts := map[internal.JobStatus]int{
		internal.JobPending:     0,
		internal.JobDownloading: 0,
		internal.JobCompleted:   0,
		internal.JobFailed:      0,
	}
	for _, job := range s.Jobs {
		counts[job.Status]++
	}
	return counts
}

// JobView is the display form of a job
type JobView struct {
	Job internal.Job
	// ShowProgress is true only while the job is downloading
	ShowProgress bool
	// Progress is clamped to 0..100 and zero whenever ShowProgress is false
	Progress float64
}

// ViewOf derives the display form of one job
func ViewOf(job internal.Job) JobView {
	view := JobView{Job: job}
	if job.Status == internal.JobDownloading {
		view.ShowProgress = true
		view.Progress = clampProgress(job.Progress)
	}
	return view
}

// Views derives the display form of every job, preserving backend order
func (s Snapshot) Views() []JobView {
	views := make([]JobView, len(s.Jobs))
	for i, job := range s.Jobs {
		views[i] = ViewOf(job)
	}
	return views
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
