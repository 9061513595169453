package session

import (
	"fmt"
	"strings"

	"mediafetch/internal"
	"mediafetch/utils"
)

// Event is one state transition input. Only the types in this file implement it.
type Event interface {
	event()
}

// URLChanged is a keystroke in the URL field; the platform is re-classified live
type URLChanged struct{ URL string }

// URLSubmitted marks a media info request for the current URL
type URLSubmitted struct{ URL string }

// MediaInfoLoaded carries the metadata of the submitted URL
type MediaInfoLoaded struct{ Info internal.MediaInfo }

// DownloadStarted carries the backend's answer to a start request
type DownloadStarted struct{ Result internal.StartResult }

// PollTicked carries one poll's results. A nil field was not refreshed this tick.
type PollTicked struct {
	Jobs  []internal.Job
	Stats *internal.Stats
}

// JobsLoaded replaces the job list
type JobsLoaded struct{ Jobs []internal.Job }

// StatsLoaded replaces the stats snapshot
type StatsLoaded struct{ Stats internal.Stats }

// CatalogLoaded replaces the platform catalog
type CatalogLoaded struct{ Platforms []internal.PlatformInfo }

// AuthLoaded replaces the auth status map
type AuthLoaded struct{ Status internal.AuthStatus }

// AuthSaved reports accepted credentials
type AuthSaved struct {
	Platform internal.Platform
	Message  string
}

// AuthDeleted reports removed credentials
type AuthDeleted struct{ Platform internal.Platform }

// JobDeleted reports a backend-confirmed delete. The next list is authoritative.
type JobDeleted struct{ ID string }

// QueryChanged is a keystroke in the cosplay search field
type QueryChanged struct{ Query string }

// SuggestionsLoaded carries completions for Query; stale ones are dropped
type SuggestionsLoaded struct {
	Query       string
	Suggestions []string
}

// ResultsLoaded replaces the cosplay search results
type ResultsLoaded struct{ Results []internal.CosplayResult }

// SelectionToggled adds or removes one result id from the selection
type SelectionToggled struct{ ID string }

// BulkQueued reports queued cosplay downloads
type BulkQueued struct {
	Count  int
	Result internal.CosplayDownloadResult
}

// ActionStarted sets the loading flag of an action
type ActionStarted struct{ Action Action }

// ActionFinished clears the loading flag of an action
type ActionFinished struct{ Action Action }

// Notified replaces the current notice
type Notified struct{ Notice internal.Notice }

// OptionsChanged replaces the download options
type OptionsChanged struct{ Options internal.DownloadOptions }

// MountChanged records the view lifetime
type MountChanged struct{ Mounted bool }

func (URLChanged) event()        {}
func (URLSubmitted) event()      {}
func (MediaInfoLoaded) event()   {}
func (DownloadStarted) event()   {}
func (PollTicked) event()        {}
func (JobsLoaded) event()        {}
func (StatsLoaded) event()       {}
func (CatalogLoaded) event()     {}
func (AuthLoaded) event()        {}
func (AuthSaved) event()         {}
func (AuthDeleted) event()       {}
func (JobDeleted) event()        {}
func (QueryChanged) event()      {}
func (SuggestionsLoaded) event() {}
func (ResultsLoaded) event()     {}
func (SelectionToggled) event()  {}
func (BulkQueued) event()        {}
func (ActionStarted) event()     {}
func (ActionFinished) event()    {}
func (Notified) event()          {}
func (OptionsChanged) event()    {}
func (MountChanged) event()      {}

// Reduce returns the snapshot that follows s after e. It is pure: s and
// everything it references are left untouched.
func Reduce(s Snapshot, e Event) Snapshot {
	switch ev := e.(type) {
	case URLChanged:
		s.URL = ev.URL
		s.SelectedPlatform = classifyInput(ev.URL)

	case URLSubmitted:
		s.URL = ev.URL
		s.SelectedPlatform = classifyInput(ev.URL)
		s.MediaInfo = nil

	case MediaInfoLoaded:
		info := ev.Info
		s.MediaInfo = &info

	case DownloadStarted:
		result := ev.Result
		s.LastStarted = &result
		s.URL = ""
		s.MediaInfo = nil
		s.SelectedPlatform = ""
		s.Notice = &internal.Notice{
			Level:   internal.NoticeInfo,
			Message: fmt.Sprintf("Download started! Platform: %s, ID: %s", result.Platform, result.DownloadID),
		}

	case PollTicked:
		if ev.Jobs != nil {
			s.Jobs = copyJobs(ev.Jobs)
			s.Refreshes++
		}
		if ev.Stats != nil {
			stats := *ev.Stats
			s.Stats = &stats
		}

	case JobsLoaded:
		s.Jobs = copyJobs(ev.Jobs)
		s.Refreshes++

	case StatsLoaded:
		stats := ev.Stats
		s.Stats = &stats

	case CatalogLoaded:
		s.Catalog = append([]internal.PlatformInfo{}, ev.Platforms...)

	case AuthLoaded:
		s.Auth = make(internal.AuthStatus, len(ev.Status))
		for k, v := range ev.Status {
			s.Auth[k] = v
		}

	case AuthSaved:
		msg := ev.Message
		if msg == "" {
			msg = fmt.Sprintf("%s authentication configured", ev.Platform.DisplayName())
		}
		s.Notice = &internal.Notice{Level: internal.NoticeInfo, Message: fmt.Sprintf("Configuration %s: %s", ev.Platform, msg)}

	case AuthDeleted:
		s.Notice = &internal.Notice{Level: internal.NoticeInfo, Message: fmt.Sprintf("Authentication %s removed", ev.Platform)}

	case JobDeleted:
		jobs := make([]internal.Job, 0, len(s.Jobs))
		for _, job := range s.Jobs {
			if job.ID != ev.ID {
				jobs = append(jobs, job)
			}
		}
		s.Jobs = jobs

	case QueryChanged:
		s.Query = ev.Query
		if len([]rune(strings.TrimSpace(ev.Query))) < 2 {
			s.Suggestions = nil
		}

	case SuggestionsLoaded:
		if ev.Query == strings.TrimSpace(s.Query) {
			s.Suggestions = append([]string{}, ev.Suggestions...)
		}

	case ResultsLoaded:
		s.Results = append([]internal.CosplayResult{}, ev.Results...)
		s.Suggestions = nil

	case SelectionToggled:
		selection := make([]string, 0, len(s.Selection)+1)
		if i := indexOf(s.Selection, ev.ID); i >= 0 {
			selection = append(selection, s.Selection[:i]...)
			selection = append(selection, s.Selection[i+1:]...)
		} else {
			selection = append(selection, s.Selection...)
			selection = append(selection, ev.ID)
		}
		s.Selection = selection

	case BulkQueued:
		s.Selection = nil
		s.Results = nil
		s.Query = ""
		s.Suggestions = nil
		s.Notice = &internal.Notice{
			Level:   internal.NoticeInfo,
			Message: fmt.Sprintf("%d cosplay galleries added to downloads", ev.Count),
		}

	case ActionStarted:
		s.Loading = withFlag(s.Loading, ev.Action, true)

	case ActionFinished:
		s.Loading = withFlag(s.Loading, ev.Action, false)

	case Notified:
		notice := ev.Notice
		s.Notice = &notice

	case OptionsChanged:
		s.Options = ev.Options

	case MountChanged:
		s.Mounted = ev.Mounted
	}
	return s
}

func classifyInput(raw string) internal.Platform {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return utils.Classify(raw)
}

func copyJobs(jobs []internal.Job) []internal.Job {
	return append([]internal.Job{}, jobs...)
}

func withFlag(flags map[Action]bool, action Action, on bool) map[Action]bool {
	out := make(map[Action]bool, len(flags)+1)
	for k, v := range flags {
		if v {
			out[k] = true
		}
	}
	if on {
		out[action] = true
	} else {
		delete(out, action)
	}
	return out
}
