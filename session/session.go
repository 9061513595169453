package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mediafetch/internal"
	"mediafetch/metrics"
	"mediafetch/utils"
)

// DefaultSearchLimit is the result limit of a cosplay search
const DefaultSearchLimit = 20

// Options configures a Session
type Options struct {
	PollInterval    time.Duration
	SuggestDebounce time.Duration
	SearchLimit     int
	Metrics         *metrics.Collector
	// Notifier, when set, receives every notice the session produces
	Notifier internal.Notifier
}

// OptionsFromConfig maps the application config onto session options
func OptionsFromConfig(cfg *internal.Config, m *metrics.Collector) Options {
	return Options{
		PollInterval:    cfg.PollInterval,
		SuggestDebounce: cfg.SuggestDebounce,
		SearchLimit:     cfg.SearchLimit,
		Metrics:         m,
	}
}

// Session is the controller of one mounted view. Every user action validates
// its input, guards against a duplicate in-flight submission, calls the
// backend once and dispatches the outcome into the store.
type Session struct {
	backend   Backend
	store     *Store
	poller    *Poller
	suggester *Suggester
	validator *utils.URLValidator
	opts      Options

	mu       sync.Mutex
	inflight map[Action]bool
	mounted  bool
}

// New creates an unmounted session
func New(backend Backend, opts Options) *Session {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.SuggestDebounce == 0 {
		opts.SuggestDebounce = DefaultSuggestDebounce
	}

	store := NewStore(Initial())
	return &Session{
		backend:   backend,
		store:     store,
		poller:    NewPoller(backend, store, opts.PollInterval, opts.Metrics),
		suggester: NewSuggester(backend, store, opts.SuggestDebounce),
		validator: utils.NewURLValidator(),
		opts:      opts,
		inflight:  make(map[Action]bool),
	}
}

// Store exposes the session's store for subscribers
func (s *Session) Store() *Store {
	return s.store
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// Mount loads the platform catalog and auth status once and starts polling.
// Catalog and auth failures are logged; the view still mounts.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.store.Closed() {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.mu.Unlock()

	s.store.Dispatch(MountChanged{Mounted: true})
	s.poller.Start(ctx)

	if err := s.LoadCatalog(ctx); err != nil {
		internal.LogWarn("%s", internal.UserMessage("load platforms", err))
	}
	if err := s.LoadAuth(ctx); err != nil {
		internal.LogWarn("%s", internal.UserMessage("load auth status", err))
	}
	return nil
}

// Unmount stops the poller and the suggestion timer and closes the store.
// Results of requests still in flight are discarded.
func (s *Session) Unmount() {
	s.poller.Stop()
	s.suggester.Stop()
	s.store.Dispatch(MountChanged{Mounted: false})
	s.store.Close()

	s.mu.Lock()
	s.mounted = false
	s.mu.Unlock()
}

// SetURL records a keystroke in the URL field
func (s *Session) SetURL(rawURL string) {
	s.store.Dispatch(URLChanged{URL: rawURL})
}

// SetOptions replaces the download options
func (s *Session) SetOptions(opts internal.DownloadOptions) {
	s.store.Dispatch(OptionsChanged{Options: opts})
}

// FetchInfo requests metadata for the current URL
func (s *Session) FetchInfo(ctx context.Context) (*internal.MediaInfo, error) {
	rawURL := strings.TrimSpace(s.store.Snapshot().URL)
	if _, err := s.validator.ValidateURL(rawURL); err != nil {
		return nil, s.fail("Fetch media info", err)
	}

	done, err := s.begin(ActionFetchInfo)
	if err != nil {
		return nil, err
	}
	defer done()

	s.store.Dispatch(URLSubmitted{URL: rawURL})
	info, err := s.backend.MediaInfo(ctx, rawURL)
	if err != nil {
		return nil, s.fail("Fetch media info", err)
	}

	s.store.Dispatch(MediaInfoLoaded{Info: *info})
	return info, nil
}

// StartDownload submits the current URL with the current options
func (s *Session) StartDownload(ctx context.Context) (*internal.StartResult, error) {
	snap := s.store.Snapshot()
	rawURL := strings.TrimSpace(snap.URL)
	if _, err := s.validator.ValidateURL(rawURL); err != nil {
		return nil, s.fail("Start download", err)
	}

	done, err := s.begin(ActionStartDownload)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := s.backend.StartDownload(ctx, rawURL, snap.Options)
	if err != nil {
		return nil, s.fail("Start download", err)
	}

	s.emit(DownloadStarted{Result: *result})
	s.refreshJobs(ctx)
	return result, nil
}

// Refresh re-fetches the job list and stats outside the poll schedule
func (s *Session) Refresh(ctx context.Context) error {
	done, err := s.begin(ActionRefresh)
	if err != nil {
		return err
	}
	defer done()

	if err := s.poller.Tick(ctx); err != nil {
		return s.fail("Refresh", err)
	}
	return nil
}

// DeleteJob asks the backend to remove a job. The list is re-fetched only
// when the backend confirmed the delete.
func (s *Session) DeleteJob(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.fail("Delete download", internal.NewValidationError("id", "download id cannot be empty"))
	}

	done, err := s.begin(ActionDeleteJob)
	if err != nil {
		return err
	}
	defer done()

	if err := s.backend.DeleteJob(ctx, id); err != nil {
		return s.fail("Delete download", err)
	}

	s.store.Dispatch(JobDeleted{ID: id})
	s.refreshJobs(ctx)
	return nil
}

// LoadCatalog fetches the supported platforms
func (s *Session) LoadCatalog(ctx context.Context) error {
	done, err := s.begin(ActionLoadCatalog)
	if err != nil {
		return err
	}
	defer done()

	platforms, err := s.backend.Platforms(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(CatalogLoaded{Platforms: platforms})
	return nil
}

// LoadAuth fetches the credential status map
func (s *Session) LoadAuth(ctx context.Context) error {
	done, err := s.begin(ActionLoadAuth)
	if err != nil {
		return err
	}
	defer done()

	status, err := s.backend.AuthStatus(ctx)
	if err != nil {
		return err
	}
	s.store.Dispatch(AuthLoaded{Status: status})
	return nil
}

// SaveAuth submits credentials for platform and refreshes the status map
func (s *Session) SaveAuth(ctx context.Context, platform internal.Platform, fields internal.CredentialFields) (string, error) {
	cred, err := internal.NewCredential(platform, fields)
	if err != nil {
		return "", s.fail("Configure authentication", err)
	}

	done, err := s.begin(ActionSaveAuth)
	if err != nil {
		return "", err
	}
	defer done()

	msg, err := s.backend.ConfigureAuth(ctx, cred)
	if err != nil {
		return "", s.fail("Configure authentication", err)
	}

	s.emit(AuthSaved{Platform: platform, Message: msg})
	s.refreshAuth(ctx)
	return msg, nil
}

// DeleteAuth removes the credentials of platform and refreshes the status map
func (s *Session) DeleteAuth(ctx context.Context, platform internal.Platform) error {
	if internal.ProfileFor(platform).Auth == internal.AuthNone {
		err := internal.NewValidationErrorWithValue("platform",
			fmt.Sprintf("%s has no stored credentials", platform.DisplayName()), string(platform))
		return s.fail("Delete authentication", err)
	}

	done, err := s.begin(ActionDeleteAuth)
	if err != nil {
		return err
	}
	defer done()

	if err := s.backend.DeleteAuth(ctx, platform); err != nil {
		return s.fail("Delete authentication", err)
	}

	s.emit(AuthDeleted{Platform: platform})
	s.refreshAuth(ctx)
	return nil
}

// SetQuery records a keystroke in the cosplay search field and schedules suggestions
func (s *Session) SetQuery(query string) {
	s.store.Dispatch(QueryChanged{Query: query})
	s.suggester.Update(query)
}

// Search runs a cosplay search for the current query across all platforms
func (s *Session) Search(ctx context.Context) ([]internal.CosplayResult, error) {
	query := strings.TrimSpace(s.store.Snapshot().Query)
	if query == "" {
		return nil, s.fail("Cosplay search", internal.NewValidationError("query", "enter a cosplay name"))
	}

	done, err := s.begin(ActionSearch)
	if err != nil {
		return nil, err
	}
	defer done()

	results, err := s.backend.CosplaySearch(ctx, internal.CosplaySearch{
		Query:     query,
		Platforms: []string{"all"},
		Limit:     s.opts.SearchLimit,
	})
	if err != nil {
		return nil, s.fail("Cosplay search", err)
	}

	s.store.Dispatch(ResultsLoaded{Results: results})
	return results, nil
}

// ToggleSelection adds or removes a search result from the selection
func (s *Session) ToggleSelection(id string) {
	s.store.Dispatch(SelectionToggled{ID: id})
}

// DownloadSelected queues every selected result with the current quality.
// On success the selection, results and query are cleared.
func (s *Session) DownloadSelected(ctx context.Context) (*internal.CosplayDownloadResult, error) {
	snap := s.store.Snapshot()
	if len(snap.Selection) == 0 {
		return nil, s.fail("Cosplay download", internal.NewValidationError("selection", "select at least one gallery"))
	}

	done, err := s.begin(ActionDownloadSelected)
	if err != nil {
		return nil, err
	}
	defer done()

	ids := append([]string{}, snap.Selection...)
	result, err := s.backend.CosplayDownload(ctx, ids, snap.Options.Quality)
	if err != nil {
		return nil, s.fail("Cosplay download", err)
	}

	s.emit(BulkQueued{Count: len(ids), Result: *result})
	s.refreshJobs(ctx)
	return result, nil
}

// AwaitTerminal blocks until the job reaches completed or failed in a
// polled snapshot. The session must be mounted for snapshots to arrive.
// A job missing from a freshly loaded list is looked up on its own, so a job
// outside the backend's list window is still followed. A job the backend no
// longer knows returns ErrJobRemoved.
func (s *Session) AwaitTerminal(ctx context.Context, id string) (internal.Job, error) {
	updates, cancel := s.store.Subscribe()
	defer cancel()

	snap := s.store.Snapshot()
	if job, ok := snap.Job(id); ok && job.Status.IsTerminal() {
		return job, nil
	}
	checked := snap.Refreshes

	for {
		select {
		case <-ctx.Done():
			return internal.Job{}, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return internal.Job{}, ErrClosed
			}
			if job, found := snap.Job(id); found {
				if job.Status.IsTerminal() {
					return job, nil
				}
				continue
			}
			if snap.Refreshes == checked {
				continue
			}
			checked = snap.Refreshes

			job, err := s.LookupJob(ctx, snap, id)
			switch {
			case errors.Is(err, ErrJobRemoved):
				return internal.Job{}, err
			case err != nil:
				internal.LogWarn("%s", internal.UserMessage("Get download status", err))
			case job.Status.IsTerminal():
				return job, nil
			}
		}
	}
}

// LookupJob returns the job from snap when it is listed there, otherwise
// from the backend's status call. A 404 is reported as ErrJobRemoved.
func (s *Session) LookupJob(ctx context.Context, snap Snapshot, id string) (internal.Job, error) {
	if job, ok := snap.Job(id); ok {
		return job, nil
	}

	job, err := s.backend.GetJob(ctx, id)
	if err != nil {
		var gwErr *internal.GatewayError
		if errors.As(err, &gwErr) && gwErr.IsNotFound() {
			return internal.Job{}, ErrJobRemoved
		}
		return internal.Job{}, err
	}
	return *job, nil
}

// begin sets the loading flag of action, or returns ErrBusy if it is already set
func (s *Session) begin(action Action) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Closed() {
		return nil, ErrClosed
	}
	if s.inflight[action] {
		return nil, ErrBusy
	}
	s.inflight[action] = true
	s.store.Dispatch(ActionStarted{Action: action})

	return func() {
		s.mu.Lock()
		delete(s.inflight, action)
		s.mu.Unlock()
		s.store.Dispatch(ActionFinished{Action: action})
	}, nil
}

// fail turns err into an error notice and returns it
func (s *Session) fail(action string, err error) error {
	var valErr *internal.ValidationError
	if errors.As(err, &valErr) {
		internal.LogValidationError(valErr)
	} else {
		internal.LogGatewayError(err)
	}
	s.emit(Notified{Notice: internal.Notice{Level: internal.NoticeError, Message: internal.UserMessage(action, err)}})
	return err
}

// emit dispatches e and forwards the notice it produced, if any
func (s *Session) emit(e Event) {
	before := s.store.Snapshot().Notice
	if !s.store.Dispatch(e) {
		return
	}
	after := s.store.Snapshot().Notice
	if s.opts.Notifier != nil && after != nil && after != before {
		s.opts.Notifier.Notify(*after)
	}
}

func (s *Session) refreshJobs(ctx context.Context) {
	jobs, err := s.backend.ListJobs(ctx, internal.ListOptions{})
	if err != nil {
		internal.LogWarn("%s", internal.UserMessage("list downloads", err))
		return
	}
	s.store.Dispatch(JobsLoaded{Jobs: jobs})
}

func (s *Session) refreshAuth(ctx context.Context) {
	if err := s.LoadAuth(ctx); err != nil {
		internal.LogWarn("%s", internal.UserMessage("load auth status", err))
	}
}
