package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mediafetch/internal"
	"mediafetch/session"
	"mediafetch/utils"
)

func (a *app) newWatchCmd() *cobra.Command {
	var interval time.Duration
	var untilIdle bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live board of every download job",
		Long: `Show a live board of every download job.

The job list and statistics are refreshed every poll interval until the
command is interrupted. With --until-idle it exits once no job is pending or
downloading.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			opts := session.OptionsFromConfig(a.config, a.metrics)
			if interval > 0 {
				opts.PollInterval = interval
			}
			s := session.New(client, opts)
			defer s.Unmount()

			if err := s.Mount(ctx); err != nil {
				return err
			}
			return a.runBoard(ctx, s, cmd.OutOrStdout(), untilIdle, nil)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh period (default from MEDIAFETCH_POLL_INTERVAL)")
	cmd.Flags().BoolVar(&untilIdle, "until-idle", false, "Exit once no job is pending or downloading")
	return cmd
}

// runBoard redraws the board on every snapshot. When untilIdle is set it
// returns once a snapshot holds no active job. A non-nil only set limits the
// board and the idle check to those job ids.
func (a *app) runBoard(ctx context.Context, s *session.Session, out io.Writer, untilIdle bool, only map[string]bool) error {
	updates, stop := s.Store().Subscribe()
	defer stop()

	var watched *watchSet
	if only != nil {
		watched = newWatchSet(only)
	}

	board := utils.NewProgressBoard(out, isTerminal(out))
	render := func(snap session.Snapshot) (bool, error) {
		if snap.Stats == nil && len(snap.Jobs) == 0 {
			// nothing polled yet
			return false, nil
		}

		jobs := snap.Jobs
		if watched != nil {
			jobs = watched.jobs(ctx, s, snap)
		}
		views := make([]session.JobView, len(jobs))
		for i, job := range jobs {
			views[i] = session.ViewOf(job)
		}

		if !a.config.QuietMode {
			if err := board.Draw(boardRows(views), boardSummary(snap)); err != nil {
				return false, err
			}
		}
		if !untilIdle {
			return false, nil
		}
		if watched != nil {
			return watched.idle(jobs), nil
		}
		return allTerminal(jobs), nil
	}

	if done, err := render(s.Snapshot()); done || err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil

		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if done, err := render(snap); done || err != nil {
				return err
			}
		}
	}
}

// watchSet follows a fixed set of job ids. Ids missing from a freshly loaded
// list are looked up one by one; ids the backend no longer knows are gone.
type watchSet struct {
	ids       map[string]bool
	offList   map[string]internal.Job
	gone      map[string]bool
	refreshes uint64
}

func newWatchSet(ids map[string]bool) *watchSet {
	return &watchSet{
		ids:     ids,
		offList: make(map[string]internal.Job),
		gone:    make(map[string]bool),
	}
}

// jobs returns the watched jobs of snap followed by the ones only known
// through a status lookup, ordered by id
func (w *watchSet) jobs(ctx context.Context, s *session.Session, snap session.Snapshot) []internal.Job {
	listed := filterJobs(snap.Jobs, w.ids)
	present := make(map[string]bool, len(listed))
	for _, job := range listed {
		present[job.ID] = true
	}

	if snap.Refreshes != w.refreshes {
		w.refreshes = snap.Refreshes
		for id := range w.ids {
			if present[id] || w.gone[id] {
				delete(w.offList, id)
				continue
			}
			if job, ok := w.offList[id]; ok && job.Status.IsTerminal() {
				continue
			}
			job, err := s.LookupJob(ctx, snap, id)
			switch {
			case errors.Is(err, session.ErrJobRemoved):
				w.gone[id] = true
				delete(w.offList, id)
			case err != nil:
				internal.LogWarn("%s", internal.UserMessage("Get download status", err))
			default:
				w.offList[id] = job
			}
		}
	}

	extra := make([]internal.Job, 0, len(w.offList))
	for id, job := range w.offList {
		if !present[id] {
			extra = append(extra, job)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })
	return append(listed, extra...)
}

// idle reports whether every watched id is known and terminal or gone
func (w *watchSet) idle(jobs []internal.Job) bool {
	if len(jobs)+len(w.gone) < len(w.ids) {
		return false
	}
	return allTerminal(jobs)
}

func filterJobs(jobs []internal.Job, only map[string]bool) []internal.Job {
	out := make([]internal.Job, 0, len(only))
	for _, job := range jobs {
		if only[job.ID] {
			out = append(out, job)
		}
	}
	return out
}

func allTerminal(jobs []internal.Job) bool {
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func boardSummary(snap session.Snapshot) string {
	summary := countsSummary(snap.Counts())
	if snap.Stats != nil {
		summary += fmt.Sprintf("  |  success rate %.1f%%", snap.Stats.SuccessRate)
	}
	return summary
}
