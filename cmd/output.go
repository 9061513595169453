package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"mediafetch/internal"
	"mediafetch/session"
	"mediafetch/utils"
)

// actionError reports a failed user action with the message shown in notices
type actionError struct {
	action string
	err    error
}

func (e *actionError) Error() string {
	return internal.UserMessage(e.action, e.err)
}

func (e *actionError) Unwrap() error {
	return e.err
}

// failed logs err and wraps it for the command's return value. Errors coming
// out of a session are already logged there.
func failed(action string, err error) error {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrClosed) {
		return err
	}
	var valErr *internal.ValidationError
	if errors.As(err, &valErr) {
		internal.LogValidationError(valErr)
	} else {
		internal.LogGatewayError(err)
	}
	return &actionError{action: action, err: err}
}

// sessionFailed wraps an error returned by a session action
func sessionFailed(action string, err error) error {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrClosed) {
		return err
	}
	return &actionError{action: action, err: err}
}

// printNotices prints informational session notices to out. Error notices
// surface as the command's error instead.
func printNotices(out io.Writer) internal.Notifier {
	return internal.NotifierFunc(func(n internal.Notice) {
		if n.Level == internal.NoticeInfo {
			fmt.Fprintf(out, "✅ %s\n", n.Message)
		}
	})
}

func boardRows(views []session.JobView) []utils.BoardRow {
	rows := make([]utils.BoardRow, 0, len(views))
	for _, v := range views {
		row := utils.BoardRow{
			ID:           v.Job.ID,
			Label:        jobLabel(v.Job),
			Status:       string(v.Job.Status),
			Progress:     v.Progress,
			ShowProgress: v.ShowProgress,
		}
		switch v.Job.Status {
		case internal.JobFailed:
			row.Detail = v.Job.ErrorMessage
		case internal.JobCompleted:
			row.Detail = v.Job.Filename
		}
		rows = append(rows, row)
	}
	return rows
}

func jobLabel(job internal.Job) string {
	switch {
	case job.Title != "":
		return job.Title
	case job.Filename != "":
		return job.Filename
	default:
		return job.URL
	}
}

func countsSummary(counts map[internal.JobStatus]int) string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s: %d", status, counts[internal.JobStatus(status)]))
	}
	return strings.Join(parts, "  ")
}

func printJob(out io.Writer, job internal.Job) {
	view := session.ViewOf(job)

	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "URL:       %s\n", job.URL)
	fmt.Fprintf(out, "Platform:  %s\n", job.Platform.DisplayName())
	fmt.Fprintf(out, "Status:    %s\n", job.Status)
	if view.ShowProgress {
		fmt.Fprintf(out, "Progress:  %.0f%%\n", view.Progress)
	}
	if job.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", job.Title)
	}
	if job.Filename != "" {
		fmt.Fprintf(out, "File:      %s\n", job.Filename)
	}
	if job.FileSize != nil {
		fmt.Fprintf(out, "Size:      %s\n", utils.FormatBytes(*job.FileSize))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
	if !job.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !job.CompletedAt.IsZero() {
		fmt.Fprintf(out, "Completed: %s\n", job.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
