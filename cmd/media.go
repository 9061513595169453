package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediafetch/gateway"
	"mediafetch/internal"
	"mediafetch/session"
	"mediafetch/utils"
)

func (a *app) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <URL>",
		Short: "Show metadata of a media link without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL, err := utils.NewURLValidator().ValidateURL(args[0])
			if err != nil {
				return failed("Fetch media info", err)
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			a.say(out, "🔍 Detected platform: %s\n", a.classifier.Classify(rawURL).DisplayName())

			info, err := client.MediaInfo(ctx, rawURL)
			if err != nil {
				return failed("Fetch media info", err)
			}

			fmt.Fprintf(out, "Title:     %s\n", info.Title)
			fmt.Fprintf(out, "Platform:  %s\n", info.Platform.DisplayName())
			if info.Uploader != "" {
				fmt.Fprintf(out, "Uploader:  %s\n", info.Uploader)
			}
			if info.Duration > 0 {
				fmt.Fprintf(out, "Duration:  %s\n", formatDuration(info.Duration))
			}
			if info.ViewCount > 0 {
				fmt.Fprintf(out, "Views:     %d\n", info.ViewCount)
			}
			if info.UploadDate != "" {
				fmt.Fprintf(out, "Uploaded:  %s\n", info.UploadDate)
			}
			if info.MediaType != "" {
				fmt.Fprintf(out, "Type:      %s\n", info.MediaType)
			}
			if info.MediaCount > 0 {
				fmt.Fprintf(out, "Items:     %d\n", info.MediaCount)
			}
			return nil
		},
	}
}

func (a *app) newDownloadCmd() *cobra.Command {
	opts := internal.DefaultDownloadOptions()
	var watch bool

	cmd := &cobra.Command{
		Use:   "download <URL>",
		Short: "Queue a media link for download on the backend",
		Long: `Queue a media link for download on the backend.

The platform is detected from the link unless --platform is given. With
--watch the command follows the job until it completes or fails.

Examples:
  mediafetch download https://youtu.be/dQw4w9WgXcQ
  mediafetch download -q 720p -f webm --watch https://youtu.be/dQw4w9WgXcQ
  mediafetch download -a https://open.spotify.com/track/abc
  mediafetch download -p reddit https://redd.it/abc123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePlatformOverride(opts.Platform); err != nil {
				return failed("Start download", err)
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			sessionOpts := session.OptionsFromConfig(a.config, a.metrics)
			if !a.config.QuietMode {
				sessionOpts.Notifier = printNotices(out)
			}
			s := session.New(client, sessionOpts)
			defer s.Unmount()

			s.SetURL(args[0])
			s.SetOptions(opts)
			a.say(out, "📥 Downloading from: %s\n", strings.TrimSpace(args[0]))
			a.say(out, "🌐 Platform: %s\n", utils.ResolvePlatform(args[0], opts.Platform).DisplayName())

			result, err := s.StartDownload(ctx)
			if err != nil {
				return sessionFailed("Start download", err)
			}
			if a.config.QuietMode {
				fmt.Fprintln(out, result.DownloadID)
			}
			if !watch {
				return nil
			}

			return a.followJob(ctx, s, result.DownloadID, out)
		},
	}

	cmd.Flags().StringVarP(&opts.Quality, "quality", "q", opts.Quality, "Quality (best, 1080p, 720p, 480p, worst)")
	cmd.Flags().BoolVarP(&opts.AudioOnly, "audio-only", "a", false, "Download the audio track only")
	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", opts.OutputFormat, "Output format (mp4, webm, mp3, ...)")
	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", opts.Platform, "Platform override, or auto to detect it from the URL")
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the job until it completes or fails")
	return cmd
}

func validatePlatformOverride(platform string) error {
	platform = strings.TrimSpace(platform)
	if platform == "" || strings.EqualFold(platform, internal.PlatformAuto) {
		return nil
	}
	if internal.ParsePlatform(platform) == internal.PlatformUnknown {
		return internal.NewValidationErrorWithValue("platform", "unknown platform", platform).
			WithSuggestion("Run 'mediafetch platforms' to list the supported platforms, or use auto")
	}
	return nil
}

// followJob polls until the job is terminal, redrawing its row on every snapshot
func (a *app) followJob(ctx context.Context, s *session.Session, id string, out io.Writer) error {
	if err := s.Mount(ctx); err != nil {
		return err
	}

	updates, stop := s.Store().Subscribe()
	defer stop()

	board := utils.NewProgressBoard(out, isTerminal(out))
	drawn := make(chan struct{})
	go func() {
		defer close(drawn)
		if a.config.QuietMode {
			return
		}
		for snap := range updates {
			if job, ok := snap.Job(id); ok {
				board.Draw(boardRows([]session.JobView{session.ViewOf(job)}), "")
			}
		}
	}()

	job, err := s.AwaitTerminal(ctx, id)
	stop()
	<-drawn
	if errors.Is(err, session.ErrJobRemoved) {
		return &actionError{action: "Download", err: err}
	}
	if err != nil {
		return err
	}
	if !a.config.QuietMode {
		board.Draw(boardRows([]session.JobView{session.ViewOf(job)}), "")
	}

	if job.Status == internal.JobFailed {
		reason := job.ErrorMessage
		if reason == "" {
			reason = "the backend reported no reason"
		}
		return &actionError{action: "Download", err: errors.New(reason)}
	}
	a.say(out, "✅ Download completed: %s\n", jobLabel(job))
	a.say(out, "   Use 'mediafetch fetch %s' to save the file locally.\n", job.ID)
	return nil
}

func (a *app) newListCmd() *cobra.Command {
	var status, platform string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List download jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listOpts := internal.ListOptions{Limit: limit}
			if status != "" {
				s := internal.JobStatus(strings.ToLower(status))
				if !s.Known() {
					return failed("List downloads", internal.NewValidationErrorWithValue("status", "unknown status", status).
						WithSuggestion("Use pending, downloading, completed or failed"))
				}
				listOpts.Status = s
			}
			if platform != "" {
				p := internal.ParsePlatform(platform)
				if p == internal.PlatformUnknown {
					return failed("List downloads", internal.NewValidationErrorWithValue("platform", "unknown platform", platform))
				}
				listOpts.Platform = p
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			jobs, err := client.ListJobs(ctx, listOpts)
			if err != nil {
				return failed("List downloads", err)
			}

			views := make([]session.JobView, len(jobs))
			for i, job := range jobs {
				views[i] = session.ViewOf(job)
			}
			for _, line := range utils.RenderRows(boardRows(views)) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs with this status")
	cmd.Flags().StringVar(&platform, "platform", "", "Only jobs of this platform")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs")
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ID>",
		Short: "Show the current state of one download job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			job, err := client.GetJob(ctx, args[0])
			if err != nil {
				return failed("Get download status", err)
			}
			printJob(cmd.OutOrStdout(), *job)
			return nil
		},
	}
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ID>",
		Short: "Remove a download job and its file from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			s := session.New(client, session.OptionsFromConfig(a.config, a.metrics))
			defer s.Unmount()

			if err := s.DeleteJob(ctx, args[0]); err != nil {
				return sessionFailed("Delete download", err)
			}
			a.say(cmd.OutOrStdout(), "🗑️  Deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newFetchCmd() *cobra.Command {
	var output, rateLimit string
	var force bool

	cmd := &cobra.Command{
		Use:   "fetch <ID>",
		Short: "Save the file of a completed download job locally",
		Long: `Save the file of a completed download job locally.

Without --output the file goes to the downloads directory, numbered when a
file of the same name already exists there.

Examples:
  mediafetch fetch 3f6c2b1e
  mediafetch fetch -o ~/Videos/clip.mp4 --force 3f6c2b1e
  mediafetch fetch -r 2M 3f6c2b1e`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rateLimitBytes, err := utils.ParseRateLimit(rateLimit)
			if err != nil {
				return failed("Fetch file", internal.NewValidationErrorWithValue("rate_limit", "invalid format", rateLimit).
					WithSuggestion("Use formats like 1M (1 MB/s), 500K (500 KB/s), 2G (2 GB/s), or 1024 (1024 bytes/s)"))
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			path, written, err := a.fetchFile(ctx, client, args[0], output, force, rateLimitBytes, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.say(cmd.OutOrStdout(), "📁 Saved %s to %s\n", utils.FormatBytes(written), path)
			if a.config.QuietMode {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory")
	cmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func (a *app) fetchFile(ctx context.Context, client *gateway.Client, id, output string, force bool, rate int64, progressOut io.Writer) (string, int64, error) {
	body, meta, err := client.FetchFile(ctx, id)
	if err != nil {
		return "", 0, failed("Fetch file", err)
	}
	defer body.Close()

	path := a.outputPath(meta.Filename, output, force)
	internal.LogInfo("Saving %s (%s) to %s", id, meta.Filename, path)

	progress := utils.NewByteProgress(progressOut, meta.Size, a.config.QuietMode)
	var reader io.Reader = body
	if rate > 0 {
		reader = utils.NewRateLimitedReader(ctx, reader, utils.NewTokenBucketLimiter(rate))
	}

	written, err := utils.NewFileOperations().SavePayload(path, progress.Wrap(reader), force)
	summary := progress.Finish()
	if err != nil {
		return "", written, failed("Fetch file", err)
	}
	internal.LogDebug("Fetched %d bytes in %s (%.0f B/s)", summary.TotalBytes, summary.TotalTime, summary.AverageSpeed)
	return path, written, nil
}

// outputPath picks where a fetched file is written
func (a *app) outputPath(filename, output string, force bool) string {
	filename = utils.SanitizeFilename(filename)
	files := utils.NewFileOperations()

	if output != "" {
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			return filepath.Join(output, filename)
		}
		return output
	}

	if force {
		return filepath.Join(a.config.DownloadsDir, filename)
	}
	return files.UniquePath(a.config.DownloadsDir, filename)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
