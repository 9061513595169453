package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mediafetch/internal"
	"mediafetch/session"
	"mediafetch/utils"
)

func (a *app) newBatchCmd() *cobra.Command {
	opts := internal.DefaultDownloadOptions()
	var watch bool

	cmd := &cobra.Command{
		Use:   "batch <FILE>",
		Short: "Queue every link of a spreadsheet or text file",
		Long: `Queue every link of a spreadsheet or text file.

An .xlsx workbook is read from its first sheet: the column headed "url" when
there is one, otherwise the first column holding http(s) links. Any other
file is read as one link per line; blank lines and lines starting with # are
skipped. A link the backend rejects is reported and the batch continues.

Examples:
  mediafetch batch links.xlsx
  mediafetch batch -a -f mp3 playlist.txt --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePlatformOverride(opts.Platform); err != nil {
				return failed("Start download", err)
			}

			entries, err := utils.ReadURLList(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if len(entries) == 0 {
				return internal.NewValidationErrorWithValue("file", "no links found", args[0])
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			s := session.New(client, session.OptionsFromConfig(a.config, a.metrics))
			defer s.Unmount()
			s.SetOptions(opts)

			out := cmd.OutOrStdout()
			queued := make(map[string]bool, len(entries))
			byPlatform := make(map[internal.Platform]int)
			var failures int

			for _, entry := range entries {
				if ctx.Err() != nil {
					break
				}
				s.SetURL(entry.URL)
				result, err := s.StartDownload(ctx)
				if err != nil {
					failures++
					fmt.Fprintf(cmd.ErrOrStderr(), "❌ line %d: %s\n", entry.Line, internal.UserMessage("Start download", err))
					continue
				}
				queued[result.DownloadID] = true
				byPlatform[a.classifier.Classify(entry.URL)]++
				a.say(out, "📥 line %d: %s queued as %s\n", entry.Line, entry.URL, result.DownloadID)
			}

			a.say(out, "Queued %d of %d links", len(queued), len(entries))
			for _, p := range internal.AllPlatforms() {
				if n := byPlatform[p]; n > 0 {
					a.say(out, ", %s: %d", p.DisplayName(), n)
				}
			}
			a.say(out, "\n")

			if watch && len(queued) > 0 {
				if err := s.Mount(ctx); err != nil {
					return err
				}
				if err := a.runBoard(ctx, s, out, true, queued); err != nil {
					return err
				}
			}

			if ctx.Err() != nil {
				return errors.New("batch cancelled by user")
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d links could not be queued", failures, len(entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Quality, "quality", "q", opts.Quality, "Quality (best, 1080p, 720p, 480p, worst)")
	cmd.Flags().BoolVarP(&opts.AudioOnly, "audio-only", "a", false, "Download the audio track only")
	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", opts.OutputFormat, "Output format (mp4, webm, mp3, ...)")
	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", opts.Platform, "Platform override, or auto to detect it from the URL")
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the queued jobs until they complete or fail")
	return cmd
}
