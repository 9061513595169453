package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediafetch/internal"
	"mediafetch/session"
)

func (a *app) newCosplayCmd() *cobra.Command {
	cosplayCmd := &cobra.Command{
		Use:   "cosplay",
		Short: "Search cosplay galleries and queue them for download",
	}
	cosplayCmd.AddCommand(a.newCosplaySuggestCmd(), a.newCosplaySearchCmd(), a.newCosplayDownloadCmd())
	return cosplayCmd
}

func (a *app) newCosplaySuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <query>",
		Short: "Show search suggestions for a partial name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			suggestions, err := client.CosplaySuggestions(ctx, strings.Join(args, " "))
			if err != nil {
				return failed("Cosplay suggestions", err)
			}
			for _, s := range suggestions {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func (a *app) newCosplaySearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every cosplay platform for galleries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			opts := session.OptionsFromConfig(a.config, a.metrics)
			if limit > 0 {
				opts.SearchLimit = limit
			}
			s := session.New(client, opts)
			defer s.Unmount()

			s.SetQuery(strings.Join(args, " "))
			results, err := s.Search(ctx)
			if err != nil {
				return sessionFailed("Cosplay search", err)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default from MEDIAFETCH_SEARCH_LIMIT)")
	return cmd
}

func (a *app) newCosplayDownloadCmd() *cobra.Command {
	var pick string
	var all bool
	var quality string

	cmd := &cobra.Command{
		Use:   "download <query>",
		Short: "Search and queue the chosen galleries for download",
		Long: `Search and queue the chosen galleries for download.

Results are numbered as in "mediafetch cosplay search". Galleries are queued in
the order they are picked.

Examples:
  mediafetch cosplay download "Dva Overwatch" --pick 1,3
  mediafetch cosplay download "Tifa Lockhart" --all --quality 720p`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick == "" && !all {
				return failed("Cosplay download", internal.NewValidationError("selection", "select at least one gallery").
					WithSuggestion("Use --pick 1,2 or --all"))
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			opts := session.OptionsFromConfig(a.config, a.metrics)
			if !a.config.QuietMode {
				opts.Notifier = printNotices(out)
			}
			s := session.New(client, opts)
			defer s.Unmount()

			downloadOpts := internal.DefaultDownloadOptions()
			downloadOpts.Quality = quality
			s.SetOptions(downloadOpts)
			s.SetQuery(strings.Join(args, " "))

			results, err := s.Search(ctx)
			if err != nil {
				return sessionFailed("Cosplay search", err)
			}

			indexes, err := pickIndexes(pick, all, len(results))
			if err != nil {
				return failed("Cosplay download", err)
			}
			for _, i := range indexes {
				s.ToggleSelection(results[i].ID)
			}

			result, err := s.DownloadSelected(ctx)
			if err != nil {
				return sessionFailed("Cosplay download", err)
			}
			if result.Message != "" {
				a.say(out, "%s\n", result.Message)
			}
			if a.config.QuietMode {
				for _, id := range result.DownloadIDs {
					fmt.Fprintln(out, id)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pick, "pick", "", "Comma separated result numbers to download")
	cmd.Flags().BoolVar(&all, "all", false, "Download every result")
	cmd.Flags().StringVarP(&quality, "quality", "q", "best", "Image quality")
	return cmd
}

// pickIndexes turns 1-based result numbers into distinct 0-based indexes, in pick order
func pickIndexes(pick string, all bool, count int) ([]int, error) {
	if count == 0 {
		return nil, internal.NewValidationError("selection", "the search returned no galleries")
	}

	var indexes []int
	if all {
		for i := 0; i < count; i++ {
			indexes = append(indexes, i)
		}
		return indexes, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(pick, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > count {
			return nil, internal.NewValidationErrorWithValue("pick", fmt.Sprintf("result numbers run from 1 to %d", count), part)
		}
		if !seen[n] {
			seen[n] = true
			indexes = append(indexes, n-1)
		}
	}
	if len(indexes) == 0 {
		return nil, internal.NewValidationError("selection", "select at least one gallery")
	}
	return indexes, nil
}

func printResults(out io.Writer, results []internal.CosplayResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No galleries found")
		return
	}
	for i, r := range results {
		line := fmt.Sprintf("[%d] %-40s %-12s", i+1, r.Name, r.Platform.DisplayName())
		if r.GalleryCount > 0 {
			line += fmt.Sprintf(" %d images", r.GalleryCount)
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
		if r.URL != "" {
			fmt.Fprintf(out, "    %s\n", r.URL)
		}
	}
}
