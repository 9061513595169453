package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediafetch/internal"
)

func (a *app) newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the platforms the backend supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			platforms, err := client.Platforms(ctx)
			if err != nil {
				return failed("Load platforms", err)
			}

			out := cmd.OutOrStdout()
			for _, p := range platforms {
				line := fmt.Sprintf("%-12s %-14s", p.Key, p.Name)
				if len(p.Formats) > 0 {
					line += " " + strings.Join(p.Formats, ", ")
				}
				switch internal.ProfileFor(internal.ParsePlatform(p.Key)).Auth {
				case internal.AuthUserPassword:
					line += "  (login: username/password)"
				case internal.AuthClientSecret:
					line += "  (login: client id/secret)"
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			return nil
		},
	}
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate download statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			stats, err := client.Stats(ctx)
			if err != nil {
				return failed("Load stats", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:        %d\n", stats.Total)
			fmt.Fprintf(out, "Completed:    %d\n", stats.Completed)
			fmt.Fprintf(out, "Failed:       %d\n", stats.Failed)
			fmt.Fprintf(out, "Downloading:  %d\n", stats.Downloading)
			fmt.Fprintf(out, "Success rate: %.1f%%\n", stats.SuccessRate)
			return nil
		},
	}
}
