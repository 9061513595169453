package cmd

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mediafetch/internal"
	"mediafetch/session"
)

func (a *app) newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage platform credentials stored by the backend",
		Long: `Manage platform credentials stored by the backend.

Instagram takes a username and password. Reddit takes an app client id and
secret, plus an optional username and password for user-level access.
Credentials are sent to the backend once and never stored locally.`,
	}

	authCmd.AddCommand(a.newAuthStatusCmd(), a.newAuthConfigureCmd(), a.newAuthDeleteCmd())
	return authCmd
}

func (a *app) newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which platforms have credentials configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			status, err := client.AuthStatus(ctx)
			if err != nil {
				return failed("Load auth status", err)
			}

			keys := make([]string, 0, len(status))
			for key := range status {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			for _, key := range keys {
				state := status[key]
				mark := "✗"
				if state.Configured {
					mark = "✓"
				}
				line := fmt.Sprintf("%s %-12s", mark, internal.ParsePlatform(key).DisplayName())
				switch {
				case state.Username != "":
					line += " as " + state.Username
				case state.HasUserAuth:
					line += " with user access"
				case state.Note != "":
					line += " " + state.Note
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			return nil
		},
	}
}

func (a *app) newAuthConfigureCmd() *cobra.Command {
	var fields internal.CredentialFields
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "configure <platform>",
		Short: "Send credentials for a platform to the backend",
		Long: `Send credentials for a platform to the backend.

Examples:
  mediafetch auth configure instagram -u alice --password-stdin < pass.txt
  mediafetch auth configure reddit --client-id abc --client-secret s3cr3t`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				password, err := readSecret(cmd.InOrStdin())
				if err != nil {
					return err
				}
				fields.Password = password
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			s := session.New(client, session.OptionsFromConfig(a.config, a.metrics))
			defer s.Unmount()

			message, err := s.SaveAuth(ctx, internal.ParsePlatform(args[0]), fields)
			if err != nil {
				return sessionFailed("Configure authentication", err)
			}
			a.say(cmd.OutOrStdout(), "✅ %s\n", message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fields.Username, "username", "u", "", "Account username")
	cmd.Flags().StringVar(&fields.Password, "password", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from standard input")
	cmd.Flags().StringVar(&fields.ClientID, "client-id", "", "Reddit app client id")
	cmd.Flags().StringVar(&fields.ClientSecret, "client-secret", "", "Reddit app client secret")
	return cmd
}

func (a *app) newAuthDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <platform>",
		Short: "Remove the credentials of a platform from the backend",
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

			platform := internal.ParsePlatform(args[0])
			if err := s.DeleteAuth(ctx, platform); err != nil {
				return sessionFailed("Delete authentication", err)
			}
			a.say(cmd.OutOrStdout(), "🗑️  %s authentication removed\n", platform.DisplayName())
			return nil
		},
	}
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", internal.NewValidationError("password", "no password on standard input")
	}
	return line, nil
}
