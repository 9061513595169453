package cmd

import (
	"github.com/spf13/cobra"

	"mediafetch/shell"
)

func (a *app) newShellCmd() *cobra.Command {
	var bridgeAddr, backendCmd, backendDir string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run the desktop shell: supervise the backend and serve the UI bridge",
		Long: `Run the desktop shell.

The shell starts the backend command (MEDIAFETCH_BACKEND_CMD) unless none is
configured, in which case the backend is expected to run separately. It then
serves the UI bridge on a loopback address and reads menu commands from
standard input, one per line: a menu label such as "About" or an accelerator
such as "Ctrl+N". "Quit", Ctrl+Q or end of input stops the shell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bridgeAddr != "" {
				a.config.BridgeAddr = bridgeAddr
			}
			if backendCmd != "" {
				a.config.BackendCommand = backendCmd
			}
			if backendDir != "" {
				a.config.BackendWorkDir = backendDir
			}

			ctx, cancel := a.withSignals(cmd)
			defer cancel()

			return shell.New(a.config, shell.Options{
				Metrics: a.metrics,
				In:      cmd.InOrStdin(),
				Out:     cmd.OutOrStdout(),
			}).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&bridgeAddr, "bridge-addr", "", "Loopback address of the UI bridge (env: MEDIAFETCH_BRIDGE_ADDR)")
	cmd.Flags().StringVar(&backendCmd, "backend-cmd", "", "Command that starts the backend (env: MEDIAFETCH_BACKEND_CMD)")
	cmd.Flags().StringVar(&backendDir, "backend-dir", "", "Working directory of the backend command (env: MEDIAFETCH_BACKEND_DIR)")
	return cmd
}
