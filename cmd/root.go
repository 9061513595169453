package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediafetch/gateway"
	"mediafetch/internal"
	"mediafetch/metrics"
	"mediafetch/utils"
)

// app holds the flag values and the collaborators shared by every command
// of one root command instance
type app struct {
	backendURL string
	timeout    int
	proxyURL   string
	debug      bool
	logLevel   string
	logFile    string
	quiet      bool

	config     *internal.Config
	metrics    *metrics.Collector
	classifier internal.Classifier
}

func newRootCmd() *cobra.Command {
	a := &app{
		config:     internal.DefaultConfig(),
		metrics:    metrics.New(),
		classifier: utils.PlatformClassifier{},
	}

	rootCmd := &cobra.Command{
		Use:     "mediafetch",
		Short:   "Client for the multi-platform media download backend",
		Version: "v" + internal.Version,
		Long: `mediafetch submits media links to the download backend, follows the
progress of download jobs and retrieves finished files.

Supported platforms include YouTube, Instagram, Reddit, Spotify and a number
of gallery sites. Media retrieval itself happens in the backend, which must be
running separately or be supervised by "mediafetch shell".

Examples:
  mediafetch info https://youtu.be/dQw4w9WgXcQ
  mediafetch download -q 720p --watch https://youtu.be/dQw4w9WgXcQ
  mediafetch download -a -f mp3 https://open.spotify.com/track/abc
  mediafetch list --status downloading
  mediafetch fetch 3f6c2b1e -o ~/Videos
  mediafetch cosplay search "Dva Overwatch"
  mediafetch batch links.xlsx

Environment Variables:
  MEDIAFETCH_BACKEND_URL    Backend base URL (default http://localhost:8001)
  MEDIAFETCH_TIMEOUT        HTTP timeout in seconds
  MEDIAFETCH_PROXY          Proxy URL
  MEDIAFETCH_POLL_INTERVAL  Job list refresh period (e.g. 5s)
  MEDIAFETCH_DOWNLOADS_DIR  Where fetched files are saved`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load and initialize configuration first
			if err := a.loadConfiguration(); err != nil {
				return fmt.Errorf("configuration error: %v", err)
			}

			if err := internal.InitLogger(a.config); err != nil {
				return fmt.Errorf("failed to initialize logger: %v", err)
			}

			internal.LogDebug("Configuration loaded: backend=%s, timeout=%d, poll=%s, debug=%v, quiet=%v",
				a.config.BackendURL, a.config.DefaultTimeout, a.config.PollInterval, a.config.EnableDebug, a.config.QuietMode)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.backendURL, "backend", "", "Backend base URL (env: MEDIAFETCH_BACKEND_URL)")
	flags.IntVar(&a.timeout, "timeout", 0, "HTTP timeout in seconds (env: MEDIAFETCH_TIMEOUT)")
	flags.StringVar(&a.proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: MEDIAFETCH_PROXY)")
	flags.BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging with file and line information (env: MEDIAFETCH_DEBUG)")
	flags.StringVar(&a.logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: MEDIAFETCH_LOG_LEVEL)")
	flags.StringVar(&a.logFile, "log-file", "", "Write logs to file instead of stderr (env: MEDIAFETCH_LOG_FILE)")
	flags.BoolVar(&a.quiet, "quiet", false, "Only print errors and essential output (env: MEDIAFETCH_QUIET)")

	rootCmd.AddCommand(
		a.newInfoCmd(),
		a.newDownloadCmd(),
		a.newListCmd(),
		a.newStatusCmd(),
		a.newFetchCmd(),
		a.newDeleteCmd(),
		a.newPlatformsCmd(),
		a.newStatsCmd(),
		a.newAuthCmd(),
		a.newCosplayCmd(),
		a.newWatchCmd(),
		a.newBatchCmd(),
		a.newShellCmd(),
	)

	return rootCmd
}

// loadConfiguration loads configuration from environment variables and merges with CLI flags
func (a *app) loadConfiguration() error {
	a.config = internal.DefaultConfig()
	a.config.LoadFromEnv()

	if a.backendURL != "" {
		a.config.BackendURL = a.backendURL
	}
	if a.timeout != 0 {
		a.config.DefaultTimeout = a.timeout
	}
	if a.proxyURL != "" {
		a.config.ProxyURL = a.proxyURL
	}

	// Update logging configuration based on CLI flags
	if a.debug {
		a.config.EnableDebug = true
		a.config.LogLevel = "debug"
	}
	if a.quiet {
		a.config.QuietMode = true
	}
	if a.logLevel != "" {
		a.config.LogLevel = a.logLevel
	}
	if a.logFile != "" {
		a.config.LogFile = a.logFile
	}

	return a.config.ValidateConfig()
}

// client creates a gateway for the configured backend
func (a *app) client() (*gateway.Client, error) {
	client, err := gateway.NewFromConfig(a.config, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	return client, nil
}

// say prints progress chatter unless quiet mode is on
func (a *app) say(out io.Writer, format string, args ...interface{}) {
	if a.config.QuietMode {
		return
	}
	fmt.Fprintf(out, format, args...)
}

// withSignals returns a context cancelled on SIGINT or SIGTERM
func (a *app) withSignals(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			internal.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
			a.say(cmd.ErrOrStderr(), "\n🛑 Received %v signal, shutting down gracefully...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// Execute runs the mediafetch command line
func Execute() error {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
