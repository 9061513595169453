// Package shell is the headless desktop shell. It supervises the backend
// process, serves the restricted UI bridge and reads menu commands from an
// input stream in place of a native menu bar.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"mediafetch/internal"
	"mediafetch/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options overrides the shell's collaborators
type Options struct {
	Dialogs Dialogs
	Opener  Opener
	Metrics *metrics.Collector
	In      io.Reader
	Out     io.Writer
	// Ready, when set, receives the bridge address once it is listening
	Ready chan<- net.Addr
}

// Shell wires the backend process, bridge, hub and menu together
type Shell struct {
	cfg     *internal.Config
	opts    Options
	backend *BackendProcess
	hub     *Hub
	bridge  *Bridge
	menu    *Menu
}

// New creates a shell from the application config
func New(cfg *internal.Config, opts Options) *Shell {
	if opts.Dialogs == nil {
		opts.Dialogs = NewHeadlessDialogs(cfg.DownloadsDir, opts.Out)
	}
	if opts.Opener == nil {
		opts.Opener = NewSystemOpener()
	}

	s := &Shell{
		cfg:     cfg,
		opts:    opts,
		backend: BackendProcessFromConfig(cfg),
		hub:     NewHub(cfg.BridgeOrigins),
	}
	s.bridge = NewBridge(BridgeConfig{
		Version:      internal.Version,
		DownloadsDir: cfg.DownloadsDir,
		Origins:      cfg.BridgeOrigins,
		Hub:          s.hub,
		Dialogs:      opts.Dialogs,
		Opener:       opts.Opener,
		Metrics:      opts.Metrics,
	})
	s.menu = s.buildMenu()
	return s
}

// Menu returns the application menu
func (s *Shell) Menu() *Menu {
	return s.menu
}

// Hub returns the event hub
func (s *Shell) Hub() *Hub {
	return s.hub
}

func (s *Shell) buildMenu() *Menu {
	return NewMenu(
		MenuItem{Label: "New download", Accelerator: "Ctrl+N", Action: func() error {
			event := s.hub.Publish(EventNewDownload)
			internal.LogDebug("Published %s event %s", event.Type, event.ID)
			return nil
		}},
		MenuItem{Label: "Open downloads folder", Action: func() error {
			return OpenDownloads(s.opts.Opener, s.cfg.DownloadsDir)
		}},
		MenuItem{Label: "About", Action: func() error {
			return s.opts.Dialogs.ShowMessage("About", "Multi-platform media downloader",
				fmt.Sprintf("Version %s\n\nDownloads media from YouTube, Instagram, Reddit and more.", internal.Version))
		}},
		MenuItem{Label: "Keyboard shortcuts", Action: func() error {
			return s.opts.Dialogs.ShowMessage("Keyboard shortcuts", "Available shortcuts",
				"Ctrl+N: New download\nCtrl+Q: Quit")
		}},
		MenuItem{Label: "Quit", Accelerator: "Ctrl+Q", Action: func() error {
			return ErrQuit
		}},
	)
}

// Run starts the backend and the bridge, then serves menu commands until ctx
// is cancelled, the input ends or Quit is chosen. Teardown runs in reverse order.
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.backend.Start(); err != nil {
		return err
	}
	defer s.backend.Stop()

	go s.hub.Run(ctx)

	addr, err := s.bridge.Start(s.cfg.BridgeAddr)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := s.bridge.Shutdown(shutdownCtx); err != nil {
			internal.LogWarn("Bridge shutdown: %v", err)
		}
	}()

	internal.LogInfo("Bridge listening on http://%s", addr)
	if s.opts.Ready != nil {
		select {
		case s.opts.Ready <- addr:
		case <-ctx.Done():
			return nil
		}
	}

	commands := make(chan string)
	if s.opts.In != nil {
		go readCommands(ctx, s.opts.In, commands)
	}
	if s.opts.Out != nil {
		fmt.Fprintf(s.opts.Out, "Menu:\n%s", s.menu.Help())
	}

	backendDone := s.backend.Done()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-backendDone:
			internal.LogWarn("Backend exited with code %d", s.backend.ExitCode())
			backendDone = nil

		case line, ok := <-commands:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			item, err := s.menu.Dispatch(line)
			if errors.Is(err, ErrQuit) {
				internal.LogInfo("Quit requested")
				return nil
			}
			if err != nil {
				internal.LogWarn("%s: %v", item.Label, err)
				continue
			}
			internal.LogDebug("Menu: %s", item.Label)
		}
	}
}

func readCommands(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
