package shell

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mediafetch/internal"
)

const (
	// maxLogLine caps a forwarded output line; the rest of the line is dropped
	maxLogLine = 4096

	// waitDelay bounds how long Wait lingers on output held open by
	// descendants after the backend itself has exited
	waitDelay = 2 * time.Second
)

// BackendProcess supervises the media backend when the shell owns it. With
// no command configured the backend is expected to run separately.
type BackendProcess struct {
	name string
	args []string
	dir  string

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

// NewBackendProcess creates a supervisor for name with args, run in dir
func NewBackendProcess(name string, args []string, dir string) *BackendProcess {
	return &BackendProcess{name: name, args: args, dir: dir, exitCode: -1}
}

// BackendProcessFromConfig splits the configured command on whitespace.
// Quoting is not interpreted.
func BackendProcessFromConfig(cfg *internal.Config) *BackendProcess {
	fields := strings.Fields(cfg.BackendCommand)
	if len(fields) == 0 {
		return NewBackendProcess("", nil, cfg.BackendWorkDir)
	}
	return NewBackendProcess(fields[0], fields[1:], cfg.BackendWorkDir)
}

// DevMode reports whether no backend command is configured
func (p *BackendProcess) DevMode() bool {
	return p.name == ""
}

// Start spawns the backend and forwards its output to the log
func (p *BackendProcess) Start() error {
	if p.DevMode() {
		internal.LogInfo("Development mode: backend should be running separately")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("backend already started")
	}

	cmd := exec.Command(p.name, p.args...)
	cmd.Dir = p.dir

	stdout := newLineWriter(func(line string) { internal.LogInfo("Backend: %s", line) })
	stderr := newLineWriter(func(line string) { internal.LogWarn("Backend Error: %s", line) })
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start backend %q: %w", p.name, err)
	}
	internal.LogInfo("Backend started: %s (pid %d)", p.name, cmd.Process.Pid)

	p.cmd = cmd
	p.done = make(chan struct{})

	go func() {
		err := cmd.Wait()
		stdout.flush()
		stderr.flush()

		code := cmd.ProcessState.ExitCode()
		var exitErr *exec.ExitError
		switch {
		case err == nil, errors.As(err, &exitErr):
		case errors.Is(err, exec.ErrWaitDelay):
			internal.LogDebug("Backend output still held open after exit")
		default:
			internal.LogWarn("Backend wait failed: %v", err)
		}
		internal.LogInfo("Backend process exited with code %d", code)

		p.mu.Lock()
		p.exitCode = code
		p.mu.Unlock()
		close(p.done)
	}()

	return nil
}

// Stop kills the backend with any processes it spawned and waits for it to exit
func (p *BackendProcess) Stop() {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	if cmd == nil {
		return
	}

	select {
	case <-done:
		return
	default:
	}

	if err := killProcessGroup(cmd); err != nil {
		internal.LogDebug("Backend kill: %v", err)
	}
	<-done
}

// Done is closed when the backend exits. It is nil before Start and in dev mode.
func (p *BackendProcess) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether a started backend has not exited yet
func (p *BackendProcess) Running() bool {
	done := p.Done()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code, or -1 while running or never started
func (p *BackendProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// lineWriter splits written output into lines. It never blocks the writer,
// so the process output is always drained.
type lineWriter struct {
	mu       sync.Mutex
	emit     func(string)
	buf      []byte
	overflow bool
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		chunk := p
		if i >= 0 {
			chunk = p[:i]
		}
		if !w.overflow {
			if room := maxLogLine - len(w.buf); len(chunk) > room {
				w.buf = append(w.buf, chunk[:room]...)
				w.overflow = true
			} else {
				w.buf = append(w.buf, chunk...)
			}
		}
		if i < 0 {
			break
		}
		w.line()
		p = p[i+1:]
	}
	return n, nil
}

// flush emits a trailing line that had no newline
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.line()
}

func (w *lineWriter) line() {
	line := strings.TrimRight(string(w.buf), "\r")
	if w.overflow {
		line += " [truncated]"
	}
	w.buf = w.buf[:0]
	w.overflow = false
	if line != "" {
		w.emit(line)
	}
}
