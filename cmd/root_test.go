package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/internal"
	"mediafetch/internal/testbackend"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// cliEnv points the CLI at a fresh downloads directory with a fast poll interval
func cliEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MEDIAFETCH_DOWNLOADS_DIR", dir)
	t.Setenv("MEDIAFETCH_POLL_INTERVAL", "100ms")
	t.Setenv("MEDIAFETCH_BACKEND_CMD", "")
	t.Setenv("MEDIAFETCH_QUIET", "")
	return dir
}

func runCLI(t *testing.T, backend *testbackend.Backend, stdin string, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	full := []string{"--log-level", "error"}
	if backend != nil {
		full = append(full, "--backend", backend.URL())
	}
	root.SetArgs(append(full, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)

	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRootRejectsInvalidConfiguration(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, nil, "", "--backend", "ftp://files.example.com", "list")

	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "configuration error")
	assert.Empty(t, backend.Requests())
}

func TestRootFlagsOverrideEnvironment(t *testing.T) {
	cliEnv(t)
	t.Setenv("MEDIAFETCH_BACKEND_URL", "http://127.0.0.1:1")
	t.Setenv("MEDIAFETCH_TIMEOUT", "7")
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "--timeout", "3", "stats")

	require.NoError(t, res.err)
	assert.Len(t, backend.RequestsTo("GET", "/api/stats"), 1)
}

func TestLoadConfiguration(t *testing.T) {
	cliEnv(t)
	t.Setenv("MEDIAFETCH_LOG_LEVEL", "warn")

	a := &app{debug: true, quiet: true, proxyURL: "socks5://127.0.0.1:1080", timeout: 12}
	require.NoError(t, a.loadConfiguration())

	assert.True(t, a.config.EnableDebug)
	assert.True(t, a.config.QuietMode)
	assert.Equal(t, "debug", a.config.LogLevel)
	assert.Equal(t, 12, a.config.DefaultTimeout)
	assert.Equal(t, "socks5://127.0.0.1:1080", a.config.ProxyURL)
	assert.Equal(t, 100*time.Millisecond, a.config.PollInterval)

	a = &app{proxyURL: "ftp://proxy:21"}
	assert.Error(t, a.loadConfiguration())
}

func TestTransportFailureMessage(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.Close()

	res := runCLI(t, backend, "", "stats")

	require.Error(t, res.err)
	var gwErr *internal.GatewayError
	require.ErrorAs(t, res.err, &gwErr)
	assert.Equal(t, internal.KindTransport, gwErr.Kind)
	assert.True(t, strings.HasPrefix(res.err.Error(), "Load stats failed: "))
}

func TestPlatformsAndStats(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "a", URL: "https://youtu.be/a", Status: internal.JobCompleted})
	backend.AddJob(internal.Job{ID: "b", URL: "https://youtu.be/b", Status: internal.JobFailed})

	res := runCLI(t, backend, "", "platforms")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "youtube")
	assert.Contains(t, res.stdout, "mp4, avi")
	assert.Contains(t, res.stdout, "(login: username/password)")
	assert.Contains(t, res.stdout, "(login: client id/secret)")

	res = runCLI(t, backend, "", "stats")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Total:        2")
	assert.Contains(t, res.stdout, "Success rate: 50.0%")
}

func TestShellCommandQuits(t *testing.T) {
	cliEnv(t)

	res := runCLI(t, nil, "Keyboard shortcuts\nquit\n", "shell", "--bridge-addr", "127.0.0.1:0")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Menu:")
	assert.Contains(t, res.stdout, "Ctrl+N: New download")
}

func TestShellCommandRejectsPublicBridge(t *testing.T) {
	cliEnv(t)

	res := runCLI(t, nil, "", "shell", "--bridge-addr", "0.0.0.0:17321")

	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "bridge_addr", verr.Field)
}
