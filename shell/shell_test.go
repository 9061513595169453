package shell

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediafetch/internal"
)

type mockDialogs struct {
	mock.Mock
}

func (m *mockDialogs) ShowSave(ctx context.Context, suggestedName string) (SaveDialogResult, error) {
	args := m.Called(ctx, suggestedName)
	return args.Get(0).(SaveDialogResult), args.Error(1)
}

func (m *mockDialogs) ShowMessage(title, message, detail string) error {
	args := m.Called(title, message, detail)
	return args.Error(0)
}

type mockOpener struct {
	mock.Mock
}

func (m *mockOpener) Open(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// syncBuffer lets tests read log output written by background goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	out := &syncBuffer{}
	prev := internal.GetLogger()
	internal.SetLogger(internal.NewSecureLogger(out, internal.LogLevelDebug, false, false))
	t.Cleanup(func() { internal.SetLogger(prev) })
	return out
}

func testConfig(t *testing.T) *internal.Config {
	t.Helper()
	cfg := internal.DefaultConfig()
	cfg.DownloadsDir = t.TempDir()
	cfg.BridgeAddr = "127.0.0.1:0"
	cfg.BackendCommand = ""
	return cfg
}

func TestShellRunQuits(t *testing.T) {
	logs := captureLog(t)
	dialogs := &mockDialogs{}
	dialogs.On("ShowMessage", "About", mock.Anything, mock.MatchedBy(func(detail string) bool {
		return strings.Contains(detail, "Version "+internal.Version)
	})).Return(nil).Once()

	ready := make(chan net.Addr, 1)
	var out bytes.Buffer
	s := New(testConfig(t), Options{
		Dialogs: dialogs,
		Opener:  &mockOpener{},
		In:      strings.NewReader("about\nbogus\nquit\nabout\n"),
		Out:     &out,
		Ready:   ready,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	select {
	case addr := <-ready:
		assert.NotEmpty(t, addr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("bridge never became ready")
	}

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not quit")
	}

	dialogs.AssertExpectations(t)
	assert.Contains(t, out.String(), "Ctrl+Q")
	assert.Contains(t, logs.String(), "Development mode")
	assert.Contains(t, logs.String(), `unknown menu command "bogus"`)
	assert.Contains(t, logs.String(), "Quit requested")
}

func TestShellRunStopsOnContext(t *testing.T) {
	captureLog(t)
	reader, writer := net.Pipe()
	defer writer.Close()

	ready := make(chan net.Addr, 1)
	s := New(testConfig(t), Options{Dialogs: &mockDialogs{}, Opener: &mockOpener{}, In: reader, Ready: ready})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	addr := <-ready
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell ignored cancellation")
	}

	_, err := net.DialTimeout("tcp", addr.String(), time.Second)
	assert.Error(t, err, "bridge should be shut down")
}

func TestShellRunUnreadReadyChannel(t *testing.T) {
	logs := captureLog(t)

	s := New(testConfig(t), Options{Dialogs: &mockDialogs{}, Opener: &mockOpener{}, Ready: make(chan net.Addr)})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Bridge listening")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell blocked announcing the bridge address")
	}
}

func TestShellRunRejectsPublicBridge(t *testing.T) {
	captureLog(t)
	cfg := testConfig(t)
	cfg.BridgeAddr = "0.0.0.0:0"

	err := New(cfg, Options{Dialogs: &mockDialogs{}, Opener: &mockOpener{}}).Run(context.Background())

	var verr *internal.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bridge_addr", verr.Field)
}

func TestShellMenuNewDownloadPublishes(t *testing.T) {
	s := New(testConfig(t), Options{Dialogs: &mockDialogs{}, Opener: &mockOpener{}})

	item, err := s.Menu().Dispatch("ctrl+n")
	require.NoError(t, err)
	assert.Equal(t, "New download", item.Label)

	select {
	case event := <-s.Hub().broadcast:
		assert.Equal(t, EventNewDownload, event.Type)
		assert.NotEmpty(t, event.ID)
	default:
		t.Fatal("no event queued")
	}
}

func TestShellMenuOpenDownloads(t *testing.T) {
	cfg := testConfig(t)
	opener := &mockOpener{}
	opener.On("Open", cfg.DownloadsDir).Return(nil).Once()

	_, err := New(cfg, Options{Dialogs: &mockDialogs{}, Opener: opener}).Menu().Dispatch("Open downloads folder")

	require.NoError(t, err)
	opener.AssertExpectations(t)
}
