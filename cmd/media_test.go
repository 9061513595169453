package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafetch/gateway"
	"mediafetch/internal"
	"mediafetch/internal/testbackend"
	"mediafetch/session"
)

func TestInfo(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "info", "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Detected platform: YouTube")
	assert.Contains(t, res.stdout, "Title:     Test media")
	assert.Contains(t, res.stdout, "Duration:  3:32")
	assert.Contains(t, res.stdout, "Uploader:  tester")
}

func TestInfoValidatesBeforeNetwork(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "info", "ftp://example.com/file")

	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "url", verr.Field)
	assert.Empty(t, backend.Requests())
}

func TestInfoBackendRejection(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "info", "https://example.com/video")

	require.Error(t, res.err)
	assert.Equal(t, "Fetch media info failed: Unsupported platform or invalid URL: unknown", res.err.Error())
}

func TestDownload(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "download", "-q", "720p", "-f", "webm", "https://youtu.be/dQw4w9WgXcQ")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Platform: YouTube")
	assert.Contains(t, res.stdout, "Download started! Platform: youtube, ID: ")
	assert.Equal(t, 1, backend.JobCount())

	reqs := backend.RequestsTo("POST", "/api/media/download")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"url":"https://youtu.be/dQw4w9WgXcQ","quality":"720p","audio_only":false,"output_format":"webm","platform":"auto"}`,
		string(reqs[0].Body))
}

func TestDownloadQuietPrintsID(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "--quiet", "download", "-a", "-f", "mp3", "https://open.spotify.com/track/abc")

	require.NoError(t, res.err)
	id := strings.TrimSpace(res.stdout)
	job, ok := backend.Job(id)
	require.True(t, ok, "stdout should be the job id, got %q", res.stdout)
	assert.Equal(t, internal.PlatformSpotify, job.Platform)
}

func TestDownloadPlatformOverride(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "download", "-p", "reddit", "https://redd.it/abc123")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Platform: reddit")

	backend.ResetRequests()
	res = runCLI(t, backend, "", "download", "-p", "myspace", "https://myspace.com/x")
	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "platform", verr.Field)
	assert.Empty(t, backend.Requests())
}

func TestDownloadWatchFollowsJob(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	done := make(chan cliResult, 1)
	go func() {
		done <- runCLI(t, backend, "", "download", "--watch", "https://youtu.be/watch-me")
	}()

	require.Eventually(t, func() bool { return backend.JobCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	jobs, err := gateway.New(backend.URL()).ListJobs(context.Background(), internal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	backend.Script(jobs[0].ID,
		testbackend.JobStep{Status: internal.JobDownloading, Progress: 50},
		testbackend.JobStep{Status: internal.JobCompleted, Progress: 100, Filename: "watch-me.mp4", Payload: []byte("data")},
	)

	var res cliResult
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("download --watch did not finish")
	}

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "completed")
	assert.Contains(t, res.stdout, "Download completed")
	assert.Contains(t, res.stdout, "mediafetch fetch "+jobs[0].ID)
}

func TestDownloadWatchReportsFailure(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	done := make(chan cliResult, 1)
	go func() {
		done <- runCLI(t, backend, "", "download", "--watch", "https://www.instagram.com/p/private")
	}()

	require.Eventually(t, func() bool { return backend.JobCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	jobs, err := gateway.New(backend.URL()).ListJobs(context.Background(), internal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	backend.Script(jobs[0].ID, testbackend.JobStep{Status: internal.JobFailed, ErrorMessage: "Private account"})

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.Equal(t, "Download failed: Private account", res.err.Error())
	case <-time.After(10 * time.Second):
		t.Fatal("download --watch did not finish")
	}
}

func TestDownloadWatchRemovedJob(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	done := make(chan cliResult, 1)
	go func() {
		done <- runCLI(t, backend, "", "download", "--watch", "https://youtu.be/gone")
	}()

	require.Eventually(t, func() bool { return backend.JobCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	client := gateway.New(backend.URL())
	jobs, err := client.ListJobs(context.Background(), internal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, client.DeleteJob(context.Background(), jobs[0].ID))

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.Equal(t, "Download failed: download no longer exists on the backend", res.err.Error())
	case <-time.After(10 * time.Second):
		t.Fatal("download --watch did not finish")
	}
}

func TestList(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-done", URL: "https://youtu.be/a", Platform: internal.PlatformYouTube,
		Status: internal.JobCompleted, Progress: 100, Filename: "a.mp4", Title: "Finished clip"})
	backend.AddJob(internal.Job{ID: "job-running", URL: "https://youtu.be/b", Platform: internal.PlatformYouTube,
		Status: internal.JobDownloading, Progress: 40, Title: "Running clip"})

	res := runCLI(t, backend, "", "list")
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Running clip")
	assert.Contains(t, lines[0], "40%")
	assert.Contains(t, lines[1], "Finished clip")
	assert.NotContains(t, lines[1], "%")

	backend.ResetRequests()
	res = runCLI(t, backend, "", "list", "--status", "completed", "--platform", "youtube", "--limit", "5")
	require.NoError(t, res.err)
	reqs := backend.RequestsTo("GET", "/api/media/downloads")
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].RawQuery, "status=completed")
	assert.Contains(t, reqs[0].RawQuery, "platform=youtube")
	assert.Contains(t, reqs[0].RawQuery, "limit=5")
	assert.NotContains(t, res.stdout, "Running clip")
}

func TestListRejectsUnknownStatus(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "list", "--status", "paused")

	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Empty(t, backend.Requests())
}

func TestListEmpty(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "list")

	require.NoError(t, res.err)
	assert.Equal(t, "No downloads yet\n", res.stdout)
}

func TestStatus(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-1", URL: "https://www.instagram.com/p/x", Platform: internal.PlatformInstagram,
		Status: internal.JobFailed, Progress: 30, ErrorMessage: "Private account"})

	res := runCLI(t, backend, "", "status", "job-1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Platform:  Instagram")
	assert.Contains(t, res.stdout, "Status:    failed")
	assert.Contains(t, res.stdout, "Error:     Private account")
	assert.NotContains(t, res.stdout, "Progress:")

	res = runCLI(t, backend, "", "status", "missing")
	require.Error(t, res.err)
	assert.Equal(t, "Get download status failed: Download not found", res.err.Error())
}

func TestFetch(t *testing.T) {
	dir := cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-1", URL: "https://youtu.be/a", Status: internal.JobDownloading})

	res := runCLI(t, backend, "", "fetch", "job-1")
	require.Error(t, res.err)
	assert.Equal(t, "Fetch file failed: Download not completed", res.err.Error())

	backend.Advance("job-1", testbackend.JobStep{Status: internal.JobCompleted, Progress: 100, Filename: "clip.mp4", Payload: []byte("hello")})

	res = runCLI(t, backend, "", "fetch", "job-1")
	require.NoError(t, res.err)
	data, err := os.ReadFile(filepath.Join(dir, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	res = runCLI(t, backend, "", "--quiet", "fetch", "job-1")
	require.NoError(t, res.err)
	assert.Equal(t, filepath.Join(dir, "clip (1).mp4"), strings.TrimSpace(res.stdout))
	assert.NoFileExists(t, filepath.Join(dir, "clip.mp4.part"))
}

func TestFetchOutputAndForce(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-1", URL: "https://youtu.be/a"})
	backend.Advance("job-1", testbackend.JobStep{Status: internal.JobCompleted, Filename: "clip.mp4", Payload: []byte("new")})

	target := filepath.Join(t.TempDir(), "mine.mp4")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

	res := runCLI(t, backend, "", "fetch", "-o", target, "job-1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "file already exists")

	res = runCLI(t, backend, "", "fetch", "-o", target, "--force", "-r", "1M", "job-1")
	require.NoError(t, res.err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	outDir := t.TempDir()
	res = runCLI(t, backend, "", "fetch", "-o", outDir, "job-1")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(outDir, "clip.mp4"))
}

func TestFetchRejectsBadRate(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "fetch", "-r", "fast", "job-1")

	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "rate_limit", verr.Field)
	assert.Empty(t, backend.Requests())
}

func TestDelete(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-1", URL: "https://youtu.be/a", Status: internal.JobCompleted})

	res := runCLI(t, backend, "", "delete", "job-1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deleted job-1")
	assert.Equal(t, 0, backend.JobCount())

	backend.ResetRequests()
	res = runCLI(t, backend, "", "delete", "job-1")
	require.Error(t, res.err)
	assert.Equal(t, "Delete download failed: Download not found", res.err.Error())
	assert.Empty(t, backend.RequestsTo("GET", "/api/media/downloads"), "a failed delete does not refresh the list")
}

func TestWatchUntilIdle(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)
	backend.AddJob(internal.Job{ID: "job-1", URL: "https://youtu.be/a", Title: "Clip", Status: internal.JobDownloading, Progress: 10})
	backend.Script("job-1",
		testbackend.JobStep{Status: internal.JobDownloading, Progress: 60},
		testbackend.JobStep{Status: internal.JobCompleted, Progress: 100, Filename: "clip.mp4", Payload: []byte("x")},
	)

	res := runCLI(t, backend, "", "watch", "--until-idle", "--interval", "100ms")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "60%")
	assert.Contains(t, res.stdout, "clip.mp4")
	assert.Contains(t, res.stdout, "completed: 1")
	assert.GreaterOrEqual(t, len(backend.RequestsTo("GET", "/api/media/downloads")), 2)
}

func TestBoardRows(t *testing.T) {
	views := []session.JobView{
		session.ViewOf(internal.Job{ID: "a", Title: "Clip", Status: internal.JobDownloading, Progress: 140}),
		session.ViewOf(internal.Job{ID: "b", URL: "https://youtu.be/b", Status: internal.JobPending, Progress: 50}),
		session.ViewOf(internal.Job{ID: "c", Filename: "c.mp4", Status: internal.JobCompleted, Progress: 100}),
		session.ViewOf(internal.Job{ID: "d", Status: internal.JobFailed, ErrorMessage: "Private account"}),
	}

	rows := boardRows(views)

	require.Len(t, rows, 4)
	assert.True(t, rows[0].ShowProgress)
	assert.Equal(t, 100.0, rows[0].Progress)
	assert.Equal(t, "Clip", rows[0].Label)
	assert.False(t, rows[1].ShowProgress)
	assert.Equal(t, "https://youtu.be/b", rows[1].Label)
	assert.Equal(t, "c.mp4", rows[2].Detail)
	assert.Equal(t, "Private account", rows[3].Detail)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "unknown"},
		{59, "0:59"},
		{212, "3:32"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.seconds))
	}
}

func TestActionErrorUnwraps(t *testing.T) {
	inner := internal.NewBackendError(gateway.OpStats, 502, "")
	err := failed("Load stats", inner)

	var gwErr *internal.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 502, gwErr.StatusCode)

	assert.Equal(t, "Load stats failed: HTTP 502", err.Error())
}
