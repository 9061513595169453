package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mediafetch/gateway"
	"mediafetch/internal"
	"mediafetch/internal/testbackend"
)

func TestBatchTextFile(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	path := filepath.Join(t.TempDir(), "links.txt")
	content := "# weekend queue\nhttps://youtu.be/a\n\nhttps://www.reddit.com/r/videos/comments/x\nhttps://example.com/nothing\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	res := runCLI(t, backend, "", "batch", "-q", "480p", path)

	require.Error(t, res.err)
	assert.Equal(t, "1 of 3 links could not be queued", res.err.Error())
	assert.Equal(t, 2, backend.JobCount())
	assert.Contains(t, res.stdout, "line 2: https://youtu.be/a queued as ")
	assert.Contains(t, res.stdout, "line 4: https://www.reddit.com/r/videos/comments/x queued as ")
	assert.Contains(t, res.stdout, "Queued 2 of 3 links, YouTube: 1, Reddit: 1")
	assert.Contains(t, res.stderr, "line 5: Start download failed: Unsupported platform or invalid URL")

	for _, req := range backend.RequestsTo("POST", "/api/media/download") {
		assert.Contains(t, string(req.Body), `"quality":"480p"`)
	}
}

func TestBatchRejectsEmptyAndMissingFiles(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	res := runCLI(t, backend, "", "batch", filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "failed to read")

	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing here\n"), 0644))
	res = runCLI(t, backend, "", "batch", path)
	require.Error(t, res.err)

	res = runCLI(t, backend, "", "batch", "-p", "geocities", path)
	var verr *internal.ValidationError
	require.ErrorAs(t, res.err, &verr)
	assert.Equal(t, "platform", verr.Field)

	assert.Empty(t, backend.Requests())
}

func TestBatchWorkbookWatch(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	path := filepath.Join(t.TempDir(), "links.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "title"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "URL"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "first"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "https://youtu.be/first"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "second"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "https://www.instagram.com/p/second"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	// a job queued earlier stays active and must not keep the batch waiting
	backend.AddJob(internal.Job{ID: "older", URL: "https://youtu.be/old", Status: internal.JobDownloading, Progress: 5})

	done := make(chan cliResult, 1)
	go func() {
		done <- runCLI(t, backend, "", "batch", "--watch", path)
	}()

	require.Eventually(t, func() bool { return backend.JobCount() == 3 }, 5*time.Second, 10*time.Millisecond)
	jobs, err := gateway.New(backend.URL()).ListJobs(context.Background(), internal.ListOptions{})
	require.NoError(t, err)
	for _, job := range jobs {
		if job.ID == "older" {
			continue
		}
		backend.Script(job.ID,
			testbackend.JobStep{Status: internal.JobDownloading, Progress: 50},
			testbackend.JobStep{Status: internal.JobCompleted, Progress: 100, Filename: job.ID + ".mp4", Payload: []byte("x")},
		)
	}

	var res cliResult
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch --watch did not finish")
	}

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "line 2: https://youtu.be/first queued as ")
	assert.Contains(t, res.stdout, "line 3: https://www.instagram.com/p/second queued as ")
	assert.Contains(t, res.stdout, "Queued 2 of 2 links, YouTube: 1, Instagram: 1")
	assert.Contains(t, res.stdout, "completed: 2")

	older, ok := backend.Job("older")
	require.True(t, ok)
	assert.Equal(t, internal.JobDownloading, older.Status)
}

func TestBatchWatchBeyondListWindow(t *testing.T) {
	cliEnv(t)
	backend := testbackend.Start(t)

	var links strings.Builder
	for i := 0; i < 51; i++ {
		fmt.Fprintf(&links, "https://youtu.be/clip-%02d\n", i)
	}
	path := filepath.Join(t.TempDir(), "links.txt")
	require.NoError(t, os.WriteFile(path, []byte(links.String()), 0644))

	done := make(chan cliResult, 1)
	go func() {
		done <- runCLI(t, backend, "", "batch", "--watch", path)
	}()

	require.Eventually(t, func() bool { return backend.JobCount() == 51 }, 8*time.Second, 10*time.Millisecond)
	jobs, err := gateway.New(backend.URL()).ListJobs(context.Background(), internal.ListOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, jobs, 51)
	for _, job := range jobs {
		backend.Advance(job.ID, testbackend.JobStep{Status: internal.JobCompleted, Progress: 100, Filename: job.ID + ".mp4", Payload: []byte("x")})
	}

	var res cliResult
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch --watch did not finish")
	}

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Queued 51 of 51 links, YouTube: 51")
	assert.Positive(t, backend.CountPrefix("/api/media/status/"), "the job outside the list window is looked up directly")
}
