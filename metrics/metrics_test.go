package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveRequest(t *testing.T) {
	c := New()

	c.ObserveRequest("list_jobs", OutcomeOK, 10*time.Millisecond)
	c.ObserveRequest("list_jobs", OutcomeOK, 20*time.Millisecond)
	c.ObserveRequest("list_jobs", OutcomeTransport, time.Millisecond)
	c.ObserveRequest("cosplay_suggestions", OutcomeSkipped, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("list_jobs", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("list_jobs", OutcomeTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("cosplay_suggestions", OutcomeSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration, "mediafetch_gateway_request_duration_seconds"))
}

func TestCollector_ObservePoll(t *testing.T) {
	c := New()

	c.ObservePoll(nil)
	c.ObservePoll(errors.New("refused"))
	c.ObservePoll(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.pollTicks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollTicks.WithLabelValues("error")))
}

func TestCollector_SetJobsReplaces(t *testing.T) {
	c := New()

	c.SetJobs(map[string]int{"pending": 2, "downloading": 1})
	c.SetJobs(map[string]int{"completed": 3})

	assert.Equal(t, 1, testutil.CollectAndCount(c.jobs))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.jobs.WithLabelValues("completed")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ObserveRequest("stats", OutcomeOK, time.Second)
		c.ObservePoll(nil)
		c.SetJobs(map[string]int{"pending": 1})
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveRequest("stats", OutcomeOK, time.Millisecond)

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mediafetch_gateway_requests_total{op="stats",outcome="ok"} 1`)
}
