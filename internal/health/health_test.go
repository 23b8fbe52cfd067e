package health

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlive/meridian-go/internal/collector"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestServer(t *testing.T, status collector.Status) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_collector_collections_total",
		Help: "Collection runs by outcome.",
	})
	reg.MustRegister(counter)
	counter.Inc()

	srv := New(":0", func() collector.Status { return status }, reg, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthzReportsLastRun(t *testing.T) {
	lastRun := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestServer(t, collector.Status{LastRun: lastRun, Ran: true})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status    string `json:"status"`
		LastRun   string `json:"last_run"`
		LastError string `json:"last_error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "2025-06-01T12:00:00Z", body.LastRun)
	assert.Empty(t, body.LastError)
}

func TestHealthzDegradedAfterFailedRun(t *testing.T) {
	ts := newTestServer(t, collector.Status{
		LastRun: time.Now(),
		LastErr: errors.New("platform unreachable"),
		Ran:     true,
	})

	status, body := getBody(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status, "liveness stays up while the process runs")
	assert.Contains(t, body, "degraded")
	assert.Contains(t, body, "platform unreachable")
}

func TestReadyz(t *testing.T) {
	t.Run("not ready before first run", func(t *testing.T) {
		ts := newTestServer(t, collector.Status{})
		status, body := getBody(t, ts.URL+"/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, body, "no collection run has completed")
	})

	t.Run("not ready after failed run", func(t *testing.T) {
		ts := newTestServer(t, collector.Status{Ran: true, LastErr: errors.New("disk full")})
		status, _ := getBody(t, ts.URL+"/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})

	t.Run("ready after clean run", func(t *testing.T) {
		ts := newTestServer(t, collector.Status{Ran: true, LastRun: time.Now()})
		status, body := getBody(t, ts.URL+"/readyz")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ready", body)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, collector.Status{Ran: true})

	status, body := getBody(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "meridian_collector_collections_total 1")
}
