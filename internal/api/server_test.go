package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/worker"
)

type fixture struct {
	pool    *worker.Pool
	bus     *events.Bus
	metrics *metrics.Metrics
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bus := events.NewBus()

	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		Name:       "api",
		NumWorkers: 2,
		Logger:     logger.New(io.Discard, logger.LevelInfo),
		Metrics:    m,
		Events:     bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	return &fixture{
		pool:    pool,
		bus:     bus,
		metrics: m,
		server:  NewServer(":0", pool, bus, m, reg),
	}
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.Equal(t, f.pool.ID(), status.ID)
	require.Equal(t, "api", status.Name)
	require.True(t, status.Running)
	require.Equal(t, 2, status.NumWorkers)
	require.Equal(t, 2, status.Workers)
}

func TestHandleStatusAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.pool.Shutdown()

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var status StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.False(t, status.Running)
	require.Equal(t, 0, status.Workers)
	require.Equal(t, 0, status.Alive)
}

func TestHandleMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/status", "/api/metrics"} {
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestHandleMetrics(t *testing.T) {
	f := newFixture(t)

	for range 5 {
		require.NoError(t, f.pool.Submit(func() {}))
	}
	f.pool.Shutdown()

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Equal(t, uint64(5), snap.Submitted)
	require.Equal(t, uint64(5), snap.Completed)
}

func TestPrometheusEndpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pool.Submit(func() {}))
	f.pool.Shutdown()

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `threadpool_tasks_submitted_total{pool="api"} 1`), body)
	require.True(t, strings.Contains(body, `threadpool_workers{pool="api"} 0`), body)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.server.StatusInterval = time.Hour

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	defer conn.Close()

	// the handler subscribes after the handshake completes
	require.Eventually(t, func() bool { return f.bus.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	f.pool.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	require.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	require.Equal(t, events.EventPoolStopping, msg.Event.Type)
	require.Equal(t, f.pool.ID(), msg.Event.PoolID)
}

func TestWebSocketStatusFrames(t *testing.T) {
	f := newFixture(t)
	f.server.StatusInterval = 10 * time.Millisecond

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	require.Equal(t, "status", msg.Type)
	require.NotNil(t, msg.Status)
	require.Equal(t, "api", msg.Status.Name)
}
