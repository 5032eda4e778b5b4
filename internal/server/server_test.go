package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amapiano-ml/trainwatch/pkg/metrics"
	"github.com/amapiano-ml/trainwatch/pkg/orchestrator"
)

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := New("127.0.0.1", 0, WithVersion("1.2.3"))

	rec := doRequest(t, srv, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestVersion(t *testing.T) {
	srv := New("127.0.0.1", 0, WithVersion("0.9.0"))

	rec := doRequest(t, srv, http.MethodGet, "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "0.9.0", resp.Version)
}

func TestNotFound(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := doRequest(t, srv, http.MethodGet, "/does-not-exist")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := doRequest(t, srv, http.MethodPost, "/version")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Error.Code)
}

func TestStatusWithoutRun(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := doRequest(t, srv, http.MethodGet, "/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "NO_ACTIVE_RUN", resp.Error.Code)
}

func TestStatusWithRun(t *testing.T) {
	loss := 2.9
	snap := &orchestrator.Snapshot{
		RunID:        "run-1",
		CurrentEpoch: 4,
		GlobalStep:   2000,
		BestValLoss:  &loss,
		StartedAt:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ElapsedHours: 6,
		CostUSD:      7.8,
	}
	srv := New("127.0.0.1", 0, WithSnapshot(func() *orchestrator.Snapshot { return snap }))

	rec := doRequest(t, srv, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got orchestrator.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(2000), got.GlobalStep)
	require.NotNil(t, got.BestValLoss)
	assert.Equal(t, 2.9, *got.BestValLoss)
}

func TestRecentMetrics(t *testing.T) {
	ctx := context.Background()
	history, err := metrics.OpenHistory(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = history.Close() }()

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, history.Append(ctx, "run-1", metrics.Observation{
			Step:  int64(100 * (i + 1)),
			Name:  metrics.NameValLoss,
			Value: 4.0 - float64(i),
			At:    at.Add(time.Duration(i) * time.Minute),
		}))
	}

	snap := &orchestrator.Snapshot{RunID: "run-1"}
	srv := New("127.0.0.1", 0,
		WithSnapshot(func() *orchestrator.Snapshot { return snap }),
		WithHistory(history))

	rec := doRequest(t, srv, http.MethodGet, "/metrics/recent?n=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RecentMetricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, resp.Observations, 2)
	// Oldest first within the window.
	assert.Equal(t, int64(200), resp.Observations[0].Step)
	assert.Equal(t, int64(300), resp.Observations[1].Step)
}

func TestRecentMetricsInvalidN(t *testing.T) {
	ctx := context.Background()
	history, err := metrics.OpenHistory(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = history.Close() }()

	snap := &orchestrator.Snapshot{RunID: "run-1"}
	srv := New("127.0.0.1", 0,
		WithSnapshot(func() *orchestrator.Snapshot { return snap }),
		WithHistory(history))

	rec := doRequest(t, srv, http.MethodGet, "/metrics/recent?n=zero")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentMetricsWithoutHistory(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := doRequest(t, srv, http.MethodGet, "/metrics/recent")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
