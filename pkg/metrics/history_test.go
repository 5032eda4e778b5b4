package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(ctx, filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, "run-1", Observation{
			Step:  int64(i * 100),
			Name:  NameValLoss,
			Value: 4.0 - float64(i)*0.5,
			At:    at.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Another run must not leak into run-1 results.
	require.NoError(t, h.Append(ctx, "run-2", Observation{Step: 1, Name: NameValLoss, Value: 9}))

	got, err := h.Recent(ctx, "run-1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first within the window.
	assert.Equal(t, int64(200), got[0].Step)
	assert.Equal(t, int64(400), got[2].Step)
	assert.Equal(t, 2.0, got[2].Value)
}

func TestHistory_RecentEmptyRun(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(ctx, filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	got, err := h.Recent(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistorySink_Observe(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(ctx, filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	s := NewHistorySink(h, "run-9")
	require.NoError(t, s.Observe(ctx, Observation{Step: 42, Name: NameTrainLoss, Value: 1.5}))
	require.NoError(t, s.Close())

	got, err := h.Recent(ctx, "run-9", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].Step)
}
