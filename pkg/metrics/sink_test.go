package metrics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJSONLSink_WritesEnvelopeRecords(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLSink(&buf, "run-1")

	ctx := context.Background()
	require.NoError(t, s.Observe(ctx, Observation{Step: 100, Name: NameValLoss, Value: 2.5}))
	require.NoError(t, s.Observe(ctx, Observation{Step: 200, Name: NameValLoss, Value: 2.1}))
	require.NoError(t, s.Close())

	scanner := bufio.NewScanner(&buf)
	var records []Record
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}

	require.Len(t, records, 2)
	assert.Equal(t, TypeMetric, records[0].Type)
	assert.Equal(t, "run-1", records[0].RunID)

	var obs Observation
	require.NoError(t, json.Unmarshal(records[1].Data, &obs))
	assert.Equal(t, int64(200), obs.Step)
	assert.Equal(t, 2.1, obs.Value)
}

func TestJSONLSink_ObserveAfterClose(t *testing.T) {
	s := NewJSONLSink(&bytes.Buffer{}, "run-1")
	require.NoError(t, s.Close())

	err := s.Observe(context.Background(), Observation{Step: 1, Name: NameValLoss, Value: 1})
	assert.ErrorIs(t, err, ErrSinkClosed)
}

// recordingSink captures observations for assertions.
type recordingSink struct {
	mu     sync.Mutex
	seen   []Observation
	closed bool
}

func (r *recordingSink) Observe(_ context.Context, obs Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, obs)
	return nil
}

func (r *recordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestAsyncSink_PreservesOrder(t *testing.T) {
	rec := &recordingSink{}
	s := NewAsyncSink(rec, 128, zap.NewNop())

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Observe(ctx, Observation{Step: int64(i), Name: NameValLoss, Value: float64(i)}))
	}
	require.NoError(t, s.Close())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.seen, 50)
	for i, obs := range rec.seen {
		assert.Equal(t, int64(i), obs.Step)
	}
	assert.True(t, rec.closed)
}

func TestAsyncSink_FullBufferDropsWithoutBlocking(t *testing.T) {
	block := make(chan struct{})
	slow := &blockingSink{release: block}
	s := NewAsyncSink(slow, 1, zap.NewNop())

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = s.Observe(ctx, Observation{Step: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Observe blocked on a full buffer")
	}

	close(block)
	require.NoError(t, s.Close())
	assert.Greater(t, s.Dropped(), int64(0))
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Observe(_ context.Context, _ Observation) error {
	<-b.release
	return nil
}

func (b *blockingSink) Close() error { return nil }

func TestMultiSink_FansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{a, b}

	require.NoError(t, m.Observe(context.Background(), Observation{Step: 7, Name: NameTrainLoss, Value: 1.1}))
	require.NoError(t, m.Close())

	assert.Len(t, a.seen, 1)
	assert.Len(t, b.seen, 1)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
