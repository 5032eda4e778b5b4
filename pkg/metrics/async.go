package metrics

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// AsyncSink decouples a slow sink from the supervision loop.
//
// Observations are buffered on a bounded channel and drained by a single
// goroutine, so delivery order (and therefore step order) is preserved.
// When the buffer is full the observation is dropped and counted rather
// than blocking the caller: the loop must never stall behind a sink.
type AsyncSink struct {
	inner  Sink
	ch     chan Observation
	logger *zap.Logger

	dropped atomic.Int64
	errs    atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	closed    atomic.Bool
}

// DefaultAsyncBuffer is the default channel capacity.
const DefaultAsyncBuffer = 1024

// NewAsyncSink wraps inner with a bounded asynchronous buffer.
func NewAsyncSink(inner Sink, buffer int, logger *zap.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AsyncSink{
		inner:  inner,
		ch:     make(chan Observation, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *AsyncSink) drain() {
	defer close(s.done)
	for obs := range s.ch {
		if err := s.inner.Observe(context.Background(), obs); err != nil {
			s.errs.Add(1)
			s.logger.Debug("metrics sink observe failed",
				zap.String("name", obs.Name),
				zap.Int64("step", obs.Step),
				zap.Error(err))
		}
	}
}

// Observe enqueues the observation without blocking. A full buffer drops
// the observation.
func (s *AsyncSink) Observe(ctx context.Context, obs Observation) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	select {
	case s.ch <- obs:
		return nil
	default:
		s.dropped.Add(1)
		return nil
	}
}

// Dropped returns the number of observations discarded so far.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close drains the buffer, closes the wrapped sink, and reports any
// dropped observations.
func (s *AsyncSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		<-s.done

		if n := s.dropped.Load(); n > 0 {
			s.logger.Warn("metrics observations dropped under backpressure",
				zap.Int64("dropped", n))
		}
		if n := s.errs.Load(); n > 0 {
			s.logger.Warn("metrics sink errors during run", zap.Int64("errors", n))
		}

		err = s.inner.Close()
	})
	return err
}

var _ Sink = (*AsyncSink)(nil)
