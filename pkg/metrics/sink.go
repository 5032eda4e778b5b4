package metrics

import (
	"context"
	"errors"
	"time"
)

// Observation is one append-only (step, name, value) metric sample.
type Observation struct {
	Step  int64     `json:"step"`
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Metric names emitted by the orchestrator.
const (
	NameTrainLoss = "loss/train"
	NameValLoss   = "loss/validation"
)

// Sink receives metric observations for external visualization.
//
// Implementations must tolerate being called from the single supervision
// loop at line rate. Observe errors are logged by the caller and never
// stop the loop.
type Sink interface {
	// Observe records one observation.
	Observe(ctx context.Context, obs Observation) error

	// Close flushes buffered observations and releases resources.
	Close() error
}

// ErrSinkClosed is returned by Observe after Close.
var ErrSinkClosed = errors.New("metrics sink is closed")

// MultiSink fans observations out to several sinks. The first error is
// returned, but every sink still sees each observation.
type MultiSink []Sink

// Observe forwards the observation to every sink.
func (m MultiSink) Observe(ctx context.Context, obs Observation) error {
	var firstErr error
	for _, s := range m {
		if err := s.Observe(ctx, obs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink.
func (m MultiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time check.
var _ Sink = (MultiSink)(nil)
