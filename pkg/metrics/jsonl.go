package metrics

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Record is the JSONL envelope written for every observation.
type Record struct {
	Type  string          `json:"type"`
	TS    time.Time       `json:"ts"`
	RunID string          `json:"run_id"`
	Data  json.RawMessage `json:"data"`
}

// TypeMetric is the record type for metric observations.
const TypeMetric = "metric"

// JSONLSink writes observations as newline-delimited JSON to an
// io.Writer.
//
// JSONLSink is safe for concurrent use. Writes are serialized with a
// mutex so record lines are never interleaved.
type JSONLSink struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLSink creates a sink writing envelope records tagged with the
// given run ID.
func NewJSONLSink(w io.Writer, runID string) *JSONLSink {
	return &JSONLSink{w: w, runID: runID}
}

// Observe writes one observation as a complete JSONL line.
func (s *JSONLSink) Observe(ctx context.Context, obs Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	rec := Record{
		Type:  TypeMetric,
		TS:    time.Now().UTC(),
		RunID: s.runID,
		Data:  data,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	return writeAll(s.w, line)
}

// Close marks the sink as closed. The underlying writer is not closed;
// the caller owns it.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeAll writes all bytes to w, handling short writes. io.Writer is
// allowed to return n < len(p) with nil error, which would silently
// truncate JSONL lines.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Sink = (*JSONLSink)(nil)
