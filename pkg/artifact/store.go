// Package artifact provides durable stores for run artifacts (milestone
// metrics, abort reports, checkpoint records).
//
// The checkpoint manager writes its primary copies to the local
// checkpoint directory and mirrors them to an optional secondary Store
// (typically S3) on a best-effort basis.
package artifact

import "context"

// Store persists named artifact payloads.
type Store interface {
	// Put writes data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
}

// StoreError wraps a failed store operation with its context.
type StoreError struct {
	Op   string
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return "artifact store: " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
