package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/amapiano-ml/trainwatch/pkg/artifact"
)

// File names within a run directory.
const (
	StateFile     = "orchestrator_state.json"
	MilestoneFile = "milestone_metrics.json"
	AbortFile     = "abort_report.json"
)

// Store persists run records under an on-disk directory.
//
// Directory layout:
//
//	<root>/<run_id>/orchestrator_state.json
//	<root>/<run_id>/milestone_metrics.json
//	<root>/<run_id>/abort_report.json
//
// Writes go through a temp file and rename so readers never observe a
// partial document. An optional artifact mirror receives a copy of each
// document; mirror failures are reported but never block the write.
type Store struct {
	root   string
	mirror artifact.Store
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

// WithMirror returns a copy of the store that also uploads each saved
// document to the given artifact store.
func (s *Store) WithMirror(mirror artifact.Store) *Store {
	return &Store{root: s.root, mirror: mirror}
}

// RootDir returns the store's root directory.
func (s *Store) RootDir() string {
	return s.root
}

// RunDir returns the directory holding documents for a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *Store) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("checkpoint root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Save writes the run record. A MirrorError is returned when the local
// write succeeded but the mirror upload failed; callers that only care
// about durability may ignore it.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("checkpoint record is nil")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("run_id is required")
	}
	return s.writeDoc(ctx, rec.RunID, StateFile, rec)
}

// SaveMilestone writes the milestone metrics document for a run.
func (s *Store) SaveMilestone(ctx context.Context, runID string, metrics any) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run_id is required")
	}
	return s.writeDoc(ctx, runID, MilestoneFile, metrics)
}

// WriteAbortReport writes the abort report for a run.
func (s *Store) WriteAbortReport(ctx context.Context, runID string, report *AbortReport) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run_id is required")
	}
	if report == nil {
		return fmt.Errorf("abort report is nil")
	}
	return s.writeDoc(ctx, runID, AbortFile, report)
}

func (s *Store) writeDoc(ctx context.Context, runID, name string, doc any) error {
	if err := s.ensureRoot(); err != nil {
		return err
	}

	runDir := s.RunDir(runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(runDir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(runDir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, path.Join(runID, name), b); err != nil {
			return &MirrorError{Name: path.Join(runID, name), Err: err}
		}
	}
	return nil
}

// Load reads the record for a run. Returns (nil, nil) when no record
// exists so absent state reads as a fresh start.
func (s *Store) Load(ctx context.Context, runID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	b, err := os.ReadFile(filepath.Join(s.RunDir(runID), StateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("%s is empty", StateFile)
	}

	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", StateFile, err)
	}
	return &rec, nil
}

// Latest returns the most recently written record across all runs, or
// (nil, nil) when the store holds none.
func (s *Store) Latest(ctx context.Context) (*Record, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// List returns all run records, newest first. Runs whose state file
// cannot be parsed are skipped.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.root) == "" {
		return nil, fmt.Errorf("checkpoint root dir is empty")
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(s.root), "*/"+StateFile)
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint root: %w", err)
	}

	out := make([]Record, 0, len(matches))
	for _, m := range matches {
		runID := path.Dir(m)
		rec, err := s.Load(ctx, runID)
		if err != nil || rec == nil {
			continue
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// MirrorError indicates the local write succeeded but mirroring failed.
type MirrorError struct {
	Name string
	Err  error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror %s: %v", e.Name, e.Err)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}
