package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// DirStore writes artifacts into a local directory using a
// write-temp-then-rename pattern so readers never observe partial files.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at the given directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: strings.TrimSpace(root)}
}

// Root returns the store's root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Put atomically writes data to <root>/<name>, creating parent
// directories as needed.
func (s *DirStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "put", Name: name, Err: err}
	}

	path := filepath.Join(s.root, filepath.FromSlash(name))
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StoreError{Op: "put", Name: name, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return &StoreError{Op: "put", Name: name, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &StoreError{Op: "put", Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreError{Op: "put", Name: name, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StoreError{Op: "put", Name: name, Err: err}
	}
	return nil
}

var _ Store = (*DirStore)(nil)
