package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStorePut(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)

	err := store.Put(context.Background(), "run-1/state.json", []byte(`{"ok":true}`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "state.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestDirStorePutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state.json", []byte("first")))
	require.NoError(t, store.Put(ctx, "state.json", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDirStorePutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)

	require.NoError(t, store.Put(context.Background(), "a.json", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestDirStorePutCancelledContext(t *testing.T) {
	store := NewDirStore(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Put(ctx, "state.json", []byte("x"))
	require.Error(t, err)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "put", storeErr.Op)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestS3ConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{"valid minimal", S3Config{Bucket: "artifacts"}, false},
		{"missing bucket", S3Config{}, true},
		{"access key without secret", S3Config{Bucket: "b", AccessKeyID: "AKIA"}, true},
		{"secret without access key", S3Config{Bucket: "b", SecretAccessKey: "shh"}, true},
		{"both credentials", S3Config{Bucket: "b", AccessKeyID: "AKIA", SecretAccessKey: "shh"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
