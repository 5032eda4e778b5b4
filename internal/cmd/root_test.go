package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{"set all values", "1.0.0", "abc123", "2026-08-15"},
		{"set dev version", "dev", "HEAD", "unknown"},
		{"set empty values", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 0, exitCodeFor(nil))
	assert.Equal(t, 1, exitCodeFor(errors.New("plain error")))
	assert.Equal(t, 2, exitCodeFor(exitError(ExitEscalation, "no-go", nil)))
	assert.Equal(t, 7, exitCodeFor(exitError(7, "custom", errors.New("inner"))))
}

func TestCodedErrorMessage(t *testing.T) {
	err := exitError(3, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", err.Error())

	bare := exitError(3, "outer", nil)
	assert.Equal(t, "outer", bare.Error())

	var coded *codedError
	assert.True(t, errors.As(err, &coded))
	assert.Equal(t, "inner", coded.Unwrap().Error())
}
