package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepStaleUploads(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	touch := func(name string, age time.Duration) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}

	old := touch("upload-111.pdf", 2*time.Hour)
	fresh := touch("upload-222.pdf", time.Minute)
	unrelated := touch("report.pdf", 5*time.Hour)

	removed, err := SweepStaleUploads(dir, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestSweepStaleUploadsMissingDir(t *testing.T) {
	removed, err := SweepStaleUploads(filepath.Join(t.TempDir(), "missing"), time.Hour, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, removed)
}
