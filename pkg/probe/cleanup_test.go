package probe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFileAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

// runCleanup confines the sweep to the test directory via the explicit
// roots override.
func runCleanup(t *testing.T, dir string, dryRun bool) map[string]any {
	t.Helper()
	cfg := Config{
		TempFileMinAge: time.Hour,
		TempFileRoots:  []string{dir},
	}
	res := cleanupTempFiles(context.Background(), DetectPlatform(), cfg, dryRun)
	require.NotNil(t, res)
	return res.Data
}

func TestCleanupTempFiles(t *testing.T) {
	t.Run("removes stale files and keeps fresh ones", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAged(t, filepath.Join(dir, "old.log"), 2*time.Hour)
		writeFileAged(t, filepath.Join(dir, "older.tmp"), 48*time.Hour)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.tmp"), []byte("x"), 0o644))

		data := runCleanup(t, dir, false)
		assert.Equal(t, 2, data["files_removed"])
		assert.Equal(t, 0, data["error_count"])

		_, err := os.Stat(filepath.Join(dir, "fresh.tmp"))
		assert.NoError(t, err, "fresh file must survive")
		_, err = os.Stat(filepath.Join(dir, "old.log"))
		assert.True(t, os.IsNotExist(err), "stale file must be gone")
	})

	t.Run("dry run deletes nothing", func(t *testing.T) {
		dir := t.TempDir()
		writeFileAged(t, filepath.Join(dir, "old.log"), 2*time.Hour)

		data := runCleanup(t, dir, true)
		assert.Equal(t, 1, data["files_removed"])
		assert.Equal(t, true, data["dry_run"])

		_, err := os.Stat(filepath.Join(dir, "old.log"))
		assert.NoError(t, err, "dry run must not delete")
	})

	t.Run("symlinks are skipped", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlink creation needs privileges on windows")
		}
		dir := t.TempDir()
		target := filepath.Join(dir, "target.log")
		writeFileAged(t, target, 2*time.Hour)
		link := filepath.Join(dir, "link.log")
		require.NoError(t, os.Symlink(target, link))
		stamp := time.Now().Add(-2 * time.Hour)
		_ = os.Chtimes(link, stamp, stamp)

		runCleanup(t, dir, false)

		_, err := os.Lstat(link)
		assert.NoError(t, err, "symlink must survive")
	})

	t.Run("descends into subdirectories but keeps them", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "cache")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		writeFileAged(t, filepath.Join(sub, "stale.dat"), 3*time.Hour)

		data := runCleanup(t, dir, false)
		assert.Equal(t, 1, data["files_removed"])

		info, err := os.Stat(sub)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestRootDenied(t *testing.T) {
	tests := []struct {
		platform string
		dir      string
		denied   bool
	}{
		{PlatformLinux, "/", true},
		{PlatformLinux, "/home", true},
		{PlatformLinux, "/tmp", false},
		{PlatformMacOS, "/Users", true},
		{PlatformMacOS, "/tmp", false},
		{PlatformWindows, `C:\Users`, true},
		{PlatformWindows, `C:\Temp`, false},
	}
	for _, tt := range tests {
		if got := rootDenied(tt.platform, tt.dir); got != tt.denied {
			t.Errorf("rootDenied(%s, %s) = %v, want %v", tt.platform, tt.dir, got, tt.denied)
		}
	}
}
