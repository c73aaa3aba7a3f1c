package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/theatre"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo creates a temporary charm repository, writes files (paths
// relative to the repository root) and initializes its .theatre directory.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, files map[string]string) (string, theatre.Layout) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	for name, content := range files {
		path := filepath.Join(absPath, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "Failed to write %s", name)
	}

	layout, err := theatre.Init(absPath)
	require.NoError(t, err, "Failed to init theatre repo")

	return absPath, layout
}
