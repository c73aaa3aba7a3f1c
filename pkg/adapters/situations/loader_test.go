package situations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadMounts(t *testing.T) {
	root := t.TempDir()
	fooDir := filepath.Join(root, "default", "foo")
	require.NoError(t, os.MkdirAll(fooDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(fooDir, SpecFile), []byte("foo:\n  mounts:\n    /opt/baz/: kazoo\n    /abs: /srv/data\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "degraded", "bar"), 0o755))

	cfg, err := NewLoader(root).LoadMounts()
	require.NoError(t, err)

	assert.Equal(t, domain.ContainerMounts{
		"/opt/baz/": filepath.Join(fooDir, "kazoo"),
		"/abs":      "/srv/data",
	}, cfg["default"]["foo"])
	assert.Contains(t, cfg, "degraded")
	assert.Empty(t, cfg["degraded"])
}

func TestLoader_MissingRoot(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "nope")).LoadMounts()
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestLoader_InvalidSpec(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "default", "foo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SpecFile), []byte("foo: [unclosed"), 0o644))

	_, err := NewLoader(root).LoadMounts()
	assert.Error(t, err)
}

func TestScaffold(t *testing.T) {
	repo := t.TempDir()
	meta := filepath.Join(repo, "metadata.yaml")
	require.NoError(t, os.WriteFile(meta, []byte("name: roberto\ncontainers:\n  foo: {}\n  bar:\n    resource: img\n"), 0o644))

	names, err := ReadContainers(meta)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, names)

	root := filepath.Join(repo, ".theatre", "virtual_fs")
	require.NoError(t, Scaffold(root, "", names))
	assert.FileExists(t, filepath.Join(root, "default", "foo", SpecFile))

	cfg, err := NewLoader(root).LoadMounts()
	require.NoError(t, err)
	assert.Contains(t, cfg["default"], "foo")
	assert.Empty(t, cfg["default"]["foo"])
}

func TestLoader_Watch(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := NewLoader(root).Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "default", "foo"), 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "default", "foo", SpecFile), []byte("foo: {}\n"), 0o644))

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change signal")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
