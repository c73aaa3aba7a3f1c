package theatre_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/pkg/adapters/memory"
	"github.com/aretw0/theatre/pkg/adapters/script"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScene(t *testing.T, reg *registry.Registry, opts ...theatre.Option) *theatre.Scene {
	t.Helper()
	base := []theatre.Option{
		theatre.WithContextFactory(reg),
		theatre.WithScratchDir(t.TempDir()),
	}
	scene, err := theatre.New("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scene.Close() })
	return scene
}

func installCharm() *registry.Registry {
	reg := registry.NewRegistry()
	reg.Handle("install", func(c *registry.Call) (*domain.State, error) {
		c.Printf("installing\n")
		return c.State.Replace(func(s *domain.State) {
			s.UnitStatus = domain.Status{Name: "maintenance", Message: "installed"}
		}), nil
	})
	reg.Handle("start", func(c *registry.Call) (*domain.State, error) {
		c.Log("INFO", "leader=%v", c.State.Leader)
		return c.State.Replace(func(s *domain.State) {
			s.UnitStatus = domain.Status{Name: "active"}
		}), nil
	})
	return reg
}

func TestNew_RequiresExecutionContext(t *testing.T) {
	_, err := theatre.New("")
	assert.ErrorIs(t, err, theatre.ErrNoExecutionContext)

	_, err = theatre.New(t.TempDir())
	assert.ErrorIs(t, err, theatre.ErrNoExecutionContext, "a repository without runner.yaml has no context")
}

func TestScene_EvaluateChain(t *testing.T) {
	reg := installCharm()
	scene := newScene(t, reg)
	ctx := context.Background()

	root, err := scene.AddNode("fresh")
	require.NoError(t, err)
	installed, err := scene.AddNode("installed")
	require.NoError(t, err)
	started, err := scene.AddNode("started")
	require.NoError(t, err)

	_, err = scene.Connect(root.ID, installed.ID, domain.NewEventSpec("install"))
	require.NoError(t, err)
	_, err = scene.Connect(installed.ID, started.ID, domain.NewEventSpec("start"))
	require.NoError(t, err)

	out, err := scene.Evaluate(ctx, started.ID)
	require.NoError(t, err)
	require.False(t, out.Failed())
	assert.Equal(t, "active", out.State.UnitStatus.Name)
	assert.Equal(t, []string{"install", "start"}, reg.History())

	info, err := scene.Node(installed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFresh, info.Status)
	assert.Equal(t, "installing\n", info.Output.SideChannel)

	ids, err := scene.Trace(started.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{root.ID, installed.ID, started.ID}, ids)

	_, err = scene.Evaluate(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Calls(), "memoized outputs are reused")
}

func TestScene_DeltaFromLibrary(t *testing.T) {
	reg := installCharm()
	leader := domain.NewDelta("leader", func(s *domain.State) (*domain.State, error) {
		return s.Replace(func(s *domain.State) { s.Leader = true }), nil
	})
	scene := newScene(t, reg, theatre.WithDeltaLibrary(script.NewLibrary("", script.WithDelta(leader))))
	ctx := context.Background()

	root, _ := scene.AddNode("fresh")
	started, _ := scene.AddNode("started")

	deltaID, err := scene.AddDelta(root.ID, "leader")
	require.NoError(t, err)
	assert.Equal(t, root.ID+"#leader", deltaID)

	_, err = scene.Connect(deltaID, started.ID, domain.NewEventSpec("start"))
	require.NoError(t, err)

	out, err := scene.Evaluate(ctx, started.ID)
	require.NoError(t, err)
	require.False(t, out.Failed())
	require.Len(t, out.ComponentLogs, 1)
	assert.Equal(t, "leader=true", out.ComponentLogs[0].Message)

	_, err = scene.AddDelta(root.ID, "unknown")
	assert.ErrorIs(t, err, domain.ErrDeltaNotFound)
}

func TestScene_SaveLoadPreservesIdentity(t *testing.T) {
	reg := installCharm()
	store := memory.NewStore()
	scene := newScene(t, reg, theatre.WithStore(store), theatre.WithName("demo"))
	ctx := context.Background()

	root, _ := scene.AddNode("fresh")
	installed, _ := scene.AddNode("installed")
	edgeID, err := scene.Connect(root.ID, installed.ID, domain.NewEventSpec("install"))
	require.NoError(t, err)
	_, err = scene.SetCustomValue(ctx, root.ID, &domain.State{Leader: true})
	require.NoError(t, err)
	require.NoError(t, scene.Save(ctx))

	names, err := scene.Scenes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, names)

	other := newScene(t, reg, theatre.WithStore(store))
	require.NoError(t, other.Load(ctx, "demo"))
	assert.Equal(t, "demo", other.Name())

	nodes := other.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, root.ID, nodes[0].ID)
	assert.True(t, nodes[0].Custom)
	assert.Equal(t, domain.StatusDirty, nodes[1].Status)

	edges := other.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, edgeID, edges[0].ID)

	out, err := other.Evaluate(ctx, installed.ID)
	require.NoError(t, err)
	assert.True(t, out.State.Leader)

	assert.ErrorIs(t, other.Load(ctx, "missing"), domain.ErrSceneNotFound)
}

func TestScene_ReloadDirtiesRoots(t *testing.T) {
	reg := installCharm()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "cfg"), []byte("v1"), 0o644))

	loader := memory.NewLoader(nil)
	scene := newScene(t, reg, theatre.WithMountLoader(loader),
		theatre.WithBaseState(&domain.State{Containers: []domain.Container{{Name: "foo"}}}))
	ctx := context.Background()

	root, _ := scene.AddNode("fresh")
	out, err := scene.Evaluate(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, out.State.Containers[0].Mounts)

	loader.Set(domain.MountConfig{"default": {"foo": {"/etc/foo": src}}})
	require.NoError(t, scene.Reload())

	info, err := scene.Node(root.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDirty, info.Status)

	out, err = scene.Evaluate(ctx, root.ID)
	require.NoError(t, err)
	mount, ok := out.State.Containers[0].Mounts["/etc/foo"]
	require.True(t, ok)
	data, err := os.ReadFile(filepath.Join(mount.Src, "cfg"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	scene.SetSituation("degraded")
	assert.Equal(t, "degraded", scene.Situation())
	out, err = scene.Evaluate(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, out.State.Containers[0].Mounts)
}

func TestScene_WatchRequiresWatchableLoader(t *testing.T) {
	scene := newScene(t, installCharm())
	_, err := scene.Watch(context.Background())
	assert.Error(t, err)
}

func TestInit_ScaffoldsRepository(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, theatre.MetadataFile), []byte("name: roberto\ncontainers:\n  foo: {}\n"), 0o644))

	layout, err := theatre.Init(repo)
	require.NoError(t, err)
	assert.FileExists(t, layout.RunnerConfig())
	assert.FileExists(t, filepath.Join(layout.VirtualFS(), "default", "foo", "spec.yaml"))
	assert.DirExists(t, layout.Scenes())
	assert.DirExists(t, layout.Deltas())

	_, err = theatre.Init(repo)
	require.NoError(t, err, "init is idempotent")

	scene, err := theatre.New(repo, theatre.WithScratchDir(t.TempDir()))
	require.NoError(t, err, "runner.yaml provides the execution context")
	defer scene.Close()
	assert.Equal(t, filepath.Base(repo), scene.Name())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := scene.Watch(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ch)
}

func TestScene_Diff(t *testing.T) {
	ctx := context.Background()
	scene := newScene(t, installCharm())

	root, err := scene.AddNode("root")
	require.NoError(t, err)
	installed, err := scene.AddNode("installed")
	require.NoError(t, err)
	_, err = scene.Connect(root.ID, installed.ID, domain.NewEventSpec("install"))
	require.NoError(t, err)

	diff, err := scene.Diff(ctx, installed.ID)
	require.NoError(t, err)
	require.NotNil(t, diff)
	require.NotNil(t, diff.UnitStatus)
	assert.Equal(t, "maintenance", diff.UnitStatus.Name)
	assert.Nil(t, diff.Leader)

	diff, err = scene.Diff(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, diff, "a root without mounts equals the base state")

	broken, err := scene.AddNode("broken")
	require.NoError(t, err)
	_, err = scene.Connect(installed.ID, broken.ID, nil)
	require.NoError(t, err)
	_, err = scene.Diff(ctx, broken.ID)
	var failure *domain.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.FailureEventSpecUnset, failure.Kind)
}

func TestScene_LoadRejectsInvalidScene(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, "bad", &domain.SceneSpec{
		Name:  "bad",
		Nodes: []domain.NodeSpec{{ID: "a"}, {ID: "b"}},
		Edges: []domain.EdgeSpec{
			{ID: "e1", Start: "a", End: "b"},
			{ID: "e2", Start: "b", End: "a"},
		},
	}))

	scene := newScene(t, installCharm(), theatre.WithStore(store))
	err := scene.Load(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is on a cycle")
}
