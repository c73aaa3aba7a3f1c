package tracetree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/theatre/internal/execution"
	"github.com/aretw0/theatre/internal/vfs"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/registry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	g       *Graph
	reg     *registry.Registry
	changed []string
	hits    []string
	overlay *vfs.Overlay
}

func newFixture(t *testing.T, cfg domain.MountConfig, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{reg: registry.NewRegistry(), overlay: vfs.New(cfg, domain.DefaultSituation)}
	hooks := domain.LifecycleHooks{
		OnValueChanged: func(_ context.Context, e *domain.EvalEvent) {
			if e.Delta == "" {
				f.changed = append(f.changed, e.NodeID)
			}
		},
		OnCacheHit: func(_ context.Context, e *domain.EvalEvent) {
			f.hits = append(f.hits, e.NodeID)
		},
	}
	base := []Option{WithScratchDir(t.TempDir()), WithLifecycleHooks(hooks)}
	f.g = New(f.overlay, execution.New(f.reg), append(base, opts...)...)
	t.Cleanup(func() { _ = f.g.Close() })
	return f
}

func (f *fixture) node(t *testing.T, title string) *StateNode {
	t.Helper()
	n, err := f.g.AddNode(title)
	require.NoError(t, err)
	return n
}

func (f *fixture) connect(t *testing.T, from Evaluable, to *StateNode, event string) *Edge {
	t.Helper()
	var spec *domain.EventSpec
	if event != "" {
		spec = domain.NewEventSpec(event)
	}
	e, err := f.g.Connect(from.ID(), to.ID(), spec)
	require.NoError(t, err)
	return e
}

// chain builds R --install--> A --config-changed--> B.
func (f *fixture) chain(t *testing.T) (r, a, b *StateNode) {
	r, a, b = f.node(t, "R"), f.node(t, "A"), f.node(t, "B")
	f.connect(t, r, a, "install")
	f.connect(t, a, b, "config-changed")
	return r, a, b
}

func TestScenario_EvaluatesAncestorsOnceInOrder(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)

	out := b.Evaluate(context.Background())
	require.False(t, out.Failed())

	assert.Equal(t, []string{"install", "config-changed"}, f.reg.History())
	assert.Equal(t, []string{r.ID(), a.ID(), b.ID()}, f.changed)

	again := b.Evaluate(context.Background())
	assert.Same(t, out, again)
	assert.Equal(t, 2, f.reg.Calls(), "memoized read must not call the context")
	assert.Equal(t, []string{r.ID(), a.ID(), b.ID()}, f.changed, "memoized read must not notify")
	assert.Equal(t, []string{b.ID()}, f.hits)
}

func TestNewNodesStartDirty(t *testing.T) {
	f := newFixture(t, nil)
	n := f.node(t, "fresh")
	assert.True(t, n.IsDirty())
	assert.Nil(t, n.Output())
	assert.Equal(t, domain.StatusDirty, n.Status())

	n.Evaluate(context.Background())
	assert.Equal(t, domain.StatusFresh, n.Status())
}

func TestMarkDirty_PropagatesDownOnly(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	leaf := f.node(t, "leaf")
	d, err := f.g.AddDelta(b.ID(), domain.NewDelta("leader", func(s *domain.State) (*domain.State, error) {
		return s.Replace(func(n *domain.State) { n.Leader = true }), nil
	}))
	require.NoError(t, err)
	f.connect(t, d, leaf, "leader-elected")

	leaf.Evaluate(context.Background())
	f.reg.Reset()
	f.changed = nil

	require.NoError(t, f.g.MarkDirty(a.ID()))
	assert.False(t, r.IsDirty())
	assert.True(t, a.IsDirty())
	assert.True(t, b.IsDirty())
	assert.True(t, leaf.IsDirty(), "delta-derived descendants are dirtied")

	out := leaf.Evaluate(context.Background())
	require.False(t, out.Failed())
	assert.True(t, out.State.Leader)
	assert.Equal(t, []string{"install", "config-changed", "leader-elected"}, f.reg.History())
	assert.NotContains(t, f.changed, r.ID())
}

func TestMarkDirty_Delta(t *testing.T) {
	f := newFixture(t, nil)
	r := f.node(t, "R")
	child := f.node(t, "child")
	d, err := f.g.AddDelta(r.ID(), domain.NewDelta("noop", func(s *domain.State) (*domain.State, error) { return s, nil }))
	require.NoError(t, err)
	f.connect(t, d, child, "start")

	child.Evaluate(context.Background())
	require.False(t, child.IsDirty())

	require.NoError(t, f.g.MarkDirty(d.ID()))
	assert.True(t, child.IsDirty())
	assert.False(t, r.IsDirty())
}

func TestSetEventSpec_DirtiesEndSubtree(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	b.Evaluate(context.Background())

	require.NoError(t, f.g.SetEventSpec(a.EdgeIn().ID(), domain.NewEventSpec("start")))
	assert.False(t, r.IsDirty())
	assert.True(t, a.IsDirty())
	assert.True(t, b.IsDirty())

	f.reg.Reset()
	b.Evaluate(context.Background())
	assert.Equal(t, []string{"start", "config-changed"}, f.reg.History())
}

func TestParentFailure_ShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	f.reg.Handle("install", func(c *registry.Call) (*domain.State, error) {
		return nil, errors.New("hook failed")
	})
	_, a, b := f.chain(t)

	out := b.Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Nil(t, out.State)
	assert.Equal(t, domain.FailureParentEvaluation, out.Failure.Kind)
	assert.Equal(t, a.ID(), out.Failure.Origin().NodeID)
	assert.Equal(t, domain.FailureTransition, out.Failure.Origin().Kind)
	assert.Zero(t, f.reg.CallsFor("config-changed"))

	assert.True(t, a.IsInvalid())
	assert.True(t, a.IsDirty())
	assert.True(t, b.IsInvalid())
	assert.Equal(t, domain.StatusInvalid, b.Status())

	// a failed node is not a cache hit
	b.Evaluate(context.Background())
	assert.Equal(t, 2, f.reg.CallsFor("install"))
}

func TestFailure_RecoversOnFix(t *testing.T) {
	f := newFixture(t, nil)
	broken := true
	f.reg.Handle("install", func(c *registry.Call) (*domain.State, error) {
		if broken {
			return nil, errors.New("hook failed")
		}
		return c.State, nil
	})
	_, a, _ := f.chain(t)

	require.True(t, a.Evaluate(context.Background()).Failed())
	broken = false
	out := a.Evaluate(context.Background())
	assert.False(t, out.Failed())
	assert.False(t, a.IsInvalid())
	assert.False(t, a.IsDirty())
}

func TestPanicIsCapturedAsTransitionFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.reg.Handle("install", func(c *registry.Call) (*domain.State, error) {
		panic("charm exploded")
	})
	_, a, _ := f.chain(t)

	var out *domain.Output
	require.NotPanics(t, func() { out = a.Evaluate(context.Background()) })
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureTransition, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "charm exploded")
}

func TestEventSpecUnset(t *testing.T) {
	f := newFixture(t, nil)
	r, a := f.node(t, "R"), f.node(t, "A")
	e := f.connect(t, r, a, "")

	out := a.Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureEventSpecUnset, out.Failure.Kind)
	assert.Zero(t, f.reg.Calls())

	require.NoError(t, f.g.SetEventSpec(e.ID(), domain.NewEventSpec("install")))
	assert.False(t, a.Evaluate(context.Background()).Failed())
}

func TestFilesystemIsolation_BetweenSiblings(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "data.txt"), []byte("original"), 0o644))

	cfg := domain.MountConfig{domain.DefaultSituation: {"workload": {"/data": src}}}
	base := &domain.State{Containers: []domain.Container{{Name: "workload"}}}
	f := newFixture(t, cfg, WithBaseState(base))

	f.reg.HandleAll(func(c *registry.Call) (*domain.State, error) {
		wl, _ := c.State.Container("workload")
		path := filepath.Join(wl.Mounts["/data"].Src, "data.txt")
		if err := os.WriteFile(path, []byte(c.Event.Name), 0o644); err != nil {
			return nil, err
		}
		return c.State, nil
	})

	r, s1, s2 := f.node(t, "R"), f.node(t, "S1"), f.node(t, "S2")
	f.connect(t, r, s1, "left")
	f.connect(t, r, s2, "right")

	o1 := s1.Evaluate(context.Background())
	o2 := s2.Evaluate(context.Background())
	require.False(t, o1.Failed())
	require.False(t, o2.Failed())

	read := func(out *domain.Output) string {
		wl, ok := out.State.Container("workload")
		require.True(t, ok)
		data, err := os.ReadFile(filepath.Join(wl.Mounts["/data"].Src, "data.txt"))
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "left", read(o1))
	assert.Equal(t, "right", read(o2))
	assert.Equal(t, "original", read(r.Output()))

	orig, err := os.ReadFile(filepath.Join(src, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(orig))
}

func TestRoot_DefaultStateWithSituationMounts(t *testing.T) {
	src := t.TempDir()
	cfg := domain.MountConfig{domain.DefaultSituation: {"workload": {"/data": src}}}
	base := &domain.State{Containers: []domain.Container{{Name: "workload"}}}
	f := newFixture(t, cfg, WithBaseState(base))

	r := f.node(t, "R")
	first := r.Evaluate(context.Background())
	require.False(t, first.Failed())
	wl, _ := first.State.Container("workload")
	firstSrc := wl.Mounts["/data"].Src
	assert.True(t, filepath.IsAbs(firstSrc))
	assert.NotEqual(t, src, firstSrc)

	require.NoError(t, f.g.MarkDirty(r.ID()))
	second := r.Evaluate(context.Background())
	assert.NotSame(t, first, second)
	wl, _ = second.State.Container("workload")
	assert.NotEqual(t, firstSrc, wl.Mounts["/data"].Src)
	assert.Empty(t, base.Containers[0].Mounts, "base state must not be mutated")
	assert.Zero(t, f.reg.Calls())
}

func TestRoot_ResourceMissing(t *testing.T) {
	cfg := domain.MountConfig{domain.DefaultSituation: {"workload": {"/data": filepath.Join(t.TempDir(), "gone")}}}
	base := &domain.State{Containers: []domain.Container{{Name: "workload"}}}
	f := newFixture(t, cfg, WithBaseState(base))

	out := f.node(t, "R").Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureResourceMissing, out.Failure.Kind)
	assert.ErrorIs(t, out.Failure, domain.ErrResourceMissing)
}

func TestCustomNode_Immunity(t *testing.T) {
	f := newFixture(t, nil)
	r, _, b := f.chain(t)
	b.Evaluate(context.Background())
	f.reg.Reset()
	f.changed = nil

	custom := &domain.State{Leader: true, WorkloadVersion: "1.2"}
	out, err := f.g.SetCustomValue(context.Background(), b.ID(), custom)
	require.NoError(t, err)
	require.False(t, out.Failed())
	assert.Equal(t, []string{b.ID()}, f.changed)

	require.NoError(t, f.g.MarkDirty(r.ID()))
	again := b.Evaluate(context.Background())
	assert.Same(t, out, again)
	assert.True(t, again.State.Leader)
	assert.Equal(t, "1.2", again.State.WorkloadVersion)
	assert.Zero(t, f.reg.Calls(), "custom nodes never pull from ancestors")
	assert.Equal(t, []string{b.ID()}, f.changed, "custom reads do not notify")
	assert.Equal(t, domain.StatusCustom, b.Status())

	require.NoError(t, f.g.ResetCustomValue(b.ID()))
	recomputed := b.Evaluate(context.Background())
	assert.False(t, recomputed.State.Leader)
	assert.Equal(t, 1, f.reg.CallsFor("config-changed"))
}

func TestCustomNode_DirtiesDescendants(t *testing.T) {
	f := newFixture(t, nil)
	_, a, b := f.chain(t)
	b.Evaluate(context.Background())

	_, err := f.g.SetCustomValue(context.Background(), a.ID(), &domain.State{Leader: true})
	require.NoError(t, err)
	assert.True(t, b.IsDirty())
	assert.True(t, b.Evaluate(context.Background()).State.Leader)
}

func TestDelta_NotCached(t *testing.T) {
	f := newFixture(t, nil)
	r := f.node(t, "R")
	applied := 0
	d, err := f.g.AddDelta(r.ID(), domain.NewDelta("bump", func(s *domain.State) (*domain.State, error) {
		applied++
		s.WorkloadVersion = "bumped"
		return s, nil
	}))
	require.NoError(t, err)

	o1 := d.Evaluate(context.Background())
	o2 := d.Evaluate(context.Background())
	require.False(t, o1.Failed())
	assert.Equal(t, "bumped", o2.State.WorkloadVersion)
	assert.Equal(t, 2, applied)
	assert.Empty(t, r.Output().State.WorkloadVersion, "delta must not touch the owner's state")
	assert.NotContains(t, f.changed, d.ID())
}

func TestDelta_Failures(t *testing.T) {
	f := newFixture(t, nil)
	r := f.node(t, "R")
	nilDelta, err := f.g.AddDelta(r.ID(), domain.NewDelta("nil", func(*domain.State) (*domain.State, error) { return nil, nil }))
	require.NoError(t, err)
	errDelta, err := f.g.AddDelta(r.ID(), domain.NewDelta("err", func(*domain.State) (*domain.State, error) { return nil, errors.New("bad") }))
	require.NoError(t, err)

	out := nilDelta.Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureDeltaType, out.Failure.Kind)

	out = errDelta.Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureTransition, out.Failure.Kind)

	_, err = f.g.AddDelta(r.ID(), domain.NewDelta("nil", func(s *domain.State) (*domain.State, error) { return s, nil }))
	assert.Error(t, err)
}

func TestDelta_OwnerFailureShortCircuits(t *testing.T) {
	f := newFixture(t, nil)
	f.reg.Handle("install", func(c *registry.Call) (*domain.State, error) { return nil, errors.New("nope") })
	r, a := f.node(t, "R"), f.node(t, "A")
	f.connect(t, r, a, "install")

	called := false
	d, err := f.g.AddDelta(a.ID(), domain.NewDelta("x", func(s *domain.State) (*domain.State, error) {
		called = true
		return s, nil
	}))
	require.NoError(t, err)

	out := d.Evaluate(context.Background())
	require.True(t, out.Failed())
	assert.Equal(t, domain.FailureParentEvaluation, out.Failure.Kind)
	assert.False(t, called)
}

func TestRemoveDelta(t *testing.T) {
	f := newFixture(t, nil)
	r, child := f.node(t, "R"), f.node(t, "child")
	d, err := f.g.AddDelta(r.ID(), domain.NewDelta("x", func(s *domain.State) (*domain.State, error) { return s, nil }))
	require.NoError(t, err)
	f.connect(t, d, child, "start")

	require.NoError(t, f.g.RemoveDelta(r.ID(), "x"))
	assert.True(t, child.IsRoot())
	assert.Empty(t, f.g.Edges())
	assert.ErrorIs(t, f.g.RemoveDelta(r.ID(), "x"), domain.ErrDeltaNotFound)
}

func TestConnect_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	other := f.node(t, "other")

	_, err := f.g.Connect(other.ID(), a.ID(), domain.NewEventSpec("start"))
	assert.ErrorIs(t, err, domain.ErrAlreadyConnected)

	_, err = f.g.Connect(b.ID(), r.ID(), domain.NewEventSpec("start"))
	assert.ErrorIs(t, err, domain.ErrCycle)

	_, err = f.g.Connect(r.ID(), r.ID(), nil)
	assert.ErrorIs(t, err, domain.ErrCycle)

	d, err := f.g.AddDelta(other.ID(), domain.NewDelta("self", func(s *domain.State) (*domain.State, error) { return s, nil }))
	require.NoError(t, err)
	_, err = f.g.Connect(d.ID(), other.ID(), nil)
	assert.ErrorIs(t, err, domain.ErrCycle)

	_, err = f.g.Connect("missing", other.ID(), nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	_, err = f.g.Connect(r.ID()+"#missing", other.ID(), nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestReconnect(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	c := f.node(t, "C")
	b.Evaluate(context.Background())
	c.Evaluate(context.Background())

	edge := b.EdgeIn()
	require.NoError(t, f.g.Reconnect(edge.ID(), "", c.ID()))

	assert.True(t, b.IsRoot())
	assert.True(t, b.IsDirty())
	assert.False(t, c.IsRoot())
	assert.True(t, c.IsDirty())
	assert.Equal(t, edge.ID(), c.EdgeIn().ID())
	assert.Equal(t, "config-changed", c.EdgeIn().EventSpec().Event.Name)
	assert.False(t, r.IsDirty())

	assert.ErrorIs(t, f.g.Reconnect(a.EdgeIn().ID(), c.ID(), ""), domain.ErrCycle)
	assert.ErrorIs(t, f.g.Reconnect("nope", "", ""), domain.ErrEdgeNotFound)
}

func TestRemoveNode_ReleasesScratch(t *testing.T) {
	f := newFixture(t, nil)
	_, a, b := f.chain(t)
	b.Evaluate(context.Background())

	scratch := a.ScratchDir()
	_, err := os.Stat(scratch)
	require.NoError(t, err)

	require.NoError(t, f.g.RemoveNode(a.ID()))
	_, err = os.Stat(scratch)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.True(t, b.IsRoot())
	assert.True(t, b.IsDirty())
	assert.Len(t, f.g.Nodes(), 2)
	assert.Empty(t, f.g.Edges())

	_, err = f.g.Node(a.ID())
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestNodeScratchDirsAreDistinct(t *testing.T) {
	f := newFixture(t, nil)
	a, b := f.node(t, "a"), f.node(t, "b")
	assert.NotEqual(t, a.ScratchDir(), b.ScratchDir())
}

func TestTrace(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	d, err := f.g.AddDelta(b.ID(), domain.NewDelta("x", func(s *domain.State) (*domain.State, error) { return s, nil }))
	require.NoError(t, err)

	trace, err := f.g.Trace(d.ID())
	require.NoError(t, err)

	ids := make([]string, len(trace))
	for i, ev := range trace {
		ids[i] = ev.ID()
	}
	assert.Equal(t, []string{r.ID(), a.ID(), b.ID(), d.ID()}, ids)

	rootTrace, err := f.g.Trace(r.ID())
	require.NoError(t, err)
	assert.Len(t, rootTrace, 1)
}

func TestEvaluateAll_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.reg.Handle("install", func(c *registry.Call) (*domain.State, error) { return nil, errors.New("boom") })
	_, _, b := f.chain(t)

	trace, err := f.g.Trace(b.ID())
	require.NoError(t, err)

	outs := f.g.EvaluateAll(context.Background(), trace)
	require.Len(t, outs, 2)
	assert.False(t, outs[0].Failed())
	assert.True(t, outs[1].Failed())

	assert.True(t, b.IsDirty())
	assert.Nil(t, b.Output(), "nodes after the failure stay unevaluated")
	assert.Zero(t, f.reg.CallsFor("config-changed"))
}

func TestSpecRestore_PreservesIdentity(t *testing.T) {
	f := newFixture(t, nil)
	r, a, b := f.chain(t)
	a.SetDescription("after install")
	leader := domain.NewDelta("leader", func(s *domain.State) (*domain.State, error) {
		return s.Replace(func(n *domain.State) { n.Leader = true }), nil
	})
	d, err := f.g.AddDelta(a.ID(), leader)
	require.NoError(t, err)
	c := f.node(t, "C")
	f.connect(t, d, c, "leader-elected")
	_, err = f.g.SetCustomValue(context.Background(), b.ID(), &domain.State{WorkloadVersion: "9"})
	require.NoError(t, err)

	spec := f.g.Spec("scene", domain.DefaultSituation)

	resolver := func(name string) (domain.Delta, error) {
		if name == "leader" {
			return leader, nil
		}
		return domain.Delta{}, domain.ErrDeltaNotFound
	}
	restored, err := Restore(context.Background(), spec, f.overlay, execution.New(f.reg),
		WithScratchDir(t.TempDir()), WithDeltaResolver(resolver))
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })

	if diff := cmp.Diff(spec, restored.Spec("scene", domain.DefaultSituation)); diff != "" {
		t.Errorf("restored spec mismatch (-want +got):\n%s", diff)
	}

	rn, err := restored.Node(r.ID())
	require.NoError(t, err)
	assert.True(t, rn.IsDirty())

	rb, err := restored.Node(b.ID())
	require.NoError(t, err)
	assert.True(t, rb.IsCustom())
	assert.Equal(t, "9", rb.Evaluate(context.Background()).State.WorkloadVersion)

	rc, err := restored.Node(c.ID())
	require.NoError(t, err)
	assert.True(t, rc.Evaluate(context.Background()).State.Leader)

	_, err = Restore(context.Background(), spec, f.overlay, execution.New(f.reg), WithScratchDir(t.TempDir()))
	assert.ErrorIs(t, err, domain.ErrDeltaNotFound)
}

func TestInfo(t *testing.T) {
	f := newFixture(t, nil)
	r, a, _ := f.chain(t)
	_, err := f.g.AddDelta(a.ID(), domain.NewDelta("x", func(s *domain.State) (*domain.State, error) { return s, nil }))
	require.NoError(t, err)

	info := a.Info()
	assert.Equal(t, r.ID(), info.Parent)
	assert.Equal(t, "install", info.Event)
	assert.Equal(t, []string{"x"}, info.Deltas)
	assert.Len(t, info.Children, 1)
	assert.False(t, info.Root)
	assert.Equal(t, domain.StatusDirty, info.Status)
}

func TestEvaluateByID(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.g.Evaluate(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}
