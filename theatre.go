package theatre

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/theatre/internal/adapters/file"
	"github.com/aretw0/theatre/internal/execution"
	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/internal/tracetree"
	"github.com/aretw0/theatre/internal/validator"
	"github.com/aretw0/theatre/internal/vfs"
	"github.com/aretw0/theatre/pkg/adapters/memory"
	"github.com/aretw0/theatre/pkg/adapters/process"
	"github.com/aretw0/theatre/pkg/adapters/script"
	"github.com/aretw0/theatre/pkg/adapters/situations"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
	"github.com/aretw0/theatre/pkg/session"
)

// ErrNoExecutionContext is returned by New when neither WithContextFactory
// nor a runner.yaml in the repository provides a way to run the charm.
var ErrNoExecutionContext = errors.New("no execution context configured")

// DefaultSceneName names scenes created without WithName or a repository.
const DefaultSceneName = "scene"

// Scene is the high-level entry point: one trace tree bound to a charm
// repository. It serializes access to the underlying graph, so it is safe
// for concurrent use by transports.
type Scene struct {
	mu    sync.Mutex
	graph *tracetree.Graph

	name      string
	repo      string
	situation string
	scratch   string
	base      *domain.State

	overlay  *vfs.Overlay
	adapter  *execution.Adapter
	factory  ports.ContextFactory
	loader   ports.MountLoader
	deltas   *script.Library
	sessions *session.Manager
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Scene.
type Option func(*Scene)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scene) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Scene) {
		s.hooks = hooks
	}
}

// WithContextFactory sets how execution contexts are created, bypassing runner.yaml.
func WithContextFactory(f ports.ContextFactory) Option {
	return func(s *Scene) {
		s.factory = f
	}
}

// WithMountConfig uses a fixed mount configuration instead of the repository's virtual_fs.
func WithMountConfig(cfg domain.MountConfig) Option {
	return func(s *Scene) {
		s.loader = memory.NewLoader(cfg)
	}
}

// WithMountLoader injects a custom mount loader.
func WithMountLoader(l ports.MountLoader) Option {
	return func(s *Scene) {
		s.loader = l
	}
}

// WithSituation selects the situation whose default mounts apply (default: "default").
func WithSituation(situation string) Option {
	return func(s *Scene) {
		s.situation = situation
	}
}

// WithScratchDir sets where node scratch directories are created.
func WithScratchDir(dir string) Option {
	return func(s *Scene) {
		s.scratch = dir
	}
}

// WithBaseState sets the state root nodes start from.
func WithBaseState(state *domain.State) Option {
	return func(s *Scene) {
		s.base = state
	}
}

// WithDeltaLibrary sets where delta names are resolved.
func WithDeltaLibrary(lib *script.Library) Option {
	return func(s *Scene) {
		s.deltas = lib
	}
}

// WithStore persists scenes in store instead of the repository's scenes directory.
func WithStore(store ports.SceneStore) Option {
	return func(s *Scene) {
		s.sessions = session.NewManager(store)
	}
}

// WithSessionManager shares a scene manager, e.g. one with a distributed locker.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Scene) {
		s.sessions = m
	}
}

// WithName sets the name the scene is saved under.
func WithName(name string) Option {
	return func(s *Scene) {
		s.name = name
	}
}

// New creates an empty scene for the charm repository at repoPath.
// Unless overridden by options, mounts come from .theatre/virtual_fs, deltas
// from .theatre/deltas, scenes persist under .theatre/scenes and the
// execution context is the command described by .theatre/runner.yaml.
// repoPath may be empty when every collaborator is injected.
func New(repoPath string, opts ...Option) (*Scene, error) {
	s := &Scene{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	if repoPath != "" {
		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		layout := NewLayout(absPath)
		s.repo = layout.Dir

		if s.name == "" {
			s.name = filepath.Base(absPath)
		}
		if s.loader == nil {
			s.loader = situations.NewLoader(layout.VirtualFS(), situations.WithLogger(s.logger))
		}
		if s.deltas == nil {
			s.deltas = script.NewLibrary(layout.Deltas(), script.WithLogger(s.logger))
		}
		if s.sessions == nil {
			s.sessions = session.NewManager(file.New(layout.Scenes()), session.WithLogger(s.logger))
		}
		if s.factory == nil {
			cfg, err := process.LoadConfig(layout.RunnerConfig())
			if err != nil {
				return nil, err
			}
			if cfg != nil {
				s.factory = process.NewRunner(*cfg)
			}
		}
	}

	if s.factory == nil {
		return nil, ErrNoExecutionContext
	}
	if s.name == "" {
		s.name = DefaultSceneName
	}
	if s.situation == "" {
		s.situation = domain.DefaultSituation
	}
	if s.loader == nil {
		s.loader = memory.NewLoader(nil)
	}
	if s.deltas == nil {
		s.deltas = script.NewLibrary("")
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(memory.NewStore())
	}

	s.logger = s.logger.With("scene", s.name)

	mounts, err := s.loader.LoadMounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load mounts: %w", err)
	}

	s.overlay = vfs.New(mounts, s.situation, vfs.WithLogger(s.logger))
	s.adapter = execution.New(s.factory, execution.WithLogger(s.logger))
	s.graph = tracetree.New(s.overlay, s.adapter, s.graphOptions()...)
	return s, nil
}

func (s *Scene) graphOptions() []tracetree.Option {
	opts := []tracetree.Option{
		tracetree.WithLogger(s.logger),
		tracetree.WithLifecycleHooks(s.hooks),
		tracetree.WithDeltaResolver(s.deltas.Resolve),
	}
	if s.scratch != "" {
		opts = append(opts, tracetree.WithScratchDir(s.scratch))
	}
	if s.base != nil {
		opts = append(opts, tracetree.WithBaseState(s.base))
	}
	return opts
}

// Name is the name the scene is saved under.
func (s *Scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Repo is the .theatre directory backing the scene, or "" when none.
func (s *Scene) Repo() string { return s.repo }

// Situation returns the active situation.
func (s *Scene) Situation() string {
	return s.overlay.Situation()
}

// AddNode creates a new root node.
func (s *Scene) AddNode(title string) (domain.NodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.AddNode(title)
	if err != nil {
		return domain.NodeInfo{}, err
	}
	return n.Info(), nil
}

// Describe sets a node's title and description.
func (s *Scene) Describe(id, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.Node(id)
	if err != nil {
		return err
	}
	n.SetTitle(title)
	n.SetDescription(description)
	return nil
}

// RemoveNode deletes a node and the edges touching it.
func (s *Scene) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.RemoveNode(id)
}

// Node returns a snapshot of a node.
func (s *Scene) Node(id string) (domain.NodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.Node(id)
	if err != nil {
		return domain.NodeInfo{}, err
	}
	return n.Info(), nil
}

// Nodes returns snapshots of every node in creation order.
func (s *Scene) Nodes() []domain.NodeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.graph.Nodes()
	out := make([]domain.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Info())
	}
	return out
}

// Edges returns every edge in creation order.
func (s *Scene) Edges() []domain.EdgeSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Spec(s.name, s.Situation()).Edges
}

// Connect adds an edge from start (a node or "<node>#<delta>") to end and
// returns its id.
func (s *Scene) Connect(start, end string, spec *domain.EventSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.graph.Connect(start, end, spec)
	if err != nil {
		return "", err
	}
	return e.ID(), nil
}

// Disconnect removes an edge; its end node becomes a root.
func (s *Scene) Disconnect(edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Disconnect(edgeID)
}

// Reconnect moves an edge's endpoints. Empty values keep the current one.
func (s *Scene) Reconnect(edgeID, start, end string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Reconnect(edgeID, start, end)
}

// SetEventSpec relabels an edge.
func (s *Scene) SetEventSpec(edgeID string, spec *domain.EventSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetEventSpec(edgeID, spec)
}

// AddDelta attaches the named delta to a node and returns the delta's id.
func (s *Scene) AddDelta(nodeID, name string) (string, error) {
	d, err := s.deltas.Resolve(name)
	if err != nil {
		return "", err
	}
	return s.AttachDelta(nodeID, d)
}

// AttachDelta attaches an in-process delta to a node. It is persisted by
// name, so restoring the scene requires the delta library to know it.
func (s *Scene) AttachDelta(nodeID string, d domain.Delta) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dn, err := s.graph.AddDelta(nodeID, d)
	if err != nil {
		return "", err
	}
	return dn.ID(), nil
}

// RemoveDelta detaches a delta together with the edges leaving it.
func (s *Scene) RemoveDelta(nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.RemoveDelta(nodeID, name)
}

// SetCustomValue pins a node to state.
func (s *Scene) SetCustomValue(ctx context.Context, id string, state *domain.State) (*domain.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetCustomValue(ctx, id, state)
}

// ResetCustomValue returns a custom node to evaluating from its ancestors.
func (s *Scene) ResetCustomValue(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.ResetCustomValue(id)
}

// MarkDirty invalidates a node (or a delta's children) and its descendants.
func (s *Scene) MarkDirty(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.MarkDirty(id)
}

// Evaluate returns the output of a node or delta, computing what is stale.
func (s *Scene) Evaluate(ctx context.Context, id string) (*domain.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Evaluate(ctx, id)
}

// TraceStep is one entry of an evaluated trace.
type TraceStep struct {
	ID     string         `json:"id"`
	Output *domain.Output `json:"output,omitempty"`
}

// Trace returns the ids from the nearest root down to id.
func (s *Scene) Trace(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trace, err := s.graph.Trace(id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(trace))
	for i, ev := range trace {
		ids[i] = ev.ID()
	}
	return ids, nil
}

// EvaluateTrace evaluates the trace of id root first, stopping at the first
// failure. Steps after it carry no output.
func (s *Scene) EvaluateTrace(ctx context.Context, id string) ([]TraceStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trace, err := s.graph.Trace(id)
	if err != nil {
		return nil, err
	}
	outs := s.graph.EvaluateAll(ctx, trace)

	steps := make([]TraceStep, len(trace))
	for i, ev := range trace {
		steps[i].ID = ev.ID()
		if i < len(outs) {
			steps[i].Output = outs[i]
		}
	}
	return steps, nil
}

// Diff evaluates id and reports what its incoming transition (or its delta)
// changed compared to the previous state of the trace. A root is compared
// to the base state. It returns nil when nothing changed and the first
// failure of the trace if id could not be evaluated.
func (s *Scene) Diff(ctx context.Context, id string) (*domain.StateDiff, error) {
	steps, err := s.EvaluateTrace(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		if step.Output.Failed() {
			return nil, step.Output.Failure
		}
	}

	last := steps[len(steps)-1]
	prev := s.base
	if len(steps) > 1 {
		prev = steps[len(steps)-2].Output.State
	}
	return domain.Diff(prev, last.Output.State), nil
}

// Spec snapshots the scene's identity for persistence.
func (s *Scene) Spec() *domain.SceneSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Spec(s.name, s.Situation())
}

// Save persists the scene under its name.
func (s *Scene) Save(ctx context.Context) error {
	spec := s.Spec()
	if err := s.sessions.Save(ctx, spec.Name, spec); err != nil {
		return fmt.Errorf("failed to save scene %s: %w", spec.Name, err)
	}
	s.logger.Info("scene saved", "nodes", len(spec.Nodes), "edges", len(spec.Edges))
	return nil
}

// Load replaces the scene with the one stored under name. Node and edge ids
// are preserved; custom values are re-applied and everything else starts dirty.
func (s *Scene) Load(ctx context.Context, name string) error {
	spec, err := s.sessions.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load scene %s: %w", name, err)
	}
	if err := validator.ValidateScene(spec, s.deltas.Resolve); err != nil {
		return fmt.Errorf("invalid scene %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.Situation != "" {
		s.overlay.SetSituation(spec.Situation)
	}
	g, err := tracetree.Restore(ctx, spec, s.overlay, s.adapter, s.graphOptions()...)
	if err != nil {
		return fmt.Errorf("failed to restore scene %s: %w", name, err)
	}
	if err := s.graph.Close(); err != nil {
		s.logger.Warn("failed to release previous scene", "err", err)
	}
	s.graph = g
	s.name = name
	s.logger.Info("scene loaded", "nodes", len(spec.Nodes), "edges", len(spec.Edges))
	return nil
}

// Scenes lists the stored scene names.
func (s *Scene) Scenes(ctx context.Context) ([]string, error) {
	return s.sessions.List(ctx)
}

// SetSituation switches the active situation. Every root becomes dirty since
// default mounts may differ.
func (s *Scene) SetSituation(situation string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if situation == "" {
		situation = domain.DefaultSituation
	}
	s.overlay.SetSituation(situation)
	s.graph.MarkRootsDirty()
}

// Reload re-reads the mount configuration and delta scripts and marks every
// root dirty.
func (s *Scene) Reload() error {
	mounts, err := s.loader.LoadMounts()
	if err != nil {
		return fmt.Errorf("failed to reload mounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.overlay.SetConfig(mounts)
	s.deltas.Reset()
	s.graph.MarkRootsDirty()
	s.logger.Info("mounts reloaded", "situations", len(mounts))
	return nil
}

// Watch returns a channel that signals when the mount configuration changes.
// Returns an error if the loader does not support watching.
func (s *Scene) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := s.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current mount loader does not support watching")
}

// Close releases every scratch directory of the scene.
func (s *Scene) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Close()
}
