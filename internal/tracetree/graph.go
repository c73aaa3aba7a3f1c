// Package tracetree implements the trace tree: state nodes connected by
// event edges, delta transforms hanging off nodes, and the lazy, memoized,
// dirty-propagating evaluation that composes a node's output from its
// ancestors.
//
// A Graph is not safe for concurrent use; callers serialize access.
package tracetree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/google/uuid"
)

// Overlayer copies the mounts of a state into a scratch directory.
type Overlayer interface {
	Apply(state *domain.State, scratchRoot string) (*domain.State, error)
}

// Executor fires an event against a state.
type Executor interface {
	Execute(ctx context.Context, state *domain.State, spec *domain.EventSpec) (*domain.Output, error)
}

// DeltaResolver looks up a delta by name when restoring a scene.
type DeltaResolver func(name string) (domain.Delta, error)

// Graph is the arena owning all nodes and edges of one trace tree.
type Graph struct {
	nodes     map[string]*StateNode
	edges     map[string]*Edge
	nodeOrder []string
	edgeOrder []string

	overlay     Overlayer
	executor    Executor
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	scratchRoot string
	baseState   *domain.State
	resolve     DeltaResolver
	newID       func() string
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithLifecycleHooks registers observers of evaluations and transitions.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Graph) {
		g.hooks = hooks
	}
}

// WithScratchDir sets the directory under which node scratch directories
// are created. Defaults to the system temp directory.
func WithScratchDir(dir string) Option {
	return func(g *Graph) {
		g.scratchRoot = dir
	}
}

// WithBaseState sets the input state of root nodes. Defaults to the empty state.
func WithBaseState(state *domain.State) Option {
	return func(g *Graph) {
		g.baseState = state
	}
}

// WithDeltaResolver sets how delta names are resolved by Restore.
func WithDeltaResolver(r DeltaResolver) Option {
	return func(g *Graph) {
		g.resolve = r
	}
}

// WithIDGenerator overrides the node and edge id generator.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) {
		g.newID = fn
	}
}

// New creates an empty graph.
func New(overlay Overlayer, executor Executor, opts ...Option) *Graph {
	g := &Graph{
		nodes:     make(map[string]*StateNode),
		edges:     make(map[string]*Edge),
		overlay:   overlay,
		executor:  executor,
		logger:    logging.NewNop(),
		baseState: domain.NewState(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode creates a new root node. Its scratch directory lives as long as the node.
func (g *Graph) AddNode(title string) (*StateNode, error) {
	return g.addNode(g.newID(), title)
}

func (g *Graph) addNode(id, title string) (*StateNode, error) {
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("node %s already exists", id)
	}
	if g.scratchRoot != "" {
		if err := os.MkdirAll(g.scratchRoot, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(g.scratchRoot, "node-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	n := &StateNode{
		graph:   g,
		id:      id,
		title:   title,
		dirty:   true,
		scratch: scratch,
	}
	g.nodes[id] = n
	g.nodeOrder = append(g.nodeOrder, id)
	g.logger.Debug("node added", "node", id)
	return n, nil
}

// RemoveNode deletes a node with its incoming and outgoing edges (including
// those leaving its deltas) and releases its scratch directory. Former
// children become roots.
func (g *Graph) RemoveNode(id string) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}

	if n.edgeIn != "" {
		if err := g.Disconnect(n.edgeIn); err != nil {
			return err
		}
	}
	for _, eid := range append([]string(nil), n.out...) {
		if err := g.Disconnect(eid); err != nil {
			return err
		}
	}
	for _, d := range n.deltas {
		for _, eid := range append([]string(nil), d.out...) {
			if err := g.Disconnect(eid); err != nil {
				return err
			}
		}
	}

	delete(g.nodes, id)
	g.nodeOrder = removeString(g.nodeOrder, id)
	g.logger.Debug("node removed", "node", id)
	return n.release()
}

// Node returns the state node with the given id.
func (g *Graph) Node(id string) (*StateNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns every node in creation order.
func (g *Graph) Nodes() []*StateNode {
	out := make([]*StateNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Roots returns the nodes without an incoming edge, in creation order.
func (g *Graph) Roots() []*StateNode {
	var out []*StateNode
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			out = append(out, n)
		}
	}
	return out
}

// Lookup resolves a node id or a delta id ("<node>#<delta>").
func (g *Graph) Lookup(id string) (Evaluable, error) {
	if nodeID, name, ok := splitDeltaID(id); ok {
		n, err := g.Node(nodeID)
		if err != nil {
			return nil, err
		}
		d, ok := n.Delta(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
		}
		return d, nil
	}
	return g.Node(id)
}

// Close releases the scratch directories of every node. The graph must not
// be used afterwards.
func (g *Graph) Close() error {
	var errs []error
	for _, n := range g.nodes {
		if err := n.release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
