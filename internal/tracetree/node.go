package tracetree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/theatre/pkg/domain"
)

// Evaluable is anything whose output can be computed: a state node or a
// delta hanging off one.
type Evaluable interface {
	ID() string
	// Evaluate returns the output, computing it if needed. Failures are
	// returned as data, never as a panic or error.
	Evaluate(ctx context.Context) *domain.Output
	// Previous is the single logical predecessor: the parent of a node, or
	// the owner of a delta. It is nil for roots.
	Previous() Evaluable
	// EdgeIn is the incoming edge of a non-root node, nil otherwise.
	EdgeIn() *Edge
}

// StateNode is a vertex holding one hypothetical charm state plus its
// evaluation cache.
type StateNode struct {
	graph       *Graph
	id          string
	title       string
	description string

	edgeIn string
	out    []string
	deltas []*DeltaNode

	custom      bool
	customValue *domain.State
	dirty       bool
	invalid     bool
	output      *domain.Output

	scratch string
	gen     int
	evalDir string
}

var _ Evaluable = (*StateNode)(nil)

func (n *StateNode) ID() string          { return n.id }
func (n *StateNode) Title() string       { return n.title }
func (n *StateNode) Description() string { return n.description }

// SetTitle renames the node. It does not affect evaluation.
func (n *StateNode) SetTitle(title string) { n.title = title }

// SetDescription sets the free-form user description.
func (n *StateNode) SetDescription(desc string) { n.description = desc }

// IsRoot reports whether the node has no incoming edge.
func (n *StateNode) IsRoot() bool { return n.edgeIn == "" }

// IsCustom reports whether the node's value was set directly.
func (n *StateNode) IsCustom() bool { return n.custom }

func (n *StateNode) IsDirty() bool   { return n.dirty }
func (n *StateNode) IsInvalid() bool { return n.invalid }

// Output returns the cached output without evaluating. It may be nil or stale.
func (n *StateNode) Output() *domain.Output { return n.output }

// ScratchDir is the node's private directory for mount copies.
func (n *StateNode) ScratchDir() string { return n.scratch }

// Deltas returns the deltas attached to the node, in order.
func (n *StateNode) Deltas() []*DeltaNode {
	return append([]*DeltaNode(nil), n.deltas...)
}

// Delta returns the attached delta with the given name.
func (n *StateNode) Delta(name string) (*DeltaNode, bool) {
	for _, d := range n.deltas {
		if d.delta.Name == name {
			return d, true
		}
	}
	return nil, false
}

func (n *StateNode) Evaluate(ctx context.Context) *domain.Output {
	return n.graph.evaluateNode(ctx, n)
}

func (n *StateNode) Previous() Evaluable {
	e := n.EdgeIn()
	if e == nil {
		return nil
	}
	prev, err := n.graph.Lookup(e.start)
	if err != nil {
		return nil
	}
	return prev
}

func (n *StateNode) EdgeIn() *Edge {
	if n.edgeIn == "" {
		return nil
	}
	return n.graph.edges[n.edgeIn]
}

// Children returns the end nodes of the node's own outgoing edges.
func (n *StateNode) Children() []*StateNode {
	return n.graph.endNodes(n.out)
}

// Status summarizes the evaluation flags.
func (n *StateNode) Status() domain.NodeStatus {
	switch {
	case n.custom:
		return domain.StatusCustom
	case n.invalid:
		return domain.StatusInvalid
	case n.dirty || n.output == nil:
		return domain.StatusDirty
	}
	return domain.StatusFresh
}

// Info snapshots the node for presentation layers.
func (n *StateNode) Info() domain.NodeInfo {
	info := domain.NodeInfo{
		ID:          n.id,
		Title:       n.title,
		Description: n.description,
		Root:        n.IsRoot(),
		Custom:      n.custom,
		Dirty:       n.dirty,
		Invalid:     n.invalid,
		Status:      n.Status(),
		Output:      n.output,
	}
	if e := n.EdgeIn(); e != nil {
		info.EdgeIn = e.id
		info.Parent = e.start
		if e.spec != nil {
			info.Event = e.spec.Event.Name
		}
	}
	for _, d := range n.deltas {
		info.Deltas = append(info.Deltas, d.delta.Name)
	}
	for _, c := range n.Children() {
		info.Children = append(info.Children, c.id)
	}
	return info
}

func (n *StateNode) String() string {
	if n.title != "" {
		return fmt.Sprintf("%s (%s)", n.title, n.id)
	}
	return n.id
}

// nextEvalDir returns a directory, not yet created, that no previous
// evaluation of this node has used.
func (n *StateNode) nextEvalDir() string {
	n.gen++
	return filepath.Join(n.scratch, fmt.Sprintf("eval-%d", n.gen))
}

// swapEvalDir makes dir the current evaluation directory and removes the
// previous one, whose output has just been replaced.
func (n *StateNode) swapEvalDir(dir string) {
	prev := n.evalDir
	n.evalDir = dir
	if prev != "" && prev != dir {
		if err := os.RemoveAll(prev); err != nil {
			n.graph.logger.Warn("failed to clean evaluation dir", "node", n.id, "dir", prev, "err", err)
		}
	}
}

func (n *StateNode) release() error {
	if n.scratch == "" {
		return nil
	}
	err := os.RemoveAll(n.scratch)
	n.scratch = ""
	return err
}
