package tracetree

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/theatre/pkg/domain"
)

const deltaSep = "#"

// DeltaNode is a delta attached to a node, evaluable as a virtual child of
// it. It has no cache and no flags of its own: every read recomputes from
// the owner's output.
type DeltaNode struct {
	owner *StateNode
	delta domain.Delta
	out   []string
}

var _ Evaluable = (*DeltaNode)(nil)

// DeltaID builds the id of the delta named name on node nodeID.
func DeltaID(nodeID, name string) string {
	return nodeID + deltaSep + name
}

func splitDeltaID(id string) (nodeID, name string, ok bool) {
	return strings.Cut(id, deltaSep)
}

func (d *DeltaNode) ID() string          { return DeltaID(d.owner.id, d.delta.Name) }
func (d *DeltaNode) Name() string        { return d.delta.Name }
func (d *DeltaNode) Owner() *StateNode   { return d.owner }
func (d *DeltaNode) Previous() Evaluable { return d.owner }
func (d *DeltaNode) EdgeIn() *Edge       { return nil }

func (d *DeltaNode) Evaluate(ctx context.Context) *domain.Output {
	return d.owner.graph.evaluateDelta(ctx, d)
}

// Children returns the end nodes of edges leaving the delta.
func (d *DeltaNode) Children() []*StateNode {
	return d.owner.graph.endNodes(d.out)
}

// AddDelta attaches a delta to a node. Names are unique per node.
func (g *Graph) AddDelta(nodeID string, delta domain.Delta) (*DeltaNode, error) {
	n, err := g.Node(nodeID)
	if err != nil {
		return nil, err
	}
	if delta.Name == "" || strings.Contains(delta.Name, deltaSep) {
		return nil, fmt.Errorf("invalid delta name %q", delta.Name)
	}
	if delta.Apply == nil {
		return nil, fmt.Errorf("delta %q has no function", delta.Name)
	}
	if _, exists := n.Delta(delta.Name); exists {
		return nil, fmt.Errorf("delta %q already attached to %s", delta.Name, nodeID)
	}

	d := &DeltaNode{owner: n, delta: delta}
	n.deltas = append(n.deltas, d)
	g.logger.Debug("delta added", "node", nodeID, "delta", delta.Name)
	return d, nil
}

// RemoveDelta detaches a delta. Nodes fed by it become dirty roots.
func (g *Graph) RemoveDelta(nodeID, name string) error {
	n, err := g.Node(nodeID)
	if err != nil {
		return err
	}
	d, ok := n.Delta(name)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrDeltaNotFound, DeltaID(nodeID, name))
	}
	for _, eid := range append([]string(nil), d.out...) {
		if err := g.Disconnect(eid); err != nil {
			return err
		}
	}

	kept := n.deltas[:0]
	for _, other := range n.deltas {
		if other != d {
			kept = append(kept, other)
		}
	}
	n.deltas = kept
	return nil
}
