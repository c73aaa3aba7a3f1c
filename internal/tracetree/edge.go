package tracetree

import (
	"fmt"

	"github.com/aretw0/theatre/pkg/domain"
)

// Edge is an event-labeled connection from a node (or delta) to a child node.
type Edge struct {
	id    string
	start string
	end   string
	spec  *domain.EventSpec
}

func (e *Edge) ID() string    { return e.id }
func (e *Edge) Start() string { return e.start }
func (e *Edge) End() string   { return e.end }

// EventSpec returns the label of the edge; nil while unset.
func (e *Edge) EventSpec() *domain.EventSpec { return e.spec }

// Edge returns the edge with the given id.
func (g *Graph) Edge(id string) (*Edge, error) {
	e, ok := g.edges[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, id)
	}
	return e, nil
}

// Edges returns every edge in creation order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// Connect adds an edge from start (a node or delta id) to the node end.
// spec may be nil and set later. The end node and its subtree become dirty.
func (g *Graph) Connect(start, end string, spec *domain.EventSpec) (*Edge, error) {
	return g.connect(g.newID(), start, end, spec)
}

func (g *Graph) connect(id, start, end string, spec *domain.EventSpec) (*Edge, error) {
	if _, exists := g.edges[id]; exists {
		return nil, fmt.Errorf("edge %s already exists", id)
	}
	from, err := g.Lookup(start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	to, err := g.Node(end)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if to.edgeIn != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyConnected, end)
	}
	if g.reaches(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrCycle, start, end)
	}

	e := &Edge{id: id, start: start, end: end, spec: spec}
	g.edges[id] = e
	g.edgeOrder = append(g.edgeOrder, id)
	g.attachOut(from, id)
	to.edgeIn = id

	g.logger.Debug("edge connected", "edge", id, "start", start, "end", end)
	g.dirtySubtree(to)
	return e, nil
}

// Disconnect removes an edge. Its end node becomes a dirty root.
func (g *Graph) Disconnect(id string) error {
	e, err := g.Edge(id)
	if err != nil {
		return err
	}
	g.detach(e)
	delete(g.edges, id)
	g.edgeOrder = removeString(g.edgeOrder, id)
	g.logger.Debug("edge disconnected", "edge", id)

	if to, ok := g.nodes[e.end]; ok {
		g.dirtySubtree(to)
	}
	return nil
}

// Reconnect moves either socket of an edge, keeping its id and event spec.
// An empty start or end keeps the current one. Both the old and the new end
// subtrees become dirty.
func (g *Graph) Reconnect(id, start, end string) error {
	e, err := g.Edge(id)
	if err != nil {
		return err
	}
	if start == "" {
		start = e.start
	}
	if end == "" {
		end = e.end
	}

	from, err := g.Lookup(start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	to, err := g.Node(end)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end != e.end && to.edgeIn != "" {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyConnected, end)
	}
	if g.reaches(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrCycle, start, end)
	}

	oldEnd := g.nodes[e.end]
	g.detach(e)
	e.start, e.end = start, end
	g.attachOut(from, id)
	to.edgeIn = id

	if oldEnd != nil && oldEnd != to {
		g.dirtySubtree(oldEnd)
	}
	g.dirtySubtree(to)
	return nil
}

// SetEventSpec relabels an edge. The end node and its descendants become
// dirty; the start node and its ancestors are untouched.
func (g *Graph) SetEventSpec(id string, spec *domain.EventSpec) error {
	e, err := g.Edge(id)
	if err != nil {
		return err
	}
	e.spec = spec
	if to, ok := g.nodes[e.end]; ok {
		g.dirtySubtree(to)
	}
	return nil
}

// reaches reports whether walking back from 'from' arrives at 'to', i.e.
// whether an edge from -> to would close a cycle.
func (g *Graph) reaches(from Evaluable, to *StateNode) bool {
	limit := g.walkLimit()
	for cur := from; cur != nil && limit >= 0; cur = cur.Previous() {
		if owner := ownerOf(cur); owner == to {
			return true
		}
		limit--
	}
	return false
}

func (g *Graph) walkLimit() int {
	n := len(g.nodes)
	for _, node := range g.nodes {
		n += len(node.deltas)
	}
	return n
}

func ownerOf(ev Evaluable) *StateNode {
	switch v := ev.(type) {
	case *StateNode:
		return v
	case *DeltaNode:
		return v.owner
	}
	return nil
}

func (g *Graph) attachOut(from Evaluable, edgeID string) {
	switch v := from.(type) {
	case *StateNode:
		v.out = append(v.out, edgeID)
	case *DeltaNode:
		v.out = append(v.out, edgeID)
	}
}

func (g *Graph) detach(e *Edge) {
	if from, err := g.Lookup(e.start); err == nil {
		switch v := from.(type) {
		case *StateNode:
			v.out = removeString(v.out, e.id)
		case *DeltaNode:
			v.out = removeString(v.out, e.id)
		}
	}
	if to, ok := g.nodes[e.end]; ok && to.edgeIn == e.id {
		to.edgeIn = ""
	}
}

func (g *Graph) endNodes(edgeIDs []string) []*StateNode {
	out := make([]*StateNode, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		e, ok := g.edges[eid]
		if !ok {
			continue
		}
		if n, ok := g.nodes[e.end]; ok {
			out = append(out, n)
		}
	}
	return out
}
