package tracetree

import (
	"context"
	"fmt"

	"github.com/aretw0/theatre/pkg/domain"
)

// Spec snapshots the identity of the graph: node and edge ids, labels,
// delta names and custom values. Cached outputs are not part of it.
func (g *Graph) Spec(name, situation string) *domain.SceneSpec {
	spec := &domain.SceneSpec{
		Name:      name,
		Situation: situation,
		Nodes:     make([]domain.NodeSpec, 0, len(g.nodeOrder)),
		Edges:     make([]domain.EdgeSpec, 0, len(g.edgeOrder)),
	}
	for _, n := range g.Nodes() {
		ns := domain.NodeSpec{
			ID:          n.id,
			Title:       n.title,
			Description: n.description,
		}
		if n.custom {
			ns.Custom = n.customValue.Clone()
		}
		for _, d := range n.deltas {
			ns.Deltas = append(ns.Deltas, d.delta.Name)
		}
		spec.Nodes = append(spec.Nodes, ns)
	}
	for _, e := range g.Edges() {
		es := domain.EdgeSpec{ID: e.id, Start: e.start, End: e.end}
		if e.spec != nil {
			cp := *e.spec
			es.EventSpec = &cp
		}
		spec.Edges = append(spec.Edges, es)
	}
	return spec
}

// Restore rebuilds a graph from a scene spec with the same ids. Deltas are
// resolved with the WithDeltaResolver option. Non-custom nodes start dirty.
func Restore(ctx context.Context, spec *domain.SceneSpec, overlay Overlayer, executor Executor, opts ...Option) (*Graph, error) {
	g := New(overlay, executor, opts...)

	fail := func(err error) (*Graph, error) {
		_ = g.Close()
		return nil, err
	}

	for _, ns := range spec.Nodes {
		n, err := g.addNode(ns.ID, ns.Title)
		if err != nil {
			return fail(err)
		}
		n.description = ns.Description

		for _, name := range ns.Deltas {
			if g.resolve == nil {
				return fail(fmt.Errorf("%w: %s (no resolver)", domain.ErrDeltaNotFound, name))
			}
			d, err := g.resolve(name)
			if err != nil {
				return fail(fmt.Errorf("node %s: %w", ns.ID, err))
			}
			d.Name = name
			if _, err := g.AddDelta(ns.ID, d); err != nil {
				return fail(err)
			}
		}
	}

	for _, es := range spec.Edges {
		var label *domain.EventSpec
		if es.EventSpec != nil {
			cp := *es.EventSpec
			label = &cp
		}
		if _, err := g.connect(es.ID, es.Start, es.End, label); err != nil {
			return fail(fmt.Errorf("edge %s: %w", es.ID, err))
		}
	}

	for _, ns := range spec.Nodes {
		if ns.Custom == nil {
			continue
		}
		if _, err := g.SetCustomValue(ctx, ns.ID, ns.Custom); err != nil {
			return fail(err)
		}
	}
	return g, nil
}
