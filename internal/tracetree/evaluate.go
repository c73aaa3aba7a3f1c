package tracetree

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/theatre/pkg/domain"
)

// Evaluate computes (or returns the memoized) output of a node or delta.
func (g *Graph) Evaluate(ctx context.Context, id string) (*domain.Output, error) {
	ev, err := g.Lookup(id)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(ctx), nil
}

func (g *Graph) evaluateNode(ctx context.Context, n *StateNode) *domain.Output {
	if n.custom {
		n.dirty = false
		n.invalid = n.output.Failed()
		return n.output
	}

	if !n.dirty && !n.invalid && n.output != nil {
		g.logger.Debug("cache hit", "node", n.id)
		if g.hooks.OnCacheHit != nil {
			g.hooks.OnCacheHit(ctx, &domain.EvalEvent{Timestamp: time.Now(), NodeID: n.id, Output: n.output})
		}
		return n.output
	}

	start := time.Now()
	g.logger.Info("evaluating node", "node", n.id, "recompute", n.output != nil)

	dir := n.nextEvalDir()
	out := g.compute(ctx, n, dir)

	if out.Failed() {
		g.logger.Error("node evaluation failed", "node", n.id, "kind", out.Failure.Kind, "err", out.Failure)
		n.output = out
		n.invalid = true
		n.dirty = true
		n.swapEvalDir(dir)
	} else {
		g.logger.Info("recomputed node", "node", n.id, "duration", time.Since(start))
		n.output = out
		n.dirty = false
		n.invalid = false
		n.swapEvalDir(dir)
	}

	g.dirtyDescendants(n)
	g.notify(ctx, n.id, "", out, time.Since(start), true)
	return out
}

// compute runs one evaluation step. Panics raised by collaborators are
// captured as transition failures.
func (g *Graph) compute(ctx context.Context, n *StateNode, dir string) (out *domain.Output) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.FailedOutput(domain.FailureFrom(n.id, fmt.Errorf("panic: %v", r)))
		}
	}()

	fail := func(err error) *domain.Output {
		return domain.FailedOutput(domain.FailureFrom(n.id, err))
	}

	if n.IsRoot() {
		overlayed, err := g.overlay.Apply(g.baseState, dir)
		if err != nil {
			return fail(err)
		}
		return domain.NewOutput(overlayed, nil, "")
	}

	edge := n.EdgeIn()
	if edge.spec == nil {
		return fail(fmt.Errorf("%w: edge %s", domain.ErrEventSpecUnset, edge.id))
	}

	parent, err := g.Lookup(edge.start)
	if err != nil {
		return fail(err)
	}
	in := parent.Evaluate(ctx)
	if in.Failed() {
		return domain.FailedOutput(domain.ParentFailed(n.id, in.Failure))
	}

	overlayed, err := g.overlay.Apply(in.State, dir)
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	res, err := g.executor.Execute(ctx, overlayed, edge.spec)
	if g.hooks.OnTransition != nil {
		g.hooks.OnTransition(ctx, &domain.TransitionEvent{
			Timestamp: start,
			NodeID:    n.id,
			Event:     edge.spec.Event.Name,
			Kind:      edge.spec.Event.Kind(),
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	if err != nil {
		return fail(err)
	}
	if res == nil || (res.State == nil && res.Failure == nil) {
		return fail(fmt.Errorf("event %s produced no output", edge.spec.Event.Name))
	}
	if res.Failure != nil && res.Failure.NodeID == "" {
		res.Failure.NodeID = n.id
	}
	return res
}

func (g *Graph) evaluateDelta(ctx context.Context, d *DeltaNode) *domain.Output {
	start := time.Now()
	id := d.ID()

	base := d.owner.Evaluate(ctx)
	var out *domain.Output
	if base.Failed() {
		out = domain.FailedOutput(domain.ParentFailed(id, base.Failure))
	} else {
		out = g.applyDelta(d, id, base.State)
	}
	if out.Failed() {
		g.logger.Error("delta evaluation failed", "node", d.owner.id, "delta", d.delta.Name, "kind", out.Failure.Kind, "err", out.Failure)
	}
	g.notify(ctx, d.owner.id, d.delta.Name, out, time.Since(start), false)
	return out
}

func (g *Graph) applyDelta(d *DeltaNode, id string, state *domain.State) (out *domain.Output) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.FailedOutput(domain.FailureFrom(id, fmt.Errorf("delta %s panicked: %v", d.delta.Name, r)))
		}
	}()

	next, err := d.delta.Apply(state.Clone())
	if err != nil {
		return domain.FailedOutput(domain.FailureFrom(id, fmt.Errorf("delta %s: %w", d.delta.Name, err)))
	}
	if next == nil {
		return domain.FailedOutput(domain.FailureFrom(id, fmt.Errorf("delta %s: %w", d.delta.Name, domain.ErrDeltaType)))
	}
	return domain.NewOutput(next, nil, "")
}

// SetCustomValue pins a node to a user-provided state. The state is
// overlayed into the node's scratch directory, evaluated once to surface
// errors, and every descendant becomes dirty. The node ignores its
// ancestors until ResetCustomValue.
func (g *Graph) SetCustomValue(ctx context.Context, id string, state *domain.State) (*domain.Output, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = domain.NewState()
	}

	dir := n.nextEvalDir()
	var out *domain.Output
	if overlayed, err := g.overlay.Apply(state, dir); err != nil {
		out = domain.FailedOutput(domain.FailureFrom(id, err))
	} else {
		out = domain.NewOutput(overlayed, nil, "")
	}

	n.custom = true
	n.customValue = state.Clone()
	n.output = out
	n.swapEvalDir(dir)

	out = n.Evaluate(ctx)
	g.dirtyDescendants(n)
	g.logger.Info("custom value set", "node", id)
	g.notify(ctx, id, "", out, 0, true)
	return out, nil
}

// ResetCustomValue turns a custom node back into a computed one. It
// becomes dirty together with its descendants.
func (g *Graph) ResetCustomValue(id string) error {
	n, err := g.Node(id)
	if err != nil {
		return err
	}
	n.custom = false
	n.customValue = nil
	g.dirtySubtree(n)
	return nil
}

// MarkDirty forces the node (or the nodes fed by a delta) to recompute on
// the next read, together with all descendants.
func (g *Graph) MarkDirty(id string) error {
	ev, err := g.Lookup(id)
	if err != nil {
		return err
	}
	switch v := ev.(type) {
	case *StateNode:
		g.dirtySubtree(v)
	case *DeltaNode:
		for _, c := range v.Children() {
			g.dirtySubtree(c)
		}
	}
	return nil
}

// MarkRootsDirty invalidates the whole graph, e.g. after the mount
// configuration changed.
func (g *Graph) MarkRootsDirty() {
	for _, r := range g.Roots() {
		g.dirtySubtree(r)
	}
}

func (g *Graph) dirtySubtree(n *StateNode) {
	n.dirty = true
	g.dirtyDescendants(n)
}

// dirtyDescendants marks every node reachable through outgoing edges and
// through the edges leaving the node's deltas.
func (g *Graph) dirtyDescendants(n *StateNode) {
	for _, c := range n.Children() {
		g.dirtySubtree(c)
	}
	for _, d := range n.deltas {
		for _, c := range d.Children() {
			g.dirtySubtree(c)
		}
	}
}

func (g *Graph) notify(ctx context.Context, nodeID, delta string, out *domain.Output, d time.Duration, changed bool) {
	if g.hooks.OnEvaluate == nil && (!changed || g.hooks.OnValueChanged == nil) {
		return
	}
	ev := &domain.EvalEvent{Timestamp: time.Now(), NodeID: nodeID, Delta: delta, Duration: d, Output: out}
	if g.hooks.OnEvaluate != nil {
		g.hooks.OnEvaluate(ctx, ev)
	}
	if changed && g.hooks.OnValueChanged != nil {
		g.hooks.OnValueChanged(ctx, ev)
	}
}
