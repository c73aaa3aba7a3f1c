package tracetree

import (
	"context"
	"fmt"

	"github.com/aretw0/theatre/pkg/domain"
)

// Trace returns the chain of evaluables from the nearest root down to id,
// root first.
func (g *Graph) Trace(id string) ([]Evaluable, error) {
	ev, err := g.Lookup(id)
	if err != nil {
		return nil, err
	}

	limit := g.walkLimit() + 1
	var rev []Evaluable
	for cur := ev; cur != nil; cur = cur.Previous() {
		if len(rev) > limit {
			return nil, fmt.Errorf("%w: trace of %s does not end at a root", domain.ErrCycle, id)
		}
		rev = append(rev, cur)
	}

	trace := make([]Evaluable, len(rev))
	for i, e := range rev {
		trace[len(rev)-1-i] = e
	}
	return trace, nil
}

// EvaluateAll evaluates the trace in order and stops at the first failure.
// It returns the outputs computed so far, the failed one included; later
// entries are left untouched.
func (g *Graph) EvaluateAll(ctx context.Context, trace []Evaluable) []*domain.Output {
	outs := make([]*domain.Output, 0, len(trace))
	for _, ev := range trace {
		out := ev.Evaluate(ctx)
		outs = append(outs, out)
		if out.Failed() {
			g.logger.Info("trace evaluation stopped", "node", ev.ID(), "kind", out.Failure.Kind)
			break
		}
	}
	return outs
}
