package domain

import (
	"context"
	"time"
)

// EvalEvent describes one evaluation of a node or delta.
type EvalEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	NodeID    string        `json:"node_id"`
	Delta     string        `json:"delta,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Output    *Output       `json:"output,omitempty"`
}

// TransitionEvent describes one call into the execution context.
type TransitionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	NodeID    string        `json:"node_id"`
	Event     string        `json:"event"`
	Kind      EventKind     `json:"kind"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any of them may be nil.
type LifecycleHooks struct {
	// OnEvaluate fires after every evaluation that recomputed, including delta reads.
	OnEvaluate func(context.Context, *EvalEvent)
	// OnValueChanged fires once per recomputation of a node and when a custom
	// value is set. Memoized hits, custom reads and delta reads never fire it.
	OnValueChanged func(context.Context, *EvalEvent)
	OnCacheHit     func(context.Context, *EvalEvent)
	OnTransition   func(context.Context, *TransitionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnEvaluate:     chainEval(h.OnEvaluate, other.OnEvaluate),
		OnValueChanged: chainEval(h.OnValueChanged, other.OnValueChanged),
		OnCacheHit:     chainEval(h.OnCacheHit, other.OnCacheHit),
		OnTransition:   chainTransition(h.OnTransition, other.OnTransition),
	}
}

func chainEval(a, b func(context.Context, *EvalEvent)) func(context.Context, *EvalEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *EvalEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTransition(a, b func(context.Context, *TransitionEvent)) func(context.Context, *TransitionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TransitionEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
