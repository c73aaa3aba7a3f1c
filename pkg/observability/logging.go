package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/theatre/pkg/domain"
)

// LoggingHooks logs recomputations, failures and transitions. Cache hits
// are logged at debug level only.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvaluate: func(ctx context.Context, e *domain.EvalEvent) {
			attrs := []any{"node", e.NodeID, "duration", e.Duration}
			if e.Delta != "" {
				attrs = append(attrs, "delta", e.Delta)
			}
			if e.Output.Failed() {
				attrs = append(attrs, "kind", e.Output.Failure.Kind, "err", e.Output.Failure.Message)
				logger.ErrorContext(ctx, "evaluation failed", attrs...)
				return
			}
			logger.InfoContext(ctx, "evaluated", attrs...)
		},
		OnCacheHit: func(ctx context.Context, e *domain.EvalEvent) {
			logger.DebugContext(ctx, "cache hit", "node", e.NodeID)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "transition failed", "node", e.NodeID, "event", e.Event, "kind", e.Kind.String(), "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "transition", "node", e.NodeID, "event", e.Event, "kind", e.Kind.String(), "duration", e.Duration)
		},
	}
}
