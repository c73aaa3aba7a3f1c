package ports

import (
	"context"
	"io"

	"github.com/aretw0/theatre/pkg/domain"
)

// ExecutionContext wraps the external charm transition function.
// A context accumulates component logs as a side effect of each call, so it
// must not be shared between concurrent evaluations.
type ExecutionContext interface {
	// Run fires a (non-action) event against the state and returns the next state.
	Run(ctx context.Context, state *domain.State, event domain.Event, env map[string]string) (*domain.State, error)

	// RunAction runs a charm action against the state.
	RunAction(ctx context.Context, state *domain.State, action domain.Action, env map[string]string) (*domain.ActionOutput, error)

	// ComponentLogs returns what the charm logged during the last call.
	ComponentLogs() []domain.LogLine
}

// ContextFactory builds a fresh ExecutionContext for one call. Anything the
// transition writes to its side output must go to sideChannel.
type ContextFactory interface {
	NewContext(sideChannel io.Writer) (ExecutionContext, error)
}

// ContextFactoryFunc adapts a function to ContextFactory.
type ContextFactoryFunc func(sideChannel io.Writer) (ExecutionContext, error)

func (f ContextFactoryFunc) NewContext(sideChannel io.Writer) (ExecutionContext, error) {
	return f(sideChannel)
}
