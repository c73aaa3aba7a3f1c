// Package execution invokes the external charm transition function for one
// (state, event) pair and normalizes the outcome into an Output.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
)

// Adapter runs events through a fresh execution context per call.
type Adapter struct {
	factory ports.ContextFactory
	logger  *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an adapter backed by the given context factory.
func New(factory ports.ContextFactory, opts ...Option) *Adapter {
	a := &Adapter{
		factory: factory,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute fires spec against state. Errors raised by the context are
// returned as-is; turning them into failure outputs is the caller's job.
func (a *Adapter) Execute(ctx context.Context, state *domain.State, spec *domain.EventSpec) (*domain.Output, error) {
	if spec == nil {
		return nil, domain.ErrEventSpecUnset
	}
	if a.factory == nil {
		return nil, errors.New("no execution context configured")
	}

	side := &sideChannel{}
	ectx, err := a.factory.NewContext(side)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution context: %w", err)
	}

	if spec.Event.Kind() == domain.KindAction {
		return a.runAction(ctx, ectx, side, state, spec)
	}

	event, err := CloseEvent(state, spec.Event, spec.Args)
	if err != nil {
		a.logger.Warn("could not close event, firing as-is", "event", spec.Event.Name, "err", err)
		event = spec.Event
	}

	next, err := ectx.Run(ctx, state, event, spec.Env)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", event.Name, err)
	}
	if next == nil {
		return nil, fmt.Errorf("event %s: context returned no state", event.Name)
	}
	return domain.NewOutput(next, ectx.ComponentLogs(), side.String()), nil
}

func (a *Adapter) runAction(ctx context.Context, ectx ports.ExecutionContext, side *sideChannel, state *domain.State, spec *domain.EventSpec) (*domain.Output, error) {
	action := domain.Action{Name: domain.Prefix(spec.Event.Name)}
	if spec.Event.Action != nil {
		action.ID = spec.Event.Action.ID
		action.Params = spec.Event.Action.Params
		if spec.Event.Action.Name != "" {
			action.Name = spec.Event.Action.Name
		}
	}
	if action.Params == nil && len(spec.Args) > 0 {
		action.Params = spec.Args
	}

	res, err := ectx.RunAction(ctx, state, action, spec.Env)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", action.Name, err)
	}
	if res == nil || res.State == nil {
		return nil, fmt.Errorf("action %s: context returned no state", action.Name)
	}
	if res.Failure != "" {
		return nil, fmt.Errorf("action %s failed: %s", action.Name, res.Failure)
	}

	logs := ectx.ComponentLogs()
	for _, l := range res.Logs {
		logs = append(logs, domain.LogLine{Level: "ACTION", Message: l})
	}
	out := domain.NewOutput(res.State, logs, side.String())
	out.ActionResults = res.Results
	return out, nil
}
