// Package registry provides an in-process execution context: charm
// behaviour is expressed as Go handlers registered per event name.
package registry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
)

// Call is what a handler receives for one event.
type Call struct {
	Ctx   context.Context
	State *domain.State
	Event domain.Event
	Env   map[string]string

	side io.Writer
	logs *[]domain.LogLine
}

// Log records a structured component log line.
func (c *Call) Log(level, format string, args ...any) {
	*c.logs = append(*c.logs, domain.LogLine{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Printf writes to the side channel, like a charm printing to stdout.
func (c *Call) Printf(format string, args ...any) {
	fmt.Fprintf(c.side, format, args...)
}

// Handler computes the state following an event. It must not mutate c.State;
// use c.State.Replace to derive the result.
type Handler func(c *Call) (*domain.State, error)

// ActionHandler runs a charm action.
type ActionHandler func(c *Call, action domain.Action) (*domain.ActionOutput, error)

// Registry maps event and action names to handlers. It is a ports.ContextFactory
// and records every call it serves.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	actions  map[string]ActionHandler
	fallback Handler
	history  []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		actions:  make(map[string]ActionHandler),
	}
}

var _ ports.ContextFactory = (*Registry)(nil)

// Handle registers the handler for an event name, overwriting any previous one.
func (r *Registry) Handle(event string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

// HandleAction registers the handler for an action name (without the "-action" suffix).
func (r *Registry) HandleAction(name string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = h
}

// HandleAll registers a handler for events without a dedicated one.
// Without it such events leave the state unchanged.
func (r *Registry) HandleAll(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Calls returns the number of events and actions served so far.
func (r *Registry) Calls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// CallsFor counts the calls served for one event name.
func (r *Registry) CallsFor(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.history {
		if e == event {
			n++
		}
	}
	return n
}

// History returns the served event names in call order.
func (r *Registry) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// Reset forgets the call history.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

func (r *Registry) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, event)
}

// NewContext implements ports.ContextFactory.
func (r *Registry) NewContext(sideChannel io.Writer) (ports.ExecutionContext, error) {
	if sideChannel == nil {
		sideChannel = io.Discard
	}
	return &execContext{registry: r, side: sideChannel}, nil
}

type execContext struct {
	registry *Registry
	side     io.Writer
	logs     []domain.LogLine
}

func (c *execContext) call(ctx context.Context, state *domain.State, event domain.Event, env map[string]string) *Call {
	c.logs = nil
	return &Call{Ctx: ctx, State: state, Event: event, Env: env, side: c.side, logs: &c.logs}
}

func (c *execContext) Run(ctx context.Context, state *domain.State, event domain.Event, env map[string]string) (*domain.State, error) {
	c.registry.record(event.Name)

	c.registry.mu.RLock()
	h, ok := c.registry.handlers[event.Name]
	if !ok {
		h = c.registry.fallback
	}
	c.registry.mu.RUnlock()

	if h == nil {
		return state.Clone(), nil
	}
	return h(c.call(ctx, state, event, env))
}

func (c *execContext) RunAction(ctx context.Context, state *domain.State, action domain.Action, env map[string]string) (*domain.ActionOutput, error) {
	c.registry.record(action.Name + "-action")

	c.registry.mu.RLock()
	h, ok := c.registry.actions[action.Name]
	c.registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, action.Name)
	}
	event := domain.Event{Name: action.Name + "-action", Action: &action}
	return h(c.call(ctx, state, event, env), action)
}

func (c *execContext) ComponentLogs() []domain.LogLine {
	return append([]domain.LogLine(nil), c.logs...)
}
