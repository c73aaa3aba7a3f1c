package domain

import "errors"

// ErrNodeNotFound is returned when an id names no node (or delta) of the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an id names no edge of the graph.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDeltaNotFound is returned when a delta name cannot be resolved.
var ErrDeltaNotFound = errors.New("delta not found")

// ErrSceneNotFound is returned when a scene cannot be found in the store.
var ErrSceneNotFound = errors.New("scene not found")

// ErrAlreadyConnected is returned when connecting into a node that already has an incoming edge.
var ErrAlreadyConnected = errors.New("node already has an incoming edge")

// ErrCycle is returned when an edge would make a node its own ancestor.
var ErrCycle = errors.New("edge would create a cycle")

// ErrEventSpecUnset is returned when evaluation reaches an edge with no event spec.
var ErrEventSpecUnset = errors.New("event spec unset")

// ErrResourceMissing is returned when a declared mount source does not exist.
var ErrResourceMissing = errors.New("resource missing")

// ErrDeltaType is returned when a delta does not yield a valid state.
var ErrDeltaType = errors.New("delta did not return a state")

// ErrCloseEvent is returned when an event's references cannot be inferred from the state.
var ErrCloseEvent = errors.New("cannot close event")

// ErrUnknownAction is returned by execution contexts that do not define an action.
var ErrUnknownAction = errors.New("unknown action")
