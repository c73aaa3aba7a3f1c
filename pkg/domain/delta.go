package domain

// DeltaFunc transforms a state into a derived state. It must not mutate its input.
type DeltaFunc func(*State) (*State, error)

// Delta is a named, pure state transform attached to a node.
type Delta struct {
	Name  string
	Apply DeltaFunc
}

// NewDelta is a convenience constructor.
func NewDelta(name string, fn DeltaFunc) Delta {
	return Delta{Name: name, Apply: fn}
}
