package domain

// EventSpec labels an edge: the event to fire, free-form arguments used to
// complete it, and environment overrides for the transition.
type EventSpec struct {
	Event Event             `json:"event" yaml:"event"`
	Args  map[string]any    `json:"args,omitempty" yaml:"args,omitempty"`
	Env   map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// NewEventSpec is a shorthand for an event spec with no args or env.
func NewEventSpec(name string) *EventSpec {
	return &EventSpec{Event: Event{Name: name}}
}
