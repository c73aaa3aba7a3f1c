package domain

// LogLine is one structured log record emitted by the charm.
type LogLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Output is the result of evaluating one node: either a State or a Failure,
// never both. Outputs are replaced, not mutated, on re-evaluation.
type Output struct {
	State         *State         `json:"state,omitempty"`
	ComponentLogs []LogLine      `json:"component_logs,omitempty"`
	SideChannel   string         `json:"side_channel,omitempty"`
	ActionResults map[string]any `json:"action_results,omitempty"`
	Failure       *Failure       `json:"failure,omitempty"`
}

// NewOutput builds a successful output. It panics if state is nil.
func NewOutput(state *State, logs []LogLine, sideChannel string) *Output {
	if state == nil {
		panic("domain: successful output requires a state")
	}
	return &Output{
		State:         state,
		ComponentLogs: logs,
		SideChannel:   sideChannel,
	}
}

// FailedOutput builds an output carrying only a failure.
func FailedOutput(f *Failure) *Output {
	if f == nil {
		panic("domain: failed output requires a failure")
	}
	return &Output{Failure: f}
}

// Failed reports whether the output carries a failure.
func (o *Output) Failed() bool {
	return o != nil && o.Failure != nil
}
