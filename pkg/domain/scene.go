package domain

// SceneSpec is the persisted description of a trace tree. It records node
// and edge identity plus the custom payloads, never cached outputs.
type SceneSpec struct {
	Name      string     `json:"name" yaml:"name"`
	Situation string     `json:"situation,omitempty" yaml:"situation,omitempty"`
	Nodes     []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges     []EdgeSpec `json:"edges" yaml:"edges"`
	// Sealed holds the whole scene encrypted by a store middleware; when set,
	// Nodes and Edges are empty.
	Sealed string `json:"sealed,omitempty" yaml:"sealed,omitempty"`
}

// NodeSpec is the persisted form of a state node.
type NodeSpec struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Custom is the user-set value of a custom node.
	Custom *State   `json:"custom,omitempty" yaml:"custom,omitempty"`
	Deltas []string `json:"deltas,omitempty" yaml:"deltas,omitempty"`
}

// EdgeSpec is the persisted form of an event edge. Start may name a node
// or a delta ("<node>#<delta>").
type EdgeSpec struct {
	ID        string     `json:"id" yaml:"id"`
	Start     string     `json:"start" yaml:"start"`
	End       string     `json:"end" yaml:"end"`
	EventSpec *EventSpec `json:"event_spec,omitempty" yaml:"event_spec,omitempty"`
}

// NodeStatus is the evaluation state of a node.
type NodeStatus string

const (
	StatusFresh   NodeStatus = "fresh"
	StatusDirty   NodeStatus = "dirty"
	StatusInvalid NodeStatus = "invalid"
	StatusCustom  NodeStatus = "custom"
)

// NodeInfo is a read-only snapshot of a node for presentation layers.
type NodeInfo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Root        bool       `json:"root"`
	Custom      bool       `json:"custom"`
	Dirty       bool       `json:"dirty"`
	Invalid     bool       `json:"invalid"`
	Status      NodeStatus `json:"status"`
	Parent      string     `json:"parent,omitempty"`
	EdgeIn      string     `json:"edge_in,omitempty"`
	Event       string     `json:"event,omitempty"`
	Deltas      []string   `json:"deltas,omitempty"`
	Children    []string   `json:"children,omitempty"`
	Output      *Output    `json:"output,omitempty"`
}
