package domain

import (
	"github.com/mohae/deepcopy"
)

// Status is a workload status as reported by a charm (e.g. active/blocked).
type Status struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Mount declares that Src (a directory on the host) is visible at Location
// inside a container.
type Mount struct {
	Location string `json:"location" yaml:"location"`
	Src      string `json:"src" yaml:"src"`
}

// Container is a workload container of the charm.
// Mounts are keyed by an identifying name; by convention the target path.
type Container struct {
	Name       string           `json:"name" yaml:"name"`
	CanConnect bool             `json:"can_connect,omitempty" yaml:"can_connect,omitempty"`
	Mounts     map[string]Mount `json:"mounts,omitempty" yaml:"mounts,omitempty"`
}

// Relation is an integration between the charm and a remote application.
type Relation struct {
	ID              int                          `json:"id" yaml:"id"`
	Endpoint        string                       `json:"endpoint" yaml:"endpoint"`
	Interface       string                       `json:"interface,omitempty" yaml:"interface,omitempty"`
	RemoteAppName   string                       `json:"remote_app_name,omitempty" yaml:"remote_app_name,omitempty"`
	LocalAppData    map[string]string            `json:"local_app_data,omitempty" yaml:"local_app_data,omitempty"`
	RemoteAppData   map[string]string            `json:"remote_app_data,omitempty" yaml:"remote_app_data,omitempty"`
	LocalUnitData   map[string]string            `json:"local_unit_data,omitempty" yaml:"local_unit_data,omitempty"`
	RemoteUnitsData map[string]map[string]string `json:"remote_units_data,omitempty" yaml:"remote_units_data,omitempty"`
}

// Secret is a secret the charm owns or has been granted.
type Secret struct {
	ID       string            `json:"id" yaml:"id"`
	Label    string            `json:"label,omitempty" yaml:"label,omitempty"`
	Owner    string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	Revision int               `json:"revision,omitempty" yaml:"revision,omitempty"`
	Contents map[string]string `json:"contents,omitempty" yaml:"contents,omitempty"`
}

// Storage is an attached storage instance.
type Storage struct {
	Name  string `json:"name" yaml:"name"`
	Index int    `json:"index,omitempty" yaml:"index,omitempty"`
}

// State is an immutable snapshot of everything a charm can observe.
// Values handed out by the engine are shared: derive new states with
// Clone or Replace instead of mutating in place.
type State struct {
	Config          map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Leader          bool           `json:"leader,omitempty" yaml:"leader,omitempty"`
	Relations       []Relation     `json:"relations,omitempty" yaml:"relations,omitempty"`
	Containers      []Container    `json:"containers,omitempty" yaml:"containers,omitempty"`
	Storages        []Storage      `json:"storages,omitempty" yaml:"storages,omitempty"`
	Secrets         []Secret       `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	StoredState     map[string]any `json:"stored_state,omitempty" yaml:"stored_state,omitempty"`
	UnitStatus      Status         `json:"unit_status,omitempty" yaml:"unit_status,omitempty"`
	AppStatus       Status         `json:"app_status,omitempty" yaml:"app_status,omitempty"`
	WorkloadVersion string         `json:"workload_version,omitempty" yaml:"workload_version,omitempty"`
}

// NewState returns the empty/default state used as the input of root nodes.
func NewState() *State {
	return &State{}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return deepcopy.Copy(s).(*State)
}

// Replace returns a modified deep copy of the state; the receiver is untouched.
func (s *State) Replace(fn func(*State)) *State {
	next := s.Clone()
	if next == nil {
		next = NewState()
	}
	fn(next)
	return next
}

// Container returns the container with the given name.
func (s *State) Container(name string) (*Container, bool) {
	for i := range s.Containers {
		if s.Containers[i].Name == name {
			return &s.Containers[i], true
		}
	}
	return nil, false
}

// RelationsFor returns every relation bound to the given endpoint.
func (s *State) RelationsFor(endpoint string) []Relation {
	var out []Relation
	for _, r := range s.Relations {
		if r.Endpoint == endpoint {
			out = append(out, r)
		}
	}
	return out
}

// Storage returns the first storage with the given name.
func (s *State) Storage(name string) (*Storage, bool) {
	for i := range s.Storages {
		if s.Storages[i].Name == name {
			return &s.Storages[i], true
		}
	}
	return nil, false
}

// Secret looks a secret up by id, falling back to its label.
func (s *State) Secret(idOrLabel string) (*Secret, bool) {
	for i := range s.Secrets {
		if s.Secrets[i].ID == idOrLabel {
			return &s.Secrets[i], true
		}
	}
	for i := range s.Secrets {
		if s.Secrets[i].Label != "" && s.Secrets[i].Label == idOrLabel {
			return &s.Secrets[i], true
		}
	}
	return nil, false
}
