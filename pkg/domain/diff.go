package domain

import (
	"fmt"
	"reflect"
	"sort"
)

// StateDiff represents the changes a transition made to a state.
// It is designed to be serialized to JSON for inspection clients.
type StateDiff struct {
	// Config and StoredState contain only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Config      map[string]any `json:"config,omitempty"`
	StoredState map[string]any `json:"stored_state,omitempty"`

	Leader          *bool   `json:"leader,omitempty"`
	UnitStatus      *Status `json:"unit_status,omitempty"`
	AppStatus       *Status `json:"app_status,omitempty"`
	WorkloadVersion *string `json:"workload_version,omitempty"`

	Relations  *ListDelta `json:"relations,omitempty"`
	Containers *ListDelta `json:"containers,omitempty"`
	Secrets    *ListDelta `json:"secrets,omitempty"`
	Storages   *ListDelta `json:"storages,omitempty"`
}

// ListDelta reports, by key, the elements of a list that were added,
// removed or changed.
type ListDelta struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// A nil oldState is treated as the empty state. It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}
	if oldState == nil {
		oldState = NewState()
	}

	diff := &StateDiff{
		Config:      diffMap(oldState.Config, newState.Config),
		StoredState: diffMap(oldState.StoredState, newState.StoredState),
	}

	if oldState.Leader != newState.Leader {
		diff.Leader = &newState.Leader
	}
	if oldState.UnitStatus != newState.UnitStatus {
		diff.UnitStatus = &newState.UnitStatus
	}
	if oldState.AppStatus != newState.AppStatus {
		diff.AppStatus = &newState.AppStatus
	}
	if oldState.WorkloadVersion != newState.WorkloadVersion {
		diff.WorkloadVersion = &newState.WorkloadVersion
	}

	diff.Relations = diffList(oldState.Relations, newState.Relations, func(r Relation) string {
		return fmt.Sprintf("%s:%d", r.Endpoint, r.ID)
	})
	diff.Containers = diffList(oldState.Containers, newState.Containers, func(c Container) string { return c.Name })
	diff.Secrets = diffList(oldState.Secrets, newState.Secrets, func(s Secret) string { return s.ID })
	diff.Storages = diffList(oldState.Storages, newState.Storages, func(s Storage) string {
		return fmt.Sprintf("%s/%d", s.Name, s.Index)
	})

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffMap(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffList[T any](old, new []T, key func(T) string) *ListDelta {
	before := make(map[string]T, len(old))
	for _, v := range old {
		before[key(v)] = v
	}

	d := &ListDelta{}
	seen := make(map[string]bool, len(new))
	for _, v := range new {
		k := key(v)
		seen[k] = true
		prev, ok := before[k]
		switch {
		case !ok:
			d.Added = append(d.Added, k)
		case !reflect.DeepEqual(prev, v):
			d.Changed = append(d.Changed, k)
		}
	}
	for k := range before {
		if !seen[k] {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Removed)

	if len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 {
		return nil
	}
	return d
}

// IsEmpty checks if the diff contains any change.
func (d *StateDiff) IsEmpty() bool {
	if d == nil {
		return true
	}
	return len(d.Config) == 0 &&
		len(d.StoredState) == 0 &&
		d.Leader == nil &&
		d.UnitStatus == nil &&
		d.AppStatus == nil &&
		d.WorkloadVersion == nil &&
		d.Relations == nil &&
		d.Containers == nil &&
		d.Secrets == nil &&
		d.Storages == nil
}
