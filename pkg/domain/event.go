package domain

import "strings"

// EventKind classifies an event by the structural references it needs.
type EventKind int

const (
	KindGeneric EventKind = iota
	KindLifecycle
	KindRelation
	KindSecret
	KindStorage
	KindWorkload
	KindAction
)

var eventKindNames = map[EventKind]string{
	KindGeneric:   "generic",
	KindLifecycle: "lifecycle",
	KindRelation:  "relation",
	KindSecret:    "secret",
	KindStorage:   "storage",
	KindWorkload:  "workload",
	KindAction:    "action",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// lifecycleEvents are the builtin hooks that carry no payload.
var lifecycleEvents = map[string]bool{
	"install":                 true,
	"start":                   true,
	"stop":                    true,
	"remove":                  true,
	"update-status":           true,
	"config-changed":          true,
	"upgrade-charm":           true,
	"leader-elected":          true,
	"leader-settings-changed": true,
	"collect-metrics":         true,
	"pre-series-upgrade":      true,
	"post-series-upgrade":     true,
}

var (
	relationSuffixes = []string{"-relation-created", "-relation-joined", "-relation-changed", "-relation-departed", "-relation-broken"}
	storageSuffixes  = []string{"-storage-attached", "-storage-detaching"}
	workloadSuffixes = []string{"-pebble-ready", "-pebble-custom-notice", "-pebble-check-failed", "-pebble-check-recovered"}
)

// Classify returns the kind of an event given only its name.
func Classify(name string) EventKind {
	switch {
	case lifecycleEvents[name]:
		return KindLifecycle
	case strings.HasSuffix(name, "-action"):
		return KindAction
	case strings.HasPrefix(name, "secret-"):
		return KindSecret
	}
	if _, ok := trimAnySuffix(name, relationSuffixes); ok {
		return KindRelation
	}
	if _, ok := trimAnySuffix(name, storageSuffixes); ok {
		return KindStorage
	}
	if _, ok := trimAnySuffix(name, workloadSuffixes); ok {
		return KindWorkload
	}
	return KindGeneric
}

// Prefix returns the entity name an event refers to: the endpoint of a
// relation event, the container of a workload event, the storage of a
// storage event, or the action of an action event. It is empty for other kinds.
func Prefix(name string) string {
	switch Classify(name) {
	case KindAction:
		return strings.TrimSuffix(name, "-action")
	case KindRelation:
		p, _ := trimAnySuffix(name, relationSuffixes)
		return p
	case KindStorage:
		p, _ := trimAnySuffix(name, storageSuffixes)
		return p
	case KindWorkload:
		p, _ := trimAnySuffix(name, workloadSuffixes)
		return p
	}
	return ""
}

func trimAnySuffix(name string, suffixes []string) (string, bool) {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) && len(name) > len(s) {
			return strings.TrimSuffix(name, s), true
		}
	}
	return "", false
}

// Action is a user-triggered charm action.
type Action struct {
	Name   string         `json:"name" yaml:"name"`
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ActionOutput is what running an action returns.
type ActionOutput struct {
	State   *State         `json:"state"`
	Results map[string]any `json:"results,omitempty"`
	Logs    []string       `json:"logs,omitempty"`
	Failure string         `json:"failure,omitempty"`
}

// Event identifies a charm hook plus the optional payload it refers to.
// Payload references are filled in from the input state when missing
// (see the execution adapter's close step).
type Event struct {
	Name         string     `json:"name" yaml:"name"`
	Relation     *Relation  `json:"relation,omitempty" yaml:"relation,omitempty"`
	RemoteUnitID *int       `json:"remote_unit_id,omitempty" yaml:"remote_unit_id,omitempty"`
	Container    *Container `json:"container,omitempty" yaml:"container,omitempty"`
	Secret       *Secret    `json:"secret,omitempty" yaml:"secret,omitempty"`
	Storage      *Storage   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Action       *Action    `json:"action,omitempty" yaml:"action,omitempty"`
}

// Kind classifies the event by name.
func (e Event) Kind() EventKind {
	return Classify(e.Name)
}

// Label is a short display category, distinguishing update-status and
// leader events from the other lifecycle hooks.
func (e Event) Label() string {
	switch {
	case e.Name == "update-status":
		return "update-status"
	case strings.HasPrefix(e.Name, "leader"):
		return "leader"
	}
	return e.Kind().String()
}
