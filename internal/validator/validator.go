package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/theatre/pkg/domain"
)

// DeltaResolver reports whether a delta name can be loaded.
type DeltaResolver func(name string) (domain.Delta, error)

// ValidateScene checks that a stored scene can be restored: unique ids,
// edges between existing nodes (or declared deltas), at most one incoming
// edge per node and no cycles. When resolve is set, every delta name must
// resolve. All problems are reported together.
func ValidateScene(spec *domain.SceneSpec, resolve DeltaResolver) error {
	if spec == nil {
		return fmt.Errorf("scene is nil")
	}
	if spec.Sealed != "" {
		return fmt.Errorf("scene %s is sealed; validate it with the key it was saved with", spec.Name)
	}

	var errors []string
	nodes := make(map[string]bool, len(spec.Nodes))
	deltas := make(map[string]bool)

	for _, n := range spec.Nodes {
		switch {
		case n.ID == "":
			errors = append(errors, "Node with empty id")
			continue
		case strings.Contains(n.ID, "#"):
			errors = append(errors, fmt.Sprintf("Node id '%s' must not contain '#'", n.ID))
		case nodes[n.ID]:
			errors = append(errors, fmt.Sprintf("Duplicate node id '%s'", n.ID))
		}
		nodes[n.ID] = true

		for _, name := range n.Deltas {
			id := n.ID + "#" + name
			if deltas[id] {
				errors = append(errors, fmt.Sprintf("Duplicate delta '%s'", id))
			}
			deltas[id] = true
			if resolve != nil {
				if _, err := resolve(name); err != nil {
					errors = append(errors, fmt.Sprintf("Delta '%s' cannot be loaded: %v", id, err))
				}
			}
		}
	}

	edges := make(map[string]bool, len(spec.Edges))
	parent := make(map[string]string, len(spec.Edges))
	for _, e := range spec.Edges {
		if e.ID == "" {
			errors = append(errors, fmt.Sprintf("Edge %s -> %s has an empty id", e.Start, e.End))
		} else if edges[e.ID] {
			errors = append(errors, fmt.Sprintf("Duplicate edge id '%s'", e.ID))
		}
		edges[e.ID] = true

		if !nodes[e.Start] && !deltas[e.Start] {
			errors = append(errors, fmt.Sprintf("Edge '%s' starts at missing node '%s'", e.ID, e.Start))
		}
		if !nodes[e.End] {
			errors = append(errors, fmt.Sprintf("Edge '%s' ends at missing node '%s'", e.ID, e.End))
			continue
		}
		if _, taken := parent[e.End]; taken {
			errors = append(errors, fmt.Sprintf("Node '%s' has more than one incoming edge", e.End))
			continue
		}
		parent[e.End] = ownerOf(e.Start)
	}

	for _, n := range spec.Nodes {
		if onCycle(n.ID, parent) {
			errors = append(errors, fmt.Sprintf("Node '%s' is on a cycle", n.ID))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}

// ownerOf maps a delta id to the node that owns it.
func ownerOf(id string) string {
	if i := strings.Index(id, "#"); i >= 0 {
		return id[:i]
	}
	return id
}

func onCycle(id string, parent map[string]string) bool {
	seen := map[string]bool{id: true}
	cur := id
	for {
		p, ok := parent[cur]
		if !ok {
			return false
		}
		if p == id {
			return true
		}
		if seen[p] {
			// A cycle further up; it is reported for the nodes on it.
			return false
		}
		seen[p] = true
		cur = p
	}
}
