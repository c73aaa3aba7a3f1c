package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/theatre/pkg/domain"
)

// GraphOverlay contains dynamic evaluation data to visualize on the graph.
type GraphOverlay struct {
	// Trace is the evaluated chain, root first.
	Trace   []string
	Current string
	Invalid []string
}

// EventColors maps an event label (see domain.Event.Label) to its edge color.
var EventColors = map[string]string{
	"lifecycle":     "#60a5fa",
	"update-status": "#94a3b8",
	"leader":        "#facc15",
	"relation":      "#34d399",
	"secret":        "#f472b6",
	"storage":       "#a78bfa",
	"workload":      "#fb923c",
	"action":        "#f87171",
	"generic":       "#9ca3af",
}

// GenerateMermaid produces a Mermaid flowchart of a scene.
// It applies semantic styling:
// - Root: ((Circle))
// - Custom: [[Subroutine]]
// - Delta: {{Hexagon}}, linked to its owner with a dotted arrow
// - Default: [Rectangle]
// Edges are labelled with their event and colored by event label.
func GenerateMermaid(spec *domain.SceneSpec, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if spec == nil {
		return sb.String()
	}

	hasParent := make(map[string]bool, len(spec.Edges))
	for _, e := range spec.Edges {
		hasParent[e.End] = true
	}

	link := 0
	var linkStyles []string

	for _, node := range spec.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.Custom != nil:
			opener, closer = "[[", "]]"
		case !hasParent[node.ID]:
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(nodeLabel(node)), closer))

		for _, name := range node.Deltas {
			deltaID := node.ID + "#" + name
			safeDelta := sanitizeMermaidID(deltaID)
			sb.WriteString(fmt.Sprintf("    %s{{\"Δ %s\"}}\n", safeDelta, escapeLabel(name)))
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, safeDelta))
			link++
		}
	}

	for _, e := range spec.Edges {
		var arrow string
		color := EventColors["generic"]
		if e.EventSpec == nil {
			arrow = "-. \"?\" .->"
		} else {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.EventSpec.Event.Name))
			if c, ok := EventColors[e.EventSpec.Event.Label()]; ok {
				color = c
			}
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.Start), arrow, sanitizeMermaidID(e.End)))
		linkStyles = append(linkStyles, fmt.Sprintf("    linkStyle %d stroke:%s,stroke-width:2px;\n", link, color))
		link++
	}

	if len(linkStyles) > 0 {
		sb.WriteString("\n    %% Event Colors\n")
		for _, s := range linkStyles {
			sb.WriteString(s)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on light fills.
		sb.WriteString("    classDef traced fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef invalid fill:#fee2e2,stroke:#b91c1c,stroke-width:2px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Trace {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s traced;\n", safeID))
			}
		}
		for _, id := range overlay.Invalid {
			sb.WriteString(fmt.Sprintf("    class %s invalid;\n", sanitizeMermaidID(id)))
		}
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func nodeLabel(n domain.NodeSpec) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "#", "__", " ", "_")
	return r.Replace(id)
}
