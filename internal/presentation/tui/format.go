package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/pkg/domain"
	"gopkg.in/yaml.v3"
)

// FormatOutput renders the output of one node as markdown.
func FormatOutput(id string, out *domain.Output) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", id)
	writeOutput(&sb, out)
	return sb.String()
}

// FormatTrace renders an evaluated trace, root first, as markdown.
func FormatTrace(steps []theatre.TraceStep) string {
	var sb strings.Builder
	sb.WriteString("# Trace\n\n")
	for i, step := range steps {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, step.ID)
		writeOutput(&sb, step.Output)
	}
	return sb.String()
}

// FormatNodes renders a node listing as a markdown table.
func FormatNodes(nodes []domain.NodeInfo) string {
	var sb strings.Builder
	sb.WriteString("| id | title | status | event | parent |\n")
	sb.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, n := range nodes {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", n.ID, n.Title, n.Status, n.Event, n.Parent)
	}
	return sb.String()
}

func writeOutput(sb *strings.Builder, out *domain.Output) {
	if out == nil {
		sb.WriteString("_not evaluated_\n\n")
		return
	}
	if out.Failed() {
		origin := out.Failure.Origin()
		fmt.Fprintf(sb, "**Failed** `%s`: %s\n\n", out.Failure.Kind, out.Failure.Message)
		if origin != out.Failure {
			fmt.Fprintf(sb, "Origin: `%s` at `%s`: %s\n\n", origin.Kind, origin.NodeID, origin.Message)
		}
		return
	}

	state, err := yaml.Marshal(out.State)
	if err != nil {
		state = []byte(err.Error())
	}
	sb.WriteString("### State\n\n```yaml\n")
	sb.Write(state)
	sb.WriteString("```\n\n")

	if len(out.ComponentLogs) > 0 {
		sb.WriteString("### Logs\n\n")
		for _, l := range out.ComponentLogs {
			fmt.Fprintf(sb, "- **%s** %s\n", l.Level, l.Message)
		}
		sb.WriteString("\n")
	}
	if out.SideChannel != "" {
		sb.WriteString("### Side channel\n\n```\n")
		sb.WriteString(strings.TrimRight(out.SideChannel, "\n"))
		sb.WriteString("\n```\n\n")
	}
	if len(out.ActionResults) > 0 {
		keys := make([]string, 0, len(out.ActionResults))
		for k := range out.ActionResults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("### Action results\n\n")
		for _, k := range keys {
			fmt.Fprintf(sb, "- `%s`: %v\n", k, out.ActionResults[k])
		}
		sb.WriteString("\n")
	}
}

// FormatDiff renders what a node changed relative to its parent's state.
func FormatDiff(id string, diff *domain.StateDiff) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", id)
	if diff.IsEmpty() {
		sb.WriteString("_no changes_\n\n")
		return sb.String()
	}
	body, err := yaml.Marshal(diff)
	if err != nil {
		body = []byte(err.Error())
	}
	fmt.Fprintf(&sb, "```yaml\n%s```\n\n", body)
	return sb.String()
}
