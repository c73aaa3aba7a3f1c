package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/presentation/tui"
	"github.com/aretw0/theatre/pkg/domain"
)

// Printer writes evaluation results either as rendered markdown or as JSON.
type Printer struct {
	W      io.Writer
	JSON   bool
	Render func(string) (string, error)
}

// NewPrinter returns a printer for w. Markdown is rendered with glamour
// unless raw is set.
func NewPrinter(w io.Writer, jsonMode, raw bool) *Printer {
	p := &Printer{W: w, JSON: jsonMode}
	if !jsonMode && !raw {
		p.Render = tui.NewRenderer(0)
	}
	return p
}

// Output prints the output of one node.
func (p *Printer) Output(id string, out *domain.Output) error {
	if p.JSON {
		return p.encode(theatre.TraceStep{ID: id, Output: out})
	}
	return p.markdown(tui.FormatOutput(id, out))
}

// Trace prints an evaluated trace.
func (p *Printer) Trace(steps []theatre.TraceStep) error {
	if p.JSON {
		return p.encode(steps)
	}
	return p.markdown(tui.FormatTrace(steps))
}

// Nodes prints a node listing.
func (p *Printer) Nodes(nodes []domain.NodeInfo) error {
	if p.JSON {
		return p.encode(nodes)
	}
	return p.markdown(tui.FormatNodes(nodes))
}

// Diff prints the changes a node made to its parent's state.
func (p *Printer) Diff(id string, diff *domain.StateDiff) error {
	if p.JSON {
		if diff == nil {
			diff = &domain.StateDiff{}
		}
		return p.encode(diff)
	}
	return p.markdown(tui.FormatDiff(id, diff))
}

func (p *Printer) encode(v any) error {
	enc := json.NewEncoder(p.W)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) markdown(md string) error {
	if p.Render != nil {
		rendered, err := p.Render(md)
		if err == nil {
			md = rendered
		}
	}
	_, err := fmt.Fprint(p.W, md)
	return err
}
