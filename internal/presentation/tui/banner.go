package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Theatre ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _____ _                _              ", "#818cf8"},
		{" |_   _| |__   ___  __ _| |_ _ __ ___   ", "#a78bfa"},
		{"   | | | '_ \\ / _ \\/ _` | __| '__/ _ \\  ", "#c084fc"},
		{"   | | | | | |  __/ (_| | |_| | |  __/  ", "#e879f9"},
		{"   |_| |_| |_|\\___|\\__,_|\\__|_|  \\___|  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StatusBadge colors a node status for one-line listings.
func StatusBadge(status string) string {
	p := termenv.ColorProfile()
	color := "#9ca3af"
	switch status {
	case "fresh":
		color = "#34d399"
	case "dirty":
		color = "#facc15"
	case "invalid":
		color = "#f87171"
	case "custom":
		color = "#60a5fa"
	}
	return termenv.String(status).Foreground(p.Color(color)).String()
}
