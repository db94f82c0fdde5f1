package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/status"
)

var (
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorGray    = lipgloss.Color("#6272A4")
	colorWhite   = lipgloss.Color("#F8F8F2")

	headerStyle  = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	timeStyle    = lipgloss.NewStyle().Foreground(colorGray)
	featureStyle = lipgloss.NewStyle().Foreground(colorCyan)
	fromStyle    = lipgloss.NewStyle().Foreground(colorGray)
	toStyle      = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(colorWhite)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)
)

// RenderEvents writes one line per committed change.
func RenderEvents(w io.Writer, events []logic.Event, start time.Time) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-10s %-12s %s", "TIME", "FEATURE", "CHANGE")))
	for _, e := range events {
		fmt.Fprintf(w, "%s %s %s -> %s %s\n",
			timeStyle.Render(fmt.Sprintf("%-10s", "+"+e.Timestamp.Sub(start).String())),
			featureStyle.Render(fmt.Sprintf("%-12s", e.Feature)),
			fromStyle.Render(status.StateOrUnknown(string(e.From))),
			toStyle.Render(string(e.To)),
			valueStyle.Render(fmt.Sprintf("(%g)", e.Sample)),
		)
	}
}

// RenderSummary writes the final state and transition count per feature.
func RenderSummary(w io.Writer, snap []logic.FeatureSnapshot) {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Final state"))
	for _, f := range snap {
		fmt.Fprintf(&b, "\n%s %s  %d transitions",
			featureStyle.Render(fmt.Sprintf("%-12s", f.Feature)),
			toStyle.Render(status.StateOrUnknown(string(f.State))),
			f.Transitions,
		)
	}
	fmt.Fprintln(w, summaryStyle.Render(b.String()))
}
