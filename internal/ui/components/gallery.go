// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
)

// Plot is one rendered FFT figure shown in the gallery.
type Plot struct {
	Name    string // array base name, e.g. "fft_data.npy"
	Path    string // saved PNG on disk
	Preview string // unicode sparkline of the magnitude spectrum
}

// Gallery lists the plots produced by the active run. The terminal
// cannot show the PNGs themselves, so each entry carries a sparkline
// preview plus the path where the full figure was written.
type Gallery struct {
	theme *styles.Theme
	plots []Plot
	width int
}

// NewGallery creates an empty gallery.
func NewGallery(theme *styles.Theme) Gallery {
	return Gallery{theme: theme, width: 80}
}

// SetWidth fixes the rendered width.
func (g *Gallery) SetWidth(width int) { g.width = width }

// Add appends a plot entry.
func (g *Gallery) Add(p Plot) { g.plots = append(g.plots, p) }

// Clear drops all entries, e.g. at the start of a new run.
func (g *Gallery) Clear() { g.plots = nil }

// Len reports the number of plots shown.
func (g Gallery) Len() int { return len(g.plots) }

// View renders the gallery.
func (g Gallery) View() string {
	if len(g.plots) == 0 {
		return g.theme.Faint.Render("No plots yet. Run a task to generate FFT figures.")
	}
	var b strings.Builder
	for i, p := range g.plots {
		if i > 0 {
			b.WriteString("\n")
		}
		var panel strings.Builder
		panel.WriteString(g.theme.PanelTitle.Render(p.Name))
		panel.WriteString("\n")
		panel.WriteString(g.theme.Preview.Render(p.Preview))
		panel.WriteString("\n")
		panel.WriteString(g.theme.Faint.Render(fmt.Sprintf("saved: %s", p.Path)))
		b.WriteString(g.theme.Panel.Width(g.width - 4).Render(panel.String()))
		b.WriteString("\n")
	}
	return b.String()
}
