// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
)

// Report shows tagged notebook cell output in a scrollable pane. The
// raw extract is monospace text, so it goes through glamour inside a
// fenced block for consistent terminal styling.
type Report struct {
	theme    *styles.Theme
	viewport viewport.Model
	raw      string
	width    int
}

// NewReport creates an empty report pane.
func NewReport(theme *styles.Theme) Report {
	return Report{
		theme:    theme,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// SetSize resizes the pane and re-renders the current content.
func (r *Report) SetSize(width, height int) {
	r.width = width
	r.viewport.Width = width
	r.viewport.Height = height
	if r.raw != "" {
		r.render()
	}
}

// SetContent replaces the report text.
func (r *Report) SetContent(text string) {
	r.raw = text
	r.render()
	r.viewport.GotoTop()
}

// Clear empties the pane.
func (r *Report) Clear() {
	r.raw = ""
	r.viewport.SetContent("")
}

// HasContent reports whether a report has been installed.
func (r Report) HasContent() bool { return r.raw != "" }

// Update forwards scroll keys to the viewport.
func (r *Report) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	r.viewport, cmd = r.viewport.Update(msg)
	return cmd
}

// View renders the pane.
func (r Report) View() string {
	if r.raw == "" {
		return r.theme.Faint.Render("No report yet. The training stage fills this pane.")
	}
	return r.viewport.View()
}

// render pushes the raw extract through glamour, falling back to the
// raw text when rendering fails.
func (r *Report) render() {
	doc := fmt.Sprintf("```\n%s\n```\n", r.raw)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width-2),
	)
	if err != nil {
		r.viewport.SetContent(r.raw)
		return
	}
	out, err := renderer.Render(doc)
	if err != nil {
		r.viewport.SetContent(r.raw)
		return
	}
	r.viewport.SetContent(out)
}
