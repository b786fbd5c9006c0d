// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/util"
)

// LogView is the scrolling task log: a viewport over a bounded line
// buffer, pinned to the bottom while new lines stream in.
type LogView struct {
	theme    *styles.Theme
	viewport viewport.Model
	lines    []string
	maxLines int
	width    int
	follow   bool
}

// NewLogView creates a log view with the given scrollback bound.
func NewLogView(theme *styles.Theme, maxLines int) LogView {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return LogView{
		theme:    theme,
		viewport: viewport.New(80, 20),
		maxLines: maxLines,
		width:    80,
		follow:   true,
	}
}

// SetSize resizes the underlying viewport.
func (l *LogView) SetSize(width, height int) {
	l.width = width
	l.viewport.Width = width
	l.viewport.Height = height
	l.refresh()
}

// Append adds one line, trimming the scrollback when it overflows.
func (l *LogView) Append(line string) {
	l.lines = append(l.lines, line)
	if len(l.lines) > l.maxLines {
		l.lines = l.lines[len(l.lines)-l.maxLines:]
	}
	l.refresh()
}

// Clear drops the scrollback, e.g. when a new run supersedes the log.
func (l *LogView) Clear() {
	l.lines = nil
	l.refresh()
}

// Update forwards scroll keys to the viewport. Manual scrolling releases
// the follow pin; scrolling back to the bottom restores it.
func (l *LogView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	l.viewport, cmd = l.viewport.Update(msg)
	l.follow = l.viewport.AtBottom()
	return cmd
}

// View renders the log.
func (l LogView) View() string {
	return l.viewport.View()
}

// refresh rebuilds the viewport content with per-line styling.
func (l *LogView) refresh() {
	styled := make([]string, len(l.lines))
	for i, line := range l.lines {
		line = util.TruncateWidth(line, l.width)
		if isErrorLine(line) {
			styled[i] = l.theme.LogError.Render(line)
		} else {
			styled[i] = l.theme.LogLine.Render(line)
		}
	}
	l.viewport.SetContent(strings.Join(styled, "\n"))
	if l.follow {
		l.viewport.GotoBottom()
	}
}

// isErrorLine flags the failure lines the pipeline emits.
func isErrorLine(line string) bool {
	return strings.Contains(line, "Error") ||
		strings.Contains(line, "Failed") ||
		strings.Contains(line, "return code") ||
		strings.Contains(line, "not found")
}
