// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/mailbox"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/util"
)

// ==========================================================================
// Run state
// ==========================================================================

// RunState describes what the status bar should show for the active task.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateFinished
	StateShuttingDown
)

// ==========================================================================
// Status bar
// ==========================================================================

// StatusBar shows the active task, a spinner while a run is in flight,
// and the final status once a completion message arrives.
type StatusBar struct {
	theme   *styles.Theme
	spinner spinner.Model
	state   RunState
	task    string
	result  mailbox.Status
	detail  string
	width   int
}

// NewStatusBar creates an idle status bar.
func NewStatusBar(theme *styles.Theme) StatusBar {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.StatusRunning),
	)
	return StatusBar{theme: theme, spinner: sp, width: 80}
}

// SetWidth fixes the rendered width.
func (s *StatusBar) SetWidth(width int) { s.width = width }

// StartRun switches the bar into the running state for the given task.
// The returned command drives the spinner animation.
func (s *StatusBar) StartRun(task string) tea.Cmd {
	s.state = StateRunning
	s.task = task
	s.detail = ""
	return s.spinner.Tick
}

// FinishRun records the terminal status of the active run. The bar is a
// single line, so only the first line of the detail is kept.
func (s *StatusBar) FinishRun(result mailbox.Status, detail string) {
	s.state = StateFinished
	s.result = result
	s.detail = util.FirstLine(detail)
}

// ShuttingDown switches the bar into the shutdown state.
func (s *StatusBar) ShuttingDown() {
	s.state = StateShuttingDown
}

// Update advances the spinner while a run is in flight.
func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	if s.state != StateRunning {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// View renders the bar.
func (s StatusBar) View() string {
	var left string
	switch s.state {
	case StateIdle:
		left = s.theme.StatusReady.Render("Ready") + s.theme.Faint.Render("  press 1-3 to run a task")
	case StateRunning:
		left = s.spinner.View() + s.theme.StatusRunning.Render(fmt.Sprintf("%s running…", s.task))
	case StateFinished:
		label := fmt.Sprintf("%s: %s", s.task, s.result)
		style := s.theme.StatusCompleted
		if s.result == mailbox.StatusFailed || s.result == mailbox.StatusCancelled {
			style = s.theme.StatusFailed
		}
		left = style.Render(label)
		if s.detail != "" {
			left += s.theme.Faint.Render(" " + s.detail)
		}
	case StateShuttingDown:
		left = s.theme.StatusRunning.Render("Shutting down…")
	}

	content := left
	if w := lipgloss.Width(content); w < s.width {
		content += strings.Repeat(" ", s.width-w)
	}
	return s.theme.StatusBar.Render(content)
}
