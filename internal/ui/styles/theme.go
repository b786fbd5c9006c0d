// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the workbench
// TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App    lipgloss.Style
	Header lipgloss.Style
	Title  lipgloss.Style

	// ==========================================================================
	// TAB STYLES
	// ==========================================================================

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabBar      lipgloss.Style

	// ==========================================================================
	// LOG STYLES
	// ==========================================================================

	LogLine  lipgloss.Style
	LogError lipgloss.Style

	// ==========================================================================
	// PANEL STYLES
	// ==========================================================================

	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Preview    lipgloss.Style
	Faint      lipgloss.Style

	// ==========================================================================
	// STATUS STYLES
	// ==========================================================================

	StatusBar       lipgloss.Style
	StatusReady     lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusCompleted lipgloss.Style
	StatusFailed    lipgloss.Style
	Help            lipgloss.Style
}

// NewTheme builds the default theme for the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()

	t := &Theme{
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}

	accent := lipgloss.Color("39")    // blue
	muted := lipgloss.Color("241")    // gray
	good := lipgloss.Color("42")      // green
	bad := lipgloss.Color("196")      // red
	warn := lipgloss.Color("214")     // orange
	surface := lipgloss.Color("236")  // dark gray

	t.App = lipgloss.NewStyle().Padding(0, 1)
	t.Header = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	t.Title = lipgloss.NewStyle().Bold(true)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(accent).
		Padding(0, 2)
	t.TabInactive = lipgloss.NewStyle().
		Foreground(muted).
		Padding(0, 2)
	t.TabBar = lipgloss.NewStyle().MarginBottom(1)

	t.LogLine = lipgloss.NewStyle()
	t.LogError = lipgloss.NewStyle().Foreground(bad)

	t.Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1)
	t.PanelTitle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Preview = lipgloss.NewStyle().Foreground(accent)
	t.Faint = lipgloss.NewStyle().Foreground(muted)

	t.StatusBar = lipgloss.NewStyle().Background(surface).Padding(0, 1)
	t.StatusReady = lipgloss.NewStyle().Foreground(muted)
	t.StatusRunning = lipgloss.NewStyle().Foreground(warn).Bold(true)
	t.StatusCompleted = lipgloss.NewStyle().Foreground(good)
	t.StatusFailed = lipgloss.NewStyle().Foreground(bad).Bold(true)
	t.Help = lipgloss.NewStyle().Foreground(muted)

	return t
}
