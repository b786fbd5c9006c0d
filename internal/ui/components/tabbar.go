// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the workbench
// TUI.
package components

import (
	"strings"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
)

// TabBar renders the result tabs (Log, FFT Plots, Report).
type TabBar struct {
	theme  *styles.Theme
	Tabs   []string
	Active int
}

// NewTabBar creates a tab bar over the given labels.
func NewTabBar(theme *styles.Theme, tabs ...string) TabBar {
	return TabBar{theme: theme, Tabs: tabs}
}

// Next cycles forward through the tabs.
func (t *TabBar) Next() {
	if len(t.Tabs) > 0 {
		t.Active = (t.Active + 1) % len(t.Tabs)
	}
}

// Prev cycles backward through the tabs.
func (t *TabBar) Prev() {
	if len(t.Tabs) > 0 {
		t.Active = (t.Active - 1 + len(t.Tabs)) % len(t.Tabs)
	}
}

// View renders the bar.
func (t TabBar) View() string {
	var b strings.Builder
	for i, label := range t.Tabs {
		if i == t.Active {
			b.WriteString(t.theme.TabActive.Render(label))
		} else {
			b.WriteString(t.theme.TabInactive.Render(label))
		}
		if i < len(t.Tabs)-1 {
			b.WriteString(" ")
		}
	}
	return t.theme.TabBar.Render(b.String())
}
