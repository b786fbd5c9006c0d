// console.go - Line-oriented interactive console.
//
// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// =============================================================================
// CONSOLE
// =============================================================================

// Console is the fallback interface for terminals that cannot host the
// full-screen UI. It offers the same task pipelines behind a small
// command loop with input history and line editing.
type Console struct {
	line        *liner.State
	historyFile string
	tasks       []string
	run         func(task string) error
	lastResult  string
	out         io.Writer
}

// NewConsole creates a console session. run executes one task pipeline
// synchronously and returns its terminal error, if any.
func NewConsole(tasks []string, run func(task string) error) *Console {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	historyFile := filepath.Join(home, ".fius", "console_history")

	c := &Console{
		line:        line,
		historyFile: historyFile,
		tasks:       tasks,
		run:         run,
		lastResult:  "no runs yet",
		out:         os.Stdout,
	}
	c.loadHistory()
	return c
}

// Run drives the read-eval loop until the user quits or input ends.
func (c *Console) Run() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("console mode requires an interactive terminal")
	}
	defer c.Close()

	fmt.Fprintln(c.out, "FIUS sensor workbench console. Type 'help' for commands.")
	for {
		input, err := c.line.Prompt("fius> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		c.line.AppendHistory(input)

		if done := c.dispatch(input); done {
			return nil
		}
	}
}

// dispatch executes one console command. It returns true when the
// session should end.
func (c *Console) dispatch(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(c.out, consoleHelp)
	case "tasks":
		for _, t := range c.tasks {
			fmt.Fprintf(c.out, "  %s\n", t)
		}
	case "status":
		fmt.Fprintf(c.out, "last run: %s\n", c.lastResult)
	case "run":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: run <task>")
			return false
		}
		task := fields[1]
		if err := c.run(task); err != nil {
			c.lastResult = fmt.Sprintf("%s: %v", task, err)
			fmt.Fprintf(c.out, "run failed: %v\n", err)
		} else {
			c.lastResult = fmt.Sprintf("%s: ok", task)
		}
	default:
		fmt.Fprintf(c.out, "unknown command: %s (try 'help')\n", fields[0])
	}
	return false
}

const consoleHelp = `Commands:
  tasks         List the configured tasks
  run <task>    Execute one task pipeline
  status        Show the result of the last run
  quit          Exit the console
`

// loadHistory restores command history from previous sessions.
func (c *Console) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory persists command history.
func (c *Console) saveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and releases the terminal.
func (c *Console) Close() {
	c.saveHistory()
	c.line.Close()
}
