// cli.go - Command-line argument handling for the workbench binary.
//
// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the workbench's command line and implements the
// non-TUI entry points: one-shot pipeline runs and the interactive
// console for terminals that cannot host the full interface.
package cli

import (
	"fmt"
	"strings"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command selects which entry point the binary runs.
type Command int

const (
	// CmdTUI launches the full-screen terminal interface (default).
	CmdTUI Command = iota
	// CmdRun executes one task pipeline and exits.
	CmdRun
	// CmdConsole starts the line-oriented interactive console.
	CmdConsole
	// CmdVersion prints version information.
	CmdVersion
	// CmdHelp prints usage.
	CmdHelp
)

// Args is the parsed command line.
type Args struct {
	Command    Command
	Task       string // task name for CmdRun
	ConfigPath string // --config override
	Verbose    bool   // --verbose
}

// Parse interprets the raw arguments (without the program name).
func Parse(raw []string) (Args, error) {
	args := Args{Command: CmdTUI}
	var positional []string

	i := 0
	for i < len(raw) {
		arg := raw[i]
		switch {
		case arg == "--verbose" || arg == "-v":
			args.Verbose = true
			i++
		case arg == "--config":
			if i+1 >= len(raw) {
				return args, fmt.Errorf("--config requires a path")
			}
			args.ConfigPath = raw[i+1]
			i += 2
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
			i++
		case arg == "--help" || arg == "-h":
			args.Command = CmdHelp
			return args, nil
		case arg == "--version":
			args.Command = CmdVersion
			return args, nil
		case strings.HasPrefix(arg, "-"):
			return args, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
			i++
		}
	}

	if len(positional) == 0 {
		return args, nil
	}

	switch positional[0] {
	case "run":
		if len(positional) < 2 {
			return args, fmt.Errorf("run requires a task name (e.g. run Task1)")
		}
		args.Command = CmdRun
		args.Task = positional[1]
	case "console":
		args.Command = CmdConsole
	case "version":
		args.Command = CmdVersion
	case "help":
		args.Command = CmdHelp
	default:
		return args, fmt.Errorf("unknown command: %s", positional[0])
	}
	return args, nil
}

// Usage returns the help text.
func Usage() string {
	return `FIUS sensor workbench

Usage:
  fius-workbench                 Launch the terminal interface
  fius-workbench run <task>      Run one task pipeline and exit
  fius-workbench console         Interactive line-oriented console
  fius-workbench version         Print version information

Flags:
  --config <path>   Use an alternate configuration file
  --verbose, -v     Enable debug logging
  --help, -h        Show this help
`
}
