// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToTUI(t *testing.T) {
	args, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, CmdTUI, args.Command)
	assert.False(t, args.Verbose)
}

func TestParseRun(t *testing.T) {
	args, err := Parse([]string{"run", "Task2"})
	require.NoError(t, err)
	assert.Equal(t, CmdRun, args.Command)
	assert.Equal(t, "Task2", args.Task)
}

func TestParseRunRequiresTask(t *testing.T) {
	_, err := Parse([]string{"run"})
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	args, err := Parse([]string{"--verbose", "--config", "/tmp/c.toml", "console"})
	require.NoError(t, err)
	assert.Equal(t, CmdConsole, args.Command)
	assert.True(t, args.Verbose)
	assert.Equal(t, "/tmp/c.toml", args.ConfigPath)
}

func TestParseConfigEquals(t *testing.T) {
	args, err := Parse([]string{"--config=/tmp/alt.toml"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/alt.toml", args.ConfigPath)
}

func TestParseUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"--frobnicate"})
	assert.Error(t, err)
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse([]string{"dance"})
	assert.Error(t, err)
}

func TestParseHelpAndVersion(t *testing.T) {
	for _, raw := range [][]string{{"--help"}, {"-h"}, {"help"}} {
		args, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, CmdHelp, args.Command)
	}
	for _, raw := range [][]string{{"--version"}, {"version"}} {
		args, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, CmdVersion, args.Command)
	}
}

func TestConsoleDispatch(t *testing.T) {
	var ran []string
	c := &Console{
		tasks:      []string{"Task1", "Task2"},
		lastResult: "no runs yet",
		run: func(task string) error {
			ran = append(ran, task)
			if task == "Task2" {
				return errors.New("boom")
			}
			return nil
		},
	}
	var buf bytes.Buffer
	c.out = &buf

	assert.False(t, c.dispatch("tasks"))
	assert.Contains(t, buf.String(), "Task1")

	buf.Reset()
	assert.False(t, c.dispatch("run Task1"))
	assert.Equal(t, []string{"Task1"}, ran)

	buf.Reset()
	assert.False(t, c.dispatch("status"))
	assert.Contains(t, buf.String(), "Task1: ok")

	buf.Reset()
	assert.False(t, c.dispatch("run Task2"))
	assert.Contains(t, buf.String(), "run failed")

	buf.Reset()
	assert.False(t, c.dispatch("run"))
	assert.Contains(t, buf.String(), "usage: run")

	buf.Reset()
	assert.False(t, c.dispatch("bogus"))
	assert.Contains(t, buf.String(), "unknown command")

	assert.True(t, c.dispatch("quit"))
	assert.True(t, c.dispatch("exit"))
}
