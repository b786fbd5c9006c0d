// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package proc tracks live child processes spawned by background workers
// so shutdown can terminate them deterministically.
package proc

import (
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Registry is the process-wide set of running children. Workers register a
// command after Start and unregister it after Wait; the registration
// window covers the whole period the process may be alive, including
// streaming reads.
type Registry struct {
	mu    sync.Mutex
	procs map[*exec.Cmd]struct{}

	// grace is how long a terminated child gets before a forced kill.
	grace time.Duration

	// poll is the liveness check interval inside the grace window.
	poll time.Duration
}

// New creates a registry with the given termination budgets.
func New(grace, poll time.Duration) *Registry {
	if grace <= 0 {
		grace = 3 * time.Second
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &Registry{
		procs: make(map[*exec.Cmd]struct{}),
		grace: grace,
		poll:  poll,
	}
}

// Register adds a started command to the registry. Must be called before
// any blocking read of the command's output.
func (r *Registry) Register(cmd *exec.Cmd) {
	r.mu.Lock()
	r.procs[cmd] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes a command. A no-op when the command is already gone,
// so the owner's cleanup and TerminateAll cannot double-count.
func (r *Registry) Unregister(cmd *exec.Cmd) {
	r.mu.Lock()
	delete(r.procs, cmd)
	r.mu.Unlock()
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// TerminateAll snapshots the member set, sends each child a graceful
// terminate, polls liveness until the grace deadline, and kills whatever
// is still alive. Signal failures on already-dead processes are
// swallowed. The snapshot members are removed from the registry when this
// returns; owners reap exit status via their own Wait.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	snapshot := make([]*exec.Cmd, 0, len(r.procs))
	for cmd := range r.procs {
		snapshot = append(snapshot, cmd)
	}
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}
	slog.Info("terminating child processes", "count", len(snapshot))

	for _, cmd := range snapshot {
		if cmd.Process == nil {
			continue
		}
		// Best effort: the process may have exited on its own.
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(r.grace)
	for _, cmd := range snapshot {
		if cmd.Process == nil {
			continue
		}
		for alive(cmd) && time.Now().Before(deadline) {
			time.Sleep(r.poll)
		}
		if alive(cmd) {
			slog.Warn("child did not exit within grace period, killing", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
		}
	}

	r.mu.Lock()
	for _, cmd := range snapshot {
		delete(r.procs, cmd)
	}
	r.mu.Unlock()
}

// alive probes the process with signal 0. os.Process serializes this
// against a concurrent Wait in the owning goroutine, so the probe is safe
// while the worker is still reaping. Note ProcessState is deliberately not
// consulted here: Wait writes it without synchronization.
func alive(cmd *exec.Cmd) bool {
	if cmd.Process == nil {
		return false
	}
	return cmd.Process.Signal(syscall.Signal(0)) == nil
}
