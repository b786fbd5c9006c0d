// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle owns the process-wide cancellation flag and the
// shutdown sequence.
package lifecycle

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/proc"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/worker"
)

// Flag is the process-wide cancellation flag: set exactly once, never
// reset. Workers poll it at stage boundaries and on every output line.
type Flag struct {
	v atomic.Bool
}

// Set flips the flag. Later calls are no-ops.
func (f *Flag) Set() {
	f.v.Store(true)
}

// IsSet reports whether cancellation was requested.
func (f *Flag) IsSet() bool {
	return f.v.Load()
}

// Coordinator drives bounded, deterministic shutdown: flag, then child
// processes, then workers, then retained UI resources.
type Coordinator struct {
	flag    *Flag
	procs   *proc.Registry
	workers *worker.Registry

	// joinBudget is the per-worker join timeout.
	joinBudget time.Duration

	mu      sync.Mutex
	release []func()

	once sync.Once
	done chan struct{}
}

// NewCoordinator wires a coordinator over the shared flag and registries.
func NewCoordinator(flag *Flag, procs *proc.Registry, workers *worker.Registry, joinBudget time.Duration) *Coordinator {
	if joinBudget <= 0 {
		joinBudget = time.Second
	}
	return &Coordinator{
		flag:       flag,
		procs:      procs,
		workers:    workers,
		joinBudget: joinBudget,
		done:       make(chan struct{}),
	}
}

// OnShutdown registers a release hook run after workers are joined.
// Hooks release resources the UI consumer retained (cached artifact
// handles, the mailbox). Registration after Initiate is ignored.
func (c *Coordinator) OnShutdown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	c.release = append(c.release, fn)
}

// Initiate runs the shutdown sequence. The first call does the work and
// blocks until it finishes; concurrent and repeated calls block until the
// same single sequence has completed, then return. Never blocks past the
// join budget times the worker count plus the process grace window.
func (c *Coordinator) Initiate() {
	c.once.Do(func() {
		start := time.Now()
		slog.Info("shutdown initiated")

		// 1. Stop new stages and process starts.
		c.flag.Set()

		// 2. Terminate children: graceful, then forced.
		c.procs.TerminateAll()

		// 3. Join workers with a bounded per-worker budget. A worker stuck
		// in a non-cancellable call is abandoned, not waited on forever;
		// after the registries release below it can no longer reach the UI.
		if !c.workers.JoinAll(c.joinBudget) {
			slog.Warn("some workers did not join before the shutdown budget")
		}

		// 4. Release UI-retained resources.
		c.mu.Lock()
		hooks := c.release
		c.release = nil
		c.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}

		slog.Info("shutdown complete", "elapsed", time.Since(start))
		close(c.done)
	})
	<-c.done
}

// Done returns a channel closed once shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
