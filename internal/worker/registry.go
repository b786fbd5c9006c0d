// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker tracks background units of work and joins them at
// shutdown.
package worker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle identifies one running unit of work.
type Handle struct {
	// ID is the unique worker identifier.
	ID string

	done chan struct{}
}

// Join blocks until the worker finishes or the timeout elapses. Returns
// true when the worker finished.
func (h *Handle) Join(timeout time.Duration) bool {
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns a channel closed when the worker function has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry is the process-wide set of live workers. Handles remove
// themselves when the worker function returns; callers never unregister
// explicitly.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*Handle)}
}

// Spawn starts fn on a new goroutine immediately and returns its handle.
// The handle is removed from the registry when fn returns, whether it
// finished, failed, or bailed out at a cancellation point. A panic in fn
// is contained and logged; it must never cross into the UI loop.
func (r *Registry) Spawn(fn func()) *Handle {
	h := &Handle{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.workers[h.ID] = h
	r.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("worker panicked", "worker", h.ID, "panic", rec)
			}
			r.mu.Lock()
			delete(r.workers, h.ID)
			r.mu.Unlock()
			close(h.done)
		}()
		fn()
	}()

	return h
}

// Len returns the number of live workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// JoinAll snapshots the live workers and waits for each with the given
// per-worker budget. It never cancels anything itself; workers are
// expected to observe the cancellation flag on their own. Returns true
// when every snapshot member finished inside its budget.
func (r *Registry) JoinAll(perWorker time.Duration) bool {
	r.mu.Lock()
	snapshot := make([]*Handle, 0, len(r.workers))
	for _, h := range r.workers {
		snapshot = append(snapshot, h)
	}
	r.mu.Unlock()

	all := true
	for _, h := range snapshot {
		if !h.Join(perWorker) {
			slog.Warn("worker did not finish within join budget, abandoning", "worker", h.ID)
			all = false
		}
	}
	return all
}
