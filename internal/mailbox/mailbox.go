// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

package mailbox

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity bounds the queue. Posts beyond it are dropped rather
// than blocking a worker; a task log outrunning the UI by this much means
// the UI is gone or wedged.
const DefaultCapacity = 1024

// completionPostWait bounds how long a completion message may wait for
// queue room. Log lines drop immediately under pressure; the terminal
// message gets one short grace so a log burst cannot swallow it.
const completionPostWait = time.Second

// Mailbox is the single-consumer queue between workers and the UI loop.
//
// Post is safe from any goroutine and never blocks. Next must only be
// called from the consumer. After Close, posts are silently discarded.
type Mailbox struct {
	ch     chan Message
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once

	mu     sync.Mutex
	active map[string]RunID // task name -> run allowed to touch the UI
}

// New creates a mailbox with the default capacity.
func New() *Mailbox {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a mailbox with an explicit queue bound.
func NewWithCapacity(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{
		ch:     make(chan Message, capacity),
		done:   make(chan struct{}),
		active: make(map[string]RunID),
	}
}

// =============================================================================
// RUN IDENTITY
// =============================================================================

// BeginRun marks a new run of task as the active one and returns its id.
// Messages from any earlier run of the same task become stale immediately
// and will be discarded at drain time.
func (m *Mailbox) BeginRun(task string) RunID {
	run := NewRunID()
	m.mu.Lock()
	m.active[task] = run
	m.mu.Unlock()
	return run
}

// ActiveRun returns the run currently allowed to touch task's UI regions.
func (m *Mailbox) ActiveRun(task string) (RunID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.active[task]
	return run, ok
}

// stale reports whether msg belongs to a superseded run. Messages without
// a run id (ambient notices) are never stale.
func (m *Mailbox) stale(msg Message) bool {
	if msg.Run == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[msg.Task] != msg.Run
}

// =============================================================================
// PRODUCER SIDE
// =============================================================================

// Post enqueues a message. Log and artifact messages never block: they
// drop when the mailbox is closed (UI shutdown) or full. A completion
// message on a full queue instead waits briefly for room, since the
// consumer keys run termination off it.
func (m *Mailbox) Post(msg Message) {
	if m.closed.Load() {
		return
	}
	select {
	case m.ch <- msg:
		return
	default:
	}

	if msg.Kind != KindCompletion {
		slog.Warn("mailbox full, dropping message", "task", msg.Task, "kind", msg.Kind)
		return
	}
	select {
	case m.ch <- msg:
	case <-m.done:
	case <-time.After(completionPostWait):
		slog.Warn("mailbox full, dropping completion", "task", msg.Task)
	}
}

// PostLog posts one log line for the given run.
func (m *Mailbox) PostLog(run RunID, task, line string) {
	m.Post(Message{Run: run, Task: task, Kind: KindLog, Line: line})
}

// PostArtifact posts an encoded artifact for installation into region.
// The payload is copied so the caller may reuse its buffer.
func (m *Mailbox) PostArtifact(run RunID, task string, region Region, name string, payload []byte, preview string) {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	m.Post(Message{
		Run:     run,
		Task:    task,
		Kind:    KindArtifact,
		Region:  region,
		Name:    name,
		Payload: owned,
		Preview: preview,
	})
}

// PostCompletion posts the single terminal message for a run. Completion
// messages are attempted even while shutdown is in progress; only a closed
// mailbox discards them.
func (m *Mailbox) PostCompletion(run RunID, task string, status Status, detail string) {
	m.Post(Message{Run: run, Task: task, Kind: KindCompletion, Status: status, Detail: detail})
}

// =============================================================================
// CONSUMER SIDE
// =============================================================================

// Next blocks until a message for a live run is available, skipping stale
// ones. It returns false once the mailbox is closed and drained of nothing
// more to deliver.
func (m *Mailbox) Next() (Message, bool) {
	for {
		select {
		case msg := <-m.ch:
			if m.stale(msg) {
				continue
			}
			return msg, true
		case <-m.done:
			// Drain whatever was enqueued before the close.
			select {
			case msg := <-m.ch:
				if m.stale(msg) {
					continue
				}
				return msg, true
			default:
				return Message{}, false
			}
		}
	}
}

// TryNext is the non-blocking variant of Next, for pull-style consumers.
func (m *Mailbox) TryNext() (Message, bool) {
	for {
		select {
		case msg := <-m.ch:
			if m.stale(msg) {
				continue
			}
			return msg, true
		default:
			return Message{}, false
		}
	}
}

// Len returns the number of queued messages, stale ones included.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// Close marks the mailbox shut. Subsequent posts are discarded; a blocked
// consumer wakes up after the backlog is drained. Safe to call more than
// once.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		m.closed.Store(true)
		close(m.done)
	})
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	return m.closed.Load()
}
