// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mailbox marshals results from background workers to the single
// goroutine that owns presentation state.
//
// Workers may post from any goroutine; only one consumer drains. Messages
// are immutable once constructed and carry owned copies of their payloads,
// so nothing is shared across the worker/UI boundary after a post.
package mailbox

import "github.com/google/uuid"

// RunID identifies one invocation of a task. Messages from a superseded
// run are discarded by the consumer.
type RunID string

// Kind discriminates the three message shapes the core emits toward the
// presentation layer.
type Kind int

const (
	// KindLog appends one line to the task log.
	KindLog Kind = iota

	// KindArtifact installs a rendered payload into a UI region.
	KindArtifact

	// KindCompletion reports the final outcome of a run.
	KindCompletion
)

// Region names a UI target for artifact installation.
type Region string

const (
	// RegionPlots is the FFT plot gallery tab.
	RegionPlots Region = "plots"

	// RegionReport is the notebook output tab.
	RegionReport Region = "report"
)

// Status is the terminal outcome carried by a completion message.
type Status int

const (
	// StatusCompleted means every stage item succeeded.
	StatusCompleted Status = iota

	// StatusDegraded means the run finished but at least one item failed.
	StatusDegraded

	// StatusFailed means the run could not produce a useful result.
	StatusFailed

	// StatusCancelled means the run stopped early at a cancellation point.
	StatusCancelled
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusDegraded:
		return "Completed with failures"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Message is one unit of work handed to the consumer. Fields beyond Kind
// are populated per shape; unused fields stay zero.
type Message struct {
	// Run is the originating run, used for stale-run discard.
	Run RunID

	// Task is the task the run belongs to.
	Task string

	// Kind selects which of the three shapes this is.
	Kind Kind

	// Line is the log text (KindLog).
	Line string

	// Region is the artifact target (KindArtifact).
	Region Region

	// Name is a display name for the artifact (KindArtifact).
	Name string

	// Payload is the encoded artifact, an owned copy (KindArtifact).
	Payload []byte

	// Preview is an optional terminal-friendly rendition of the payload
	// (KindArtifact).
	Preview string

	// Status is the run outcome (KindCompletion).
	Status Status

	// Detail is the human-readable outcome summary (KindCompletion).
	Detail string
}

// NewRunID mints a fresh run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}
