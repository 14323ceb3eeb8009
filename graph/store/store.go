// Package store provides durable checkpoint persistence for graph executions.
//
// A checkpoint is an immutable, sequence-numbered snapshot of execution
// state. Checkpoints for a thread form an append-only history; the one with
// the highest sequence number is the sole resumption point. All backends
// honor the same version-checked append contract: an Append whose sequence
// number is not exactly latest+1 fails with ErrVersionConflict. Backends
// with weaker native guarantees emulate the contract rather than relax it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("store: not found")

// ErrVersionConflict is returned by Append when the checkpoint's sequence
// number is not exactly one past the thread's latest. The caller must
// reload the latest checkpoint and retry the read-then-write cycle.
var ErrVersionConflict = errors.New("store: checkpoint version conflict")

// Status is the persisted lifecycle state of an execution at a checkpoint.
type Status string

// Execution statuses. Completed, Failed, and Cancelled are terminal;
// Paused awaits a resume value; Running marks an in-flight step boundary.
const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends an execution.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Interrupt is the persisted form of a capability-initiated pause. The
// execution suspended at NodeID and resumes there once a value satisfying
// ResumeSchema is supplied.
type Interrupt struct {
	NodeID string `json:"node_id"`

	// Reason is a human-readable explanation of why input is needed.
	Reason string `json:"reason"`

	// ResumeSchema is an optional JSON Schema constraining acceptable
	// resume values. Empty means any value is accepted.
	ResumeSchema json.RawMessage `json:"resume_schema,omitempty"`
}

// Checkpoint is one immutable snapshot in a thread's execution history.
//
// Seq is strictly increasing per thread with no gaps, starting at 1.
// NextNode is the node the execution will run next when resumed from this
// checkpoint; empty for terminal checkpoints. A crash after a checkpoint
// is written resumes exactly at NextNode, never mid-node.
//
// Type parameter S is the execution state snapshot type; it must be
// JSON-serializable for the database-backed stores.
type Checkpoint[S any] struct {
	ThreadID    string `json:"thread_id"`
	ExecutionID string `json:"execution_id"`
	Seq         int    `json:"seq"`

	State    S      `json:"state"`
	NextNode string `json:"next_node,omitempty"`

	PendingInterrupt *Interrupt `json:"pending_interrupt,omitempty"`

	Status Status `json:"status"`

	// Err records the failure cause for StatusFailed checkpoints.
	Err string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Store persists execution checkpoints keyed by thread.
//
// Implementations must be safe for concurrent use. The engine serializes
// writers per thread, but reads (Latest, History) may race with an append
// on another thread.
type Store[S any] interface {
	// Latest returns the checkpoint with the highest sequence number for
	// the thread, or ErrNotFound if the thread has no history.
	Latest(ctx context.Context, threadID string) (Checkpoint[S], error)

	// Append writes a new checkpoint. It fails with ErrVersionConflict
	// unless cp.Seq is exactly the thread's latest sequence plus one
	// (or 1 for a thread with no history). Checkpoints are immutable
	// once written; Append never overwrites.
	Append(ctx context.Context, threadID string, cp Checkpoint[S]) error

	// History returns the thread's full checkpoint history ordered by
	// ascending sequence number. Empty (not ErrNotFound) for unknown
	// threads.
	History(ctx context.Context, threadID string) ([]Checkpoint[S], error)
}
