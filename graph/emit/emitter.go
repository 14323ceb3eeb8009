// Package emit provides pluggable observability emitters for graph
// execution. The engine reports lifecycle events (node starts, retries,
// checkpoint writes) to an Emitter; this channel is operational telemetry,
// separate from the caller-facing event stream.
package emit

// Emitter receives observability events from the execution engine.
//
// Implementations should be non-blocking, safe for concurrent use, and
// resilient: a failing backend must not crash or stall execution. Common
// patterns are buffering, filtering, fan-out to multiple backends, and
// sampling.
type Emitter interface {
	// Emit delivers one event. Must not panic; backend errors are the
	// implementation's to handle.
	Emit(event Event)
}

// Event is one observability record from an execution.
type Event struct {
	// ThreadID is the logical conversation the execution belongs to.
	ThreadID string

	// ExecutionID identifies the run that produced the event.
	ExecutionID string

	// Step is the node invocation count at emission time. Zero for
	// run-level events.
	Step int

	// NodeID is the node involved, if any.
	NodeID string

	// Msg names the event: "node_start", "node_complete", "node_retry",
	// "node_error", "checkpoint_saved", "run_complete".
	Msg string

	// Meta carries additional structured data. Common keys:
	// "duration_ms", "error", "attempt", "seq", "status".
	Meta map[string]any
}
