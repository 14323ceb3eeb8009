package graph

import "encoding/json"

// ResumeSlot is the state slot the engine fills with the caller-supplied
// resume value before re-invoking an interrupted node.
const ResumeSlot = "resume"

// InterruptRequest is raised (as an error value) by a capability to
// suspend execution and await external input. The engine persists a paused
// checkpoint with the request attached and re-enters at the same node once
// a satisfying resume value arrives; no graph advancement happens in
// between.
type InterruptRequest struct {
	// NodeID optionally names the interrupting node. The engine records
	// the node ID on the paused checkpoint's interrupt regardless, so a
	// capability may leave this empty; the request value is never
	// written to by the engine and may be shared across invocations.
	NodeID string `json:"node_id,omitempty"`

	// Reason explains what input is needed, for display to the caller.
	Reason string `json:"reason"`

	// ResumeSchema optionally constrains acceptable resume values as a
	// JSON Schema. The coordinator validates resume values against it
	// before re-entering the run.
	ResumeSchema json.RawMessage `json:"resume_schema,omitempty"`
}

// Error implements the error interface so capabilities can return the
// request through their error value.
func (e *InterruptRequest) Error() string {
	if e.Reason != "" {
		return "interrupt requested: " + e.Reason
	}
	return "interrupt requested"
}

// Interrupt builds an InterruptRequest. Pass a nil schema to accept any
// resume value.
func Interrupt(reason string, resumeSchema json.RawMessage) *InterruptRequest {
	return &InterruptRequest{Reason: reason, ResumeSchema: resumeSchema}
}

// ResumeValue carries the external input that satisfies a pending
// interrupt. The value lands in the ResumeSlot state slot before the
// interrupted node is re-invoked.
type ResumeValue struct {
	Value any
}
