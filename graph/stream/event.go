// Package stream provides the event multiplexer that fans out execution
// progress to live subscribers.
//
// The execution engine is the sole publisher. Each execution has an ordered
// event sequence; subscribers receive events in publication order over a
// bounded per-subscriber queue. A subscriber that cannot keep up is dropped
// rather than allowed to stall the engine.
package stream

import "time"

// Kind identifies the type of an execution event.
type Kind string

// Event kinds emitted during graph execution.
//
// KindDone, KindError, and KindInterrupt are terminal: exactly one of them
// ends every event sequence, and subscriptions close after delivering it.
const (
	KindToken     Kind = "token"
	KindStepStart Kind = "step-start"
	KindStepEnd   Kind = "step-end"
	KindToolCall  Kind = "tool-call"
	KindInterrupt Kind = "interrupt"
	KindError     Kind = "error"
	KindDone      Kind = "done"
)

// Terminal reports whether the kind ends an execution's event sequence.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindError || k == KindInterrupt
}

// Event is one ordered unit of execution progress.
//
// Seq is assigned by the Mux at publication time and is strictly increasing
// and gapless within one execution. Payload fields are populated according
// to Kind:
//
//   - token: Token
//   - step-start, step-end: NodeID
//   - tool-call: NodeID, ToolName, ToolInput, ToolResult
//   - interrupt: NodeID, Reason
//   - error: Err, and NodeID when the failure is attributable to a node
//   - done: no payload
type Event struct {
	ExecutionID string         `json:"execution_id"`
	Seq         int            `json:"seq"`
	Kind        Kind           `json:"kind"`
	NodeID      string         `json:"node_id,omitempty"`
	Token       string         `json:"token,omitempty"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolInput   map[string]any `json:"tool_input,omitempty"`
	ToolResult  map[string]any `json:"tool_result,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Err         string         `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
