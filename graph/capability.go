package graph

import (
	"context"

	"github.com/stategraph-ai/stategraph/graph/stream"
)

// Capability is the invocable unit behind one graph node: a model call, a
// tool invocation, or a router. It receives the current state and produces
// a partial state update plus zero or more output events.
//
// A capability signals outcomes through its error value:
//   - nil: success, Result applies.
//   - *InterruptRequest: suspend the execution and await external input;
//     the engine checkpoints and returns without advancing.
//   - *CapabilityError: classified failure. Transient failures are retried
//     with backoff from the node's pre-invocation state; fatal failures
//     terminate the run.
//
// Any other error is treated as fatal.
//
// Invocations may block on external I/O. The engine never preempts an
// in-flight invocation; a capability that can hang must bound its own I/O
// with the supplied context.
type Capability interface {
	Invoke(ctx context.Context, state State) (Result, error)
}

// Result is the successful output of a capability invocation.
type Result struct {
	// Delta is the partial state update to merge.
	Delta Delta

	// Events are streamed to subscribers in order, between the node's
	// step-start and step-end markers. The engine fills in ExecutionID,
	// Seq, and (when empty) NodeID.
	Events []stream.Event
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(ctx context.Context, state State) (Result, error)

// Invoke implements Capability.
func (f CapabilityFunc) Invoke(ctx context.Context, state State) (Result, error) {
	return f(ctx, state)
}

// FailureKind classifies a capability failure for retry handling.
type FailureKind string

const (
	// FailureTransient marks failures worth retrying at the same node:
	// rate limits, timeouts, connection resets.
	FailureTransient FailureKind = "transient"

	// FailureFatal marks failures that terminate the run.
	FailureFatal FailureKind = "fatal"
)

// CapabilityError is a classified failure from a capability invocation.
type CapabilityError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return string(e.Kind) + " capability failure: " + e.Message
}

// Unwrap returns the underlying cause.
func (e *CapabilityError) Unwrap() error {
	return e.Cause
}

// Transient builds a retryable capability failure.
func Transient(message string, cause error) *CapabilityError {
	return &CapabilityError{Kind: FailureTransient, Message: message, Cause: cause}
}

// Fatal builds a terminal capability failure.
func Fatal(message string, cause error) *CapabilityError {
	return &CapabilityError{Kind: FailureFatal, Message: message, Cause: cause}
}
