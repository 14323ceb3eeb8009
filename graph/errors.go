package graph

import "errors"

// ErrAwaitingInput is returned when a run is attempted on a thread whose
// latest checkpoint is paused and no resume value was supplied. The run is
// a no-op; the caller must resume with a value.
var ErrAwaitingInput = errors.New("graph: execution awaiting resume input")

// ErrNoMatchingRoute is returned when a non-terminal node's outgoing edges
// all reject the current state. This is a graph-definition defect, fatal
// to the run and never retried.
var ErrNoMatchingRoute = errors.New("graph: no matching route")

// ErrMaxAttemptsExceeded is returned when a node's transient failures
// outlast its retry policy, converting the failure to fatal.
var ErrMaxAttemptsExceeded = errors.New("graph: max retry attempts exceeded")

// ErrMaxStepsExceeded is returned when execution reaches the configured
// step limit without completing. Guards against loops with a missing or
// misconfigured conditional exit.
var ErrMaxStepsExceeded = errors.New("graph: execution exceeded maximum steps limit")

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate for
// inconsistent retry configuration.
var ErrInvalidRetryPolicy = errors.New("graph: invalid retry policy")

// EngineError is a coded error from graph construction or engine
// configuration.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
