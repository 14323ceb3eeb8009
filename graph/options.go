package graph

import "github.com/stategraph-ai/stategraph/graph/emit"

// Options configures Engine execution behavior. Zero values select
// sensible defaults.
type Options struct {
	// MaxSteps limits the number of node invocations per run. If 0, no
	// limit is enforced (use with caution on cyclic graphs).
	MaxSteps int

	// Retry governs transient capability failures. Zero value selects
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// ConflictRetries bounds how many times a checkpoint append is
	// retried after a version conflict before the run fails. If 0, the
	// default of 3 is used.
	ConflictRetries int

	// Emitter receives observability events (node starts, retries,
	// checkpoint writes). Optional; nil disables emission.
	Emitter emit.Emitter

	// Metrics receives Prometheus metric updates. Optional.
	Metrics *Metrics
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithMaxSteps limits execution to n node invocations.
//
// Loops (A -> B -> A) are supported; use MaxSteps to bound them when a
// conditional exit is missing or misconfigured. Exceeding the limit fails
// the run with ErrMaxStepsExceeded.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithRetryPolicy sets the transient-failure retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Options) { o.Retry = p }
}

// WithConflictRetries bounds checkpoint append retries after version
// conflicts.
func WithConflictRetries(n int) Option {
	return func(o *Options) { o.ConflictRetries = n }
}

// WithEmitter attaches an observability emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) { o.Emitter = e }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// normalize fills in defaults for unset options.
func (o *Options) normalize() {
	if o.Retry == (RetryPolicy{}) {
		o.Retry = DefaultRetryPolicy()
	}
	if o.ConflictRetries <= 0 {
		o.ConflictRetries = 3
	}
}
