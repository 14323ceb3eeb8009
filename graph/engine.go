package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stategraph-ai/stategraph/graph/emit"
	"github.com/stategraph-ai/stategraph/graph/store"
	"github.com/stategraph-ai/stategraph/graph/stream"
)

// Engine walks a compiled graph from the thread's last committed
// checkpoint, invoking each node's capability, persisting a checkpoint
// after every completed node, and publishing progress events to the
// multiplexer.
//
// Durability contract: the checkpoint for a node is appended before the
// engine advances past it. A crash at any point resumes exactly after the
// last completed node, never mid-node.
//
// The engine assumes a single writer per thread; the session coordinator
// enforces that. A checkpoint version conflict therefore indicates an
// external writer and is handled by reloading and retrying a bounded
// number of times.
type Engine struct {
	graph *Graph
	store store.Store[State]
	mux   *stream.Mux
	opts  Options
}

// NewEngine creates an execution engine over a compiled graph.
//
// The store is required. The mux may be nil, in which case no events are
// streamed (useful for tests exercising only persistence semantics).
func NewEngine(g *Graph, st store.Store[State], mux *stream.Mux, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, &EngineError{Message: "graph is required", Code: "MISSING_GRAPH"}
	}
	if st == nil {
		return nil, &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if err := g.Compile(); err != nil {
		return nil, err
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.normalize()
	if err := o.Retry.Validate(); err != nil {
		return nil, err
	}

	return &Engine{graph: g, store: st, mux: mux, opts: o}, nil
}

// Mux returns the engine's event multiplexer, nil when none was configured.
// Callers attach subscribers through it before starting a run so no events
// are missed.
func (e *Engine) Mux() *stream.Mux {
	return e.mux
}

// Run executes the thread's graph until a terminal state: completed,
// failed, cancelled, or paused on an interrupt.
//
// The walk starts from the thread's latest checkpoint; a thread with no
// history starts fresh at the graph's start node, and a thread whose last
// execution terminated starts a new walk carrying the accumulated state
// forward. If the latest checkpoint is paused, resume must be non-nil or
// Run fails with ErrAwaitingInput without touching the thread.
//
// input is merged into the state before the first node runs. Events are
// published under executionID; checkpoints record it as well.
//
// The returned checkpoint is the last one persisted. For failed runs the
// error describes the cause; the same cause is recorded on the checkpoint
// and in the terminal error event, so no failure is observable in only
// one place.
func (e *Engine) Run(ctx context.Context, threadID, executionID string, input Delta, resume *ResumeValue) (store.Checkpoint[State], error) {
	var zero store.Checkpoint[State]

	state, current, seq, err := e.loadStart(ctx, threadID, resume)
	if err != nil {
		return zero, err
	}
	state = state.Apply(input)

	e.opts.Metrics.runStarted()
	defer e.opts.Metrics.runEnded()

	run := &runContext{
		threadID:    threadID,
		executionID: executionID,
		seq:         seq,
	}

	steps := 0
	for {
		steps++
		if e.opts.MaxSteps > 0 && steps > e.opts.MaxSteps {
			return e.fail(ctx, run, state, current, ErrMaxStepsExceeded)
		}

		// Cancellation is cooperative: consulted between node
		// invocations, never mid-call.
		if ctx.Err() != nil {
			return e.cancel(ctx, run, state, current)
		}

		n, ok := e.graph.lookup(current)
		if !ok {
			return e.fail(ctx, run, state, current, &EngineError{
				Message: "node not found during execution: " + current,
				Code:    "NODE_NOT_FOUND",
			})
		}

		e.publish(run, stream.Event{Kind: stream.KindStepStart, NodeID: current})
		e.emit(run, steps, current, "node_start", nil)

		started := time.Now()
		res, invokeErr := e.invokeWithRetry(ctx, run, steps, n, state)

		var ir *InterruptRequest
		switch {
		case invokeErr == nil:
			e.opts.Metrics.observeStep(current, "success", time.Since(started))

		case errors.As(invokeErr, &ir):
			// Pause: checkpoint the pre-invocation state with the
			// interrupt attached. Zero graph advancement. The request
			// value belongs to the capability and is not written to;
			// the node ID is recorded on the checkpoint's interrupt.
			e.opts.Metrics.observeStep(current, "interrupt", time.Since(started))
			e.opts.Metrics.interrupted()
			cp, err := e.append(ctx, run, store.Checkpoint[State]{
				State:    state,
				NextNode: current,
				Status:   store.StatusPaused,
				PendingInterrupt: &store.Interrupt{
					NodeID:       current,
					Reason:       ir.Reason,
					ResumeSchema: ir.ResumeSchema,
				},
			})
			if err != nil {
				return zero, err
			}
			e.publish(run, stream.Event{Kind: stream.KindInterrupt, NodeID: current, Reason: ir.Reason})
			return cp, nil

		case ctx.Err() != nil:
			// The in-flight invocation was not preempted, but its
			// outcome is discarded at this safe point.
			e.opts.Metrics.observeStep(current, "error", time.Since(started))
			return e.cancel(ctx, run, state, current)

		default:
			e.opts.Metrics.observeStep(current, "error", time.Since(started))
			return e.fail(ctx, run, state, current, invokeErr)
		}

		state = state.Apply(res.Delta)

		for _, ev := range res.Events {
			if ev.NodeID == "" {
				ev.NodeID = current
			}
			e.publish(run, ev)
		}
		e.emit(run, steps, current, "node_complete", map[string]any{
			"duration_ms": time.Since(started).Milliseconds(),
		})

		if len(n.edges) == 0 {
			// Terminal node: persist completion, then close the
			// stream with the single done event.
			cp, err := e.append(ctx, run, store.Checkpoint[State]{
				State:  state,
				Status: store.StatusCompleted,
			})
			if err != nil {
				return zero, err
			}
			e.publish(run, stream.Event{Kind: stream.KindDone})
			e.emit(run, steps, "", "run_complete", map[string]any{"status": string(store.StatusCompleted)})
			return cp, nil
		}

		e.publish(run, stream.Event{Kind: stream.KindStepEnd, NodeID: current})

		next := route(n, state)
		if next == "" {
			return e.fail(ctx, run, state, current,
				fmt.Errorf("%w: node %s", ErrNoMatchingRoute, current))
		}

		// Persist before advancing: the durability boundary.
		if _, err := e.append(ctx, run, store.Checkpoint[State]{
			State:    state,
			NextNode: next,
			Status:   store.StatusRunning,
		}); err != nil {
			return zero, err
		}

		current = next
	}
}

// runContext carries per-run identity and the thread's checkpoint cursor.
type runContext struct {
	threadID    string
	executionID string
	seq         int
}

// loadStart resolves the state, entry node, and checkpoint cursor for a
// run from the thread's latest checkpoint.
func (e *Engine) loadStart(ctx context.Context, threadID string, resume *ResumeValue) (State, string, int, error) {
	cp, err := e.store.Latest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return NewState(), e.graph.Start(), 0, nil
	}
	if err != nil {
		return State{}, "", 0, fmt.Errorf("load latest checkpoint: %w", err)
	}

	switch {
	case cp.Status == store.StatusPaused:
		if resume == nil {
			return State{}, "", 0, ErrAwaitingInput
		}
		state := cp.State.Apply(Delta{Values: map[string]any{ResumeSlot: resume.Value}})
		return state, cp.NextNode, cp.Seq, nil

	case cp.Status.Terminal():
		// New execution on an idle thread: the accumulated state
		// carries forward, the walk restarts at the start node.
		return cp.State, e.graph.Start(), cp.Seq, nil

	default:
		// StatusRunning: crash recovery. Resume exactly at the node
		// the last committed checkpoint pointed to.
		next := cp.NextNode
		if next == "" {
			next = e.graph.Start()
		}
		return cp.State, next, cp.Seq, nil
	}
}

// invokeWithRetry runs the node's capability, retrying transient failures
// per the retry policy from the node's pre-invocation state.
func (e *Engine) invokeWithRetry(ctx context.Context, run *runContext, step int, n *node, state State) (Result, error) {
	policy := e.opts.Retry

	var lastErr error
	for attempt := 0; ; attempt++ {
		snap, err := state.Clone()
		if err != nil {
			return Result{}, err
		}

		res, err := n.cap.Invoke(ctx, snap)
		if err == nil {
			return res, nil
		}

		var ir *InterruptRequest
		if errors.As(err, &ir) {
			return Result{}, err
		}

		var ce *CapabilityError
		if !errors.As(err, &ce) || ce.Kind != FailureTransient {
			return Result{}, err
		}
		lastErr = err

		if attempt+1 >= policy.MaxAttempts {
			return Result{}, fmt.Errorf("%w: node %s: %v", ErrMaxAttemptsExceeded, n.id, lastErr)
		}

		e.opts.Metrics.retried(n.id)
		e.emit(run, step, n.id, "node_retry", map[string]any{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(policy.backoff(attempt, nil)):
		}
	}
}

// append persists a checkpoint as the thread's next sequence entry. On a
// version conflict it reloads the latest sequence and retries the
// read-then-write cycle up to the configured bound.
func (e *Engine) append(ctx context.Context, run *runContext, cp store.Checkpoint[State]) (store.Checkpoint[State], error) {
	cp.ThreadID = run.threadID
	cp.ExecutionID = run.executionID
	cp.CreatedAt = time.Now().UTC()

	for attempt := 0; ; attempt++ {
		cp.Seq = run.seq + 1

		err := e.store.Append(ctx, run.threadID, cp)
		if err == nil {
			run.seq = cp.Seq
			e.emit(run, 0, cp.NextNode, "checkpoint_saved", map[string]any{
				"seq":    cp.Seq,
				"status": string(cp.Status),
			})
			return cp, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return cp, fmt.Errorf("append checkpoint: %w", err)
		}

		e.opts.Metrics.conflicted()
		if attempt+1 >= e.opts.ConflictRetries {
			return cp, fmt.Errorf("append checkpoint: conflict retries exhausted: %w", err)
		}

		latest, lerr := e.store.Latest(ctx, run.threadID)
		switch {
		case errors.Is(lerr, store.ErrNotFound):
			run.seq = 0
		case lerr != nil:
			return cp, fmt.Errorf("reload after conflict: %w", lerr)
		default:
			run.seq = latest.Seq
		}
	}
}

// fail persists a failed terminal checkpoint and surfaces the cause as the
// run's single error event.
func (e *Engine) fail(ctx context.Context, run *runContext, state State, nodeID string, cause error) (store.Checkpoint[State], error) {
	cp, err := e.append(ctx, run, store.Checkpoint[State]{
		State:    state,
		NextNode: nodeID,
		Status:   store.StatusFailed,
		Err:      cause.Error(),
	})
	if err != nil {
		// The failure cause still wins over the bookkeeping error.
		e.publish(run, stream.Event{Kind: stream.KindError, NodeID: nodeID, Err: cause.Error()})
		return cp, cause
	}
	e.publish(run, stream.Event{Kind: stream.KindError, NodeID: nodeID, Err: cause.Error()})
	e.emit(run, 0, nodeID, "node_error", map[string]any{"error": cause.Error()})
	return cp, cause
}

// cancel persists a cancelled terminal checkpoint at the current safe
// point.
func (e *Engine) cancel(ctx context.Context, run *runContext, state State, nodeID string) (store.Checkpoint[State], error) {
	// The run context is done; use a detached context for the final
	// bookkeeping write.
	cp, err := e.append(context.WithoutCancel(ctx), run, store.Checkpoint[State]{
		State:    state,
		NextNode: nodeID,
		Status:   store.StatusCancelled,
		Err:      context.Canceled.Error(),
	})
	if err != nil {
		return cp, err
	}
	e.publish(run, stream.Event{Kind: stream.KindError, Err: "execution cancelled"})
	e.emit(run, 0, nodeID, "run_complete", map[string]any{"status": string(store.StatusCancelled)})
	return cp, nil
}

func (e *Engine) publish(run *runContext, ev stream.Event) {
	if e.mux != nil {
		e.mux.Publish(run.executionID, ev)
	}
}

func (e *Engine) emit(run *runContext, step int, nodeID, msg string, meta map[string]any) {
	if e.opts.Emitter == nil {
		return
	}
	e.opts.Emitter.Emit(emit.Event{
		ThreadID:    run.threadID,
		ExecutionID: run.executionID,
		Step:        step,
		NodeID:      nodeID,
		Msg:         msg,
		Meta:        meta,
	})
}
