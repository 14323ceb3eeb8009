// Package session coordinates executions over threads: one active
// execution per thread, paused-state validation for resumes, and
// cancellation of in-flight runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stategraph-ai/stategraph/graph"
	"github.com/stategraph-ai/stategraph/graph/store"
	"github.com/stategraph-ai/stategraph/graph/stream"
)

var (
	// ErrThreadBusy reports a submit or resume against a thread that
	// already has an active execution.
	ErrThreadBusy = errors.New("thread busy: execution already active")

	// ErrNotAwaitingInput reports a resume against a thread whose
	// latest checkpoint is not paused.
	ErrNotAwaitingInput = errors.New("thread is not awaiting input")

	// ErrInvalidResumeValue reports a resume value rejected by the
	// interrupt's resume schema.
	ErrInvalidResumeValue = errors.New("invalid resume value")

	// ErrNoActiveExecution reports a cancel against an idle thread.
	ErrNoActiveExecution = errors.New("no active execution")

	// ErrUnknownExecution reports a wait for an execution this
	// coordinator never started.
	ErrUnknownExecution = errors.New("unknown execution")
)

// Coordinator serializes executions per thread. Submit and Resume start
// runs asynchronously and return the execution ID together with a
// subscription attached before the first node runs, so the caller sees
// the event sequence from its first event. Wait blocks for the terminal
// checkpoint.
type Coordinator struct {
	engine *graph.Engine
	store  store.Store[graph.State]
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]*activeRun // keyed by thread ID
	results map[string]*runResult // keyed by execution ID
}

type activeRun struct {
	executionID string
	cancel      context.CancelFunc
}

type runResult struct {
	done chan struct{}
	cp   store.Checkpoint[graph.State]
	err  error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator over an engine and its store.
func NewCoordinator(engine *graph.Engine, st store.Store[graph.State], opts ...Option) (*Coordinator, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	c := &Coordinator{
		engine:  engine,
		store:   st,
		logger:  slog.Default(),
		active:  make(map[string]*activeRun),
		results: make(map[string]*runResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit starts a new execution on the thread. It returns the execution
// ID and a subscription to the execution's event stream, created before
// the run starts so no events precede it; the subscription is nil when
// the engine has no mux. Fails with ErrThreadBusy when an execution is
// already active, and with graph.ErrAwaitingInput when the thread is
// paused on an interrupt; paused threads continue via Resume.
func (c *Coordinator) Submit(ctx context.Context, threadID string, input graph.Delta) (string, *stream.Subscription, error) {
	cp, err := c.store.Latest(ctx, threadID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if err == nil && cp.Status == store.StatusPaused {
		return "", nil, graph.ErrAwaitingInput
	}
	return c.start(threadID, input, nil)
}

// Resume continues a thread paused on an interrupt. The value is checked
// against the interrupt's resume schema before anything runs; a rejected
// value leaves the thread untouched. Returns the resumed execution's ID
// and its event subscription, attached before the run starts.
func (c *Coordinator) Resume(ctx context.Context, threadID string, value any) (string, *stream.Subscription, error) {
	cp, err := c.store.Latest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrNotAwaitingInput
	}
	if err != nil {
		return "", nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if cp.Status != store.StatusPaused || cp.PendingInterrupt == nil {
		return "", nil, ErrNotAwaitingInput
	}

	if err := validateResumeValue(cp.PendingInterrupt.ResumeSchema, value); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidResumeValue, err)
	}

	return c.start(threadID, graph.Delta{}, &graph.ResumeValue{Value: value})
}

// Cancel stops the thread's active execution. The run halts at its next
// node boundary with a cancelled checkpoint.
func (c *Coordinator) Cancel(threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.active[threadID]
	if !ok {
		return ErrNoActiveExecution
	}
	run.cancel()
	return nil
}

// Wait blocks until the execution reaches a terminal checkpoint and
// returns it, or until ctx expires. The result is released once
// delivered; a second Wait for the same execution fails with
// ErrUnknownExecution.
func (c *Coordinator) Wait(ctx context.Context, executionID string) (store.Checkpoint[graph.State], error) {
	c.mu.Lock()
	res, ok := c.results[executionID]
	c.mu.Unlock()
	if !ok {
		return store.Checkpoint[graph.State]{}, ErrUnknownExecution
	}

	select {
	case <-ctx.Done():
		return store.Checkpoint[graph.State]{}, ctx.Err()
	case <-res.done:
		c.mu.Lock()
		delete(c.results, executionID)
		c.mu.Unlock()
		return res.cp, res.err
	}
}

// History returns the thread's checkpoints in ascending sequence order.
func (c *Coordinator) History(ctx context.Context, threadID string) ([]store.Checkpoint[graph.State], error) {
	return c.store.History(ctx, threadID)
}

// start claims the thread, attaches the caller's subscription, and only
// then launches the run. The busy check and the claim are atomic under
// the coordinator lock, so two concurrent submits cannot both win; the
// subscription precedes the run goroutine, so the caller observes the
// execution's event sequence from seq 1.
func (c *Coordinator) start(threadID string, input graph.Delta, resume *graph.ResumeValue) (string, *stream.Subscription, error) {
	c.mu.Lock()
	if _, busy := c.active[threadID]; busy {
		c.mu.Unlock()
		return "", nil, ErrThreadBusy
	}

	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	res := &runResult{done: make(chan struct{})}
	c.active[threadID] = &activeRun{executionID: executionID, cancel: cancel}
	c.results[executionID] = res
	c.mu.Unlock()

	var sub *stream.Subscription
	if mux := c.engine.Mux(); mux != nil {
		s, err := mux.Subscribe(executionID)
		if err != nil {
			cancel()
			c.mu.Lock()
			delete(c.active, threadID)
			delete(c.results, executionID)
			c.mu.Unlock()
			return "", nil, fmt.Errorf("subscribe execution %s: %w", executionID, err)
		}
		sub = s
	}

	go c.run(runCtx, cancel, threadID, executionID, input, resume, res)
	return executionID, sub, nil
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, threadID, executionID string, input graph.Delta, resume *graph.ResumeValue, res *runResult) {
	defer cancel()

	cp, err := c.engine.Run(ctx, threadID, executionID, input, resume)

	c.mu.Lock()
	res.cp = cp
	res.err = err
	delete(c.active, threadID)
	c.mu.Unlock()
	close(res.done)

	if err != nil {
		c.logger.Error("execution finished with error",
			"thread_id", threadID,
			"execution_id", executionID,
			"error", err)
		return
	}
	c.logger.Info("execution finished",
		"thread_id", threadID,
		"execution_id", executionID,
		"status", string(cp.Status),
		"seq", cp.Seq)
}
