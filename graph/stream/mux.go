package stream

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSlowConsumer is reported by Subscription.Err after a subscriber was
// dropped because its queue stayed full while the engine published.
var ErrSlowConsumer = errors.New("stream: subscriber dropped: queue full")

// ErrReplayTruncated is reported when a replay subscription requested
// events older than the retained history window.
var ErrReplayTruncated = errors.New("stream: replay sequence older than retained history")

// DefaultQueueDepth is the per-subscriber event buffer when none is configured.
const DefaultQueueDepth = 256

// Mux fans out engine-produced events to subscribers, one ordered sequence
// per execution.
//
// Guarantees:
//   - In-order delivery per execution to every subscriber.
//   - Seq numbers assigned at publish: monotonic and gapless per execution.
//   - Publish never blocks on a stalled subscriber. A subscriber whose
//     bounded queue is full when an event arrives is dropped and observes
//     ErrSlowConsumer; the remaining subscribers are unaffected.
//
// Executions are registered implicitly: the first Publish or Subscribe for
// an execution ID creates its sequence. After a terminal event (done, error,
// interrupt) is published, open subscriptions close; the event history is
// retained so a late subscriber can still replay with FromSeq until Release
// is called.
type Mux struct {
	mu    sync.RWMutex
	execs map[string]*execStream

	queueDepth   int
	historyLimit int

	published atomic.Int64
	dropped   atomic.Int64
}

// execStream is the per-execution fan-out state: the assigned sequence,
// retained history, and current subscriber set.
type execStream struct {
	mu      sync.Mutex
	seq     int
	history []Event
	trimmed int // count of events evicted from the front of history
	subs    map[int64]*Subscription
	nextID  int64
	done    bool
}

// Option configures a Mux.
type Option func(*Mux)

// WithQueueDepth sets the per-subscriber bounded queue size.
func WithQueueDepth(n int) Option {
	return func(m *Mux) {
		if n > 0 {
			m.queueDepth = n
		}
	}
}

// WithHistoryLimit caps the number of events retained per execution for
// replay. Zero means unlimited. When the cap is exceeded the oldest events
// are evicted and replay from before the window fails with ErrReplayTruncated.
func WithHistoryLimit(n int) Option {
	return func(m *Mux) { m.historyLimit = n }
}

// New creates an event multiplexer.
func New(opts ...Option) *Mux {
	m := &Mux{
		execs:      make(map[string]*execStream),
		queueDepth: DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// stream returns the execution's fan-out state, creating it if needed.
func (m *Mux) stream(executionID string) *execStream {
	m.mu.RLock()
	es, ok := m.execs[executionID]
	m.mu.RUnlock()
	if ok {
		return es
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if es, ok = m.execs[executionID]; ok {
		return es
	}
	es = &execStream{subs: make(map[int64]*Subscription)}
	m.execs[executionID] = es
	return es
}

// Publish assigns the next sequence number to ev and delivers it to every
// live subscriber of the execution. Publishing after a terminal event for
// the same execution is ignored.
//
// Returns the event as delivered (with Seq and Timestamp filled in).
func (m *Mux) Publish(executionID string, ev Event) Event {
	es := m.stream(executionID)

	es.mu.Lock()
	defer es.mu.Unlock()

	if es.done {
		return ev
	}

	es.seq++
	ev.ExecutionID = executionID
	ev.Seq = es.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	es.history = append(es.history, ev)
	if m.historyLimit > 0 && len(es.history) > m.historyLimit {
		evict := len(es.history) - m.historyLimit
		es.history = es.history[evict:]
		es.trimmed += evict
	}

	for id, sub := range es.subs {
		select {
		case sub.ch <- ev:
			m.published.Add(1)
		default:
			// Queue full: drop this subscriber, never block the engine.
			delete(es.subs, id)
			sub.fail(ErrSlowConsumer)
			m.dropped.Add(1)
		}
	}

	if ev.Kind.Terminal() {
		es.done = true
		for id, sub := range es.subs {
			delete(es.subs, id)
			sub.finish()
		}
	}
	return ev
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	fromSeq int
	replay  bool
}

// FromSeq requests replay of retained history starting at the given
// sequence number (inclusive) before live delivery begins.
func FromSeq(seq int) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.fromSeq = seq
		cfg.replay = true
	}
}

// Subscribe attaches a new subscriber to an execution's event sequence.
//
// By default delivery starts at the current tail: only events published
// after the call are received. Use FromSeq to replay retained history first.
// The returned subscription's channel closes after a terminal event is
// delivered, after Close, or after the subscriber is dropped for slow
// consumption (distinguishable via Err).
func (m *Mux) Subscribe(executionID string, opts ...SubscribeOption) (*Subscription, error) {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	es := m.stream(executionID)

	es.mu.Lock()
	defer es.mu.Unlock()

	var replay []Event
	if cfg.replay {
		if cfg.fromSeq <= es.trimmed && es.trimmed > 0 {
			return nil, ErrReplayTruncated
		}
		for _, ev := range es.history {
			if ev.Seq >= cfg.fromSeq {
				replay = append(replay, ev)
			}
		}
	}

	depth := m.queueDepth
	if len(replay) >= depth {
		depth = len(replay) + m.queueDepth
	}

	sub := &Subscription{
		executionID: executionID,
		ch:          make(chan Event, depth),
		mux:         m,
		es:          es,
	}

	for _, ev := range replay {
		sub.ch <- ev
	}

	if es.done {
		// Sequence already ended; the subscription only replays.
		sub.finish()
		return sub, nil
	}

	es.nextID++
	sub.id = es.nextID
	es.subs[sub.id] = sub
	return sub, nil
}

// Release discards an execution's retained history and drops any remaining
// subscribers. Call after the execution's consumers are finished to bound
// memory for long-lived processes.
func (m *Mux) Release(executionID string) {
	m.mu.Lock()
	es, ok := m.execs[executionID]
	if ok {
		delete(m.execs, executionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	for id, sub := range es.subs {
		delete(es.subs, id)
		sub.finish()
	}
}

// Stats reports cumulative delivery counters.
func (m *Mux) Stats() Stats {
	m.mu.RLock()
	active := len(m.execs)
	m.mu.RUnlock()
	return Stats{
		Executions: active,
		Published:  m.published.Load(),
		Dropped:    m.dropped.Load(),
	}
}

// Stats contains multiplexer delivery counters.
type Stats struct {
	Executions int   `json:"executions"`
	Published  int64 `json:"published"`
	Dropped    int64 `json:"dropped"`
}
