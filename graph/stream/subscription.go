package stream

import "sync"

// Subscription is one subscriber's view of an execution's event sequence.
//
// Events arrive on the channel returned by Events in strictly increasing
// Seq order. The channel closes when a terminal event has been delivered,
// when Close is called, or when the subscriber was dropped for slow
// consumption; call Err after the channel closes to distinguish the drop
// case.
type Subscription struct {
	id          int64
	executionID string
	ch          chan Event
	mux         *Mux
	es          *execStream

	once sync.Once
	err  error
}

// ExecutionID returns the execution this subscription observes.
func (s *Subscription) ExecutionID() string { return s.executionID }

// Events returns the ordered event channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Err returns ErrSlowConsumer if the subscriber was dropped because its
// queue filled, or nil for a normal close. Only meaningful after the
// Events channel has closed.
func (s *Subscription) Err() error {
	s.es.mu.Lock()
	defer s.es.mu.Unlock()
	return s.err
}

// Close detaches the subscription and closes its channel. Safe to call
// more than once and safe to call concurrently with publication.
func (s *Subscription) Close() {
	s.es.mu.Lock()
	delete(s.es.subs, s.id)
	s.es.mu.Unlock()
	s.finish()
}

// finish closes the channel exactly once. Callers must have already
// removed the subscription from the subscriber set.
func (s *Subscription) finish() {
	s.once.Do(func() { close(s.ch) })
}

// fail records the drop reason and closes the channel. Called by the mux
// with the execution stream lock held.
func (s *Subscription) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
	})
}
