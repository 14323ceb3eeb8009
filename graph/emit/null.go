package emit

// NullEmitter discards all events. Useful as an explicit no-op where an
// Emitter is required, and as a baseline in benchmarks.
type NullEmitter struct{}

// NewNullEmitter creates a discard-everything emitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
