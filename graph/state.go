package graph

import (
	"encoding/json"
	"fmt"

	"github.com/stategraph-ai/stategraph/graph/model"
)

// State is the execution state shared across a graph walk: a message
// history plus named scratch slots.
//
// Messages are append-only; Values slots are overwrite-permitted. The
// engine owns the state exclusively during a run and persists an immutable
// snapshot of it at every checkpoint boundary.
type State struct {
	// Messages is the append-only conversation history.
	Messages []model.Message `json:"messages,omitempty"`

	// Values holds named scalar slots (routing decisions, tool results,
	// scratch variables). Writing an existing key overwrites it.
	Values map[string]any `json:"values,omitempty"`
}

// NewState returns an empty execution state.
func NewState() State {
	return State{Values: make(map[string]any)}
}

// Value returns the named slot and whether it is set.
func (s State) Value(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Delta is a partial state update produced by one capability invocation.
// Messages are appended to the history; Values overwrite slot-wise.
type Delta struct {
	Messages []model.Message `json:"messages,omitempty"`
	Values   map[string]any  `json:"values,omitempty"`
}

// Empty reports whether the delta carries no update.
func (d Delta) Empty() bool {
	return len(d.Messages) == 0 && len(d.Values) == 0
}

// Apply merges a delta into the state and returns the result. The receiver
// is not mutated: the message slice and slot map are copied, so a snapshot
// taken before Apply stays stable when later steps run.
func (s State) Apply(d Delta) State {
	next := State{
		Messages: make([]model.Message, 0, len(s.Messages)+len(d.Messages)),
		Values:   make(map[string]any, len(s.Values)+len(d.Values)),
	}
	next.Messages = append(next.Messages, s.Messages...)
	next.Messages = append(next.Messages, d.Messages...)
	for k, v := range s.Values {
		next.Values[k] = v
	}
	for k, v := range d.Values {
		next.Values[k] = v
	}
	return next
}

// Clone deep-copies the state via a JSON round-trip, so capability code
// cannot reach back into the engine's copy through shared maps or slices.
//
// Slot values must be JSON-serializable; this is already required for
// checkpoint persistence.
func (s State) Clone() (State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return State{}, fmt.Errorf("marshal state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return State{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if out.Values == nil {
		out.Values = make(map[string]any)
	}
	return out, nil
}
