package model

import (
	"context"
	"sync"
)

// Mock is a scripted ChatModel for tests. Each Chat call consumes the
// next scripted output; when the script is exhausted the last entry
// repeats. Safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	outputs []ChatOut
	errs    []error
	idx     int

	// Calls records every invocation for assertion.
	Calls []MockCall
}

// MockCall captures one Chat invocation.
type MockCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// NewMock scripts a mock with the given outputs, returned in order.
func NewMock(outputs ...ChatOut) *Mock {
	return &Mock{outputs: outputs}
}

// NewMockError scripts a mock that always fails with err.
func NewMockError(err error) *Mock {
	return &Mock{errs: []error{err}}
}

// FailThenSucceed scripts n failures with err followed by out. Useful
// for exercising retry paths.
func FailThenSucceed(n int, err error, out ChatOut) *Mock {
	m := &Mock{}
	for i := 0; i < n; i++ {
		m.outputs = append(m.outputs, ChatOut{})
		m.errs = append(m.errs, err)
	}
	m.outputs = append(m.outputs, out)
	m.errs = append(m.errs, nil)
	return m
}

// Chat returns the next scripted output.
func (m *Mock) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Messages: messages, Tools: tools})

	i := m.idx
	if m.idx < m.scriptLen()-1 {
		m.idx++
	}

	var out ChatOut
	if i < len(m.outputs) {
		out = m.outputs[i]
	}
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return out, err
}

// CallCount reports how many times Chat has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *Mock) scriptLen() int {
	if len(m.errs) > len(m.outputs) {
		return len(m.errs)
	}
	return len(m.outputs)
}
