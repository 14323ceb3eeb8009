package tool

import (
	"context"
	"sync"
)

// Mock is a scripted Tool for tests. Safe for concurrent use.
type Mock struct {
	ToolName string
	Output   map[string]interface{}
	Err      error

	mu    sync.Mutex
	calls []map[string]interface{}
}

// NewMock creates a mock returning output for every call.
func NewMock(name string, output map[string]interface{}) *Mock {
	return &Mock{ToolName: name, Output: output}
}

// NewMockError creates a mock that always fails with err.
func NewMockError(name string, err error) *Mock {
	return &Mock{ToolName: name, Err: err}
}

func (m *Mock) Name() string { return m.ToolName }

func (m *Mock) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Output, nil
}

// Calls returns a copy of the recorded inputs.
func (m *Mock) Calls() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports how many times Call ran.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
