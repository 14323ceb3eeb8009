// Package tool defines executable tools that graph capabilities dispatch
// model tool calls to.
package tool

import "context"

// Tool is an executable action with a stable name. Implementations
// validate their input, respect context cancellation, and return
// structured output.
type Tool interface {
	// Name is the identifier matched against model tool calls. Use
	// lowercase with underscores, e.g. "search_web".
	Name() string

	// Call executes the tool. Input is the decoded tool-call payload
	// and may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	ToolName string
	Fn       func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

func (f Func) Name() string { return f.ToolName }

func (f Func) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f.Fn(ctx, input)
}

// Registry resolves tools by name.
type Registry map[string]Tool

// NewRegistry indexes the given tools by Name. Later duplicates win.
func NewRegistry(tools ...Tool) Registry {
	r := make(Registry, len(tools))
	for _, t := range tools {
		r[t.Name()] = t
	}
	return r
}

// Lookup returns the named tool, or false when unregistered.
func (r Registry) Lookup(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}
