package graph

import (
	"context"
	"fmt"

	"github.com/stategraph-ai/stategraph/graph/model"
	"github.com/stategraph-ai/stategraph/graph/stream"
	"github.com/stategraph-ai/stategraph/graph/tool"
)

// ToolCallsSlot is the state value where ModelCapability records tool
// calls requested by the model.
const ToolCallsSlot = "tool_calls"

// ModelCapability invokes a chat model with the accumulated conversation.
// The response text is appended as an assistant message; requested tool
// calls are stored under ToolCallsSlot for a downstream node to dispatch.
// Model failures are reported transient, so the engine's retry policy
// applies.
type ModelCapability struct {
	Model model.ChatModel
	Tools []model.ToolSpec
}

// Invoke implements Capability.
func (c *ModelCapability) Invoke(ctx context.Context, state State) (Result, error) {
	out, err := c.Model.Chat(ctx, state.Messages, c.Tools)
	if err != nil {
		return Result{}, Transient("model call failed", err)
	}

	res := Result{
		Delta: Delta{
			Values: map[string]any{ToolCallsSlot: out.ToolCalls},
		},
	}
	if out.Text != "" {
		res.Delta.Messages = []model.Message{{Role: model.RoleAssistant, Content: out.Text}}
		res.Events = append(res.Events, stream.Event{
			Kind:  stream.KindToken,
			Token: out.Text,
		})
	}
	for _, call := range out.ToolCalls {
		res.Events = append(res.Events, stream.Event{
			Kind:      stream.KindToolCall,
			ToolName:  call.Name,
			ToolInput: call.Input,
		})
	}
	return res, nil
}

// ToolCapability executes one tool per step. Input is read from the
// InputFrom state value (a map), the result is written to ResultTo.
// Tool failures are transient.
type ToolCapability struct {
	Tool tool.Tool

	// InputFrom names the state value holding the tool input map.
	// Empty means the tool runs with nil input.
	InputFrom string

	// ResultTo names the state value the result is written to.
	// Defaults to "<tool name>_result".
	ResultTo string
}

// Invoke implements Capability.
func (c *ToolCapability) Invoke(ctx context.Context, state State) (Result, error) {
	var input map[string]interface{}
	if c.InputFrom != "" {
		raw, ok := state.Value(c.InputFrom)
		if !ok {
			return Result{}, Fatal(fmt.Sprintf("tool input missing: no state value %q", c.InputFrom), nil)
		}
		input, ok = raw.(map[string]interface{})
		if !ok {
			return Result{}, Fatal(fmt.Sprintf("tool input %q is not an object", c.InputFrom), nil)
		}
	}

	out, err := c.Tool.Call(ctx, input)
	if err != nil {
		return Result{}, Transient(fmt.Sprintf("tool %s failed", c.Tool.Name()), err)
	}

	slot := c.ResultTo
	if slot == "" {
		slot = c.Tool.Name() + "_result"
	}
	return Result{
		Delta: Delta{Values: map[string]any{slot: out}},
		Events: []stream.Event{{
			Kind:       stream.KindToolCall,
			ToolName:   c.Tool.Name(),
			ToolInput:  input,
			ToolResult: out,
		}},
	}, nil
}

// DispatchCapability executes every tool call recorded under
// ToolCallsSlot against a registry, appending each result to the
// conversation as a user message so the model can continue. A call
// naming an unregistered tool is fatal.
type DispatchCapability struct {
	Registry tool.Registry
}

// Invoke implements Capability.
func (c *DispatchCapability) Invoke(ctx context.Context, state State) (Result, error) {
	raw, ok := state.Value(ToolCallsSlot)
	if !ok {
		return Result{}, nil
	}
	calls, ok := raw.([]model.ToolCall)
	if !ok {
		// State round-tripped through a checkpoint decodes as plain
		// JSON values.
		calls = decodeToolCalls(raw)
	}

	var res Result
	results := make(map[string]any, len(calls))
	for _, call := range calls {
		t, ok := c.Registry.Lookup(call.Name)
		if !ok {
			return Result{}, Fatal(fmt.Sprintf("no tool registered for %q", call.Name), nil)
		}
		out, err := t.Call(ctx, call.Input)
		if err != nil {
			return Result{}, Transient(fmt.Sprintf("tool %s failed", call.Name), err)
		}
		results[call.Name] = out
		res.Events = append(res.Events, stream.Event{
			Kind:       stream.KindToolCall,
			ToolName:   call.Name,
			ToolInput:  call.Input,
			ToolResult: out,
		})
		res.Delta.Messages = append(res.Delta.Messages, model.Message{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("tool %s returned: %v", call.Name, out),
		})
	}
	res.Delta.Values = map[string]any{
		ToolCallsSlot:  []model.ToolCall{},
		"tool_results": results,
	}
	return res, nil
}

func decodeToolCalls(raw any) []model.ToolCall {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	calls := make([]model.ToolCall, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var call model.ToolCall
		call.Name, _ = m["Name"].(string)
		call.Input, _ = m["Input"].(map[string]any)
		if call.Name != "" {
			calls = append(calls, call)
		}
	}
	return calls
}

// RouterCapability computes a routing decision and records it in a state
// value, pairing with ValueIs edge predicates.
type RouterCapability struct {
	// Slot names the state value the decision is written to.
	Slot string

	// Decide inspects the state and returns the decision value.
	Decide func(State) string
}

// Invoke implements Capability.
func (c *RouterCapability) Invoke(ctx context.Context, state State) (Result, error) {
	if c.Slot == "" || c.Decide == nil {
		return Result{}, Fatal("router capability requires a slot and a decide func", nil)
	}
	return Result{
		Delta: Delta{Values: map[string]any{c.Slot: c.Decide(state)}},
	}, nil
}
