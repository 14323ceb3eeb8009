package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stategraph-ai/stategraph/graph/model"
	"github.com/stategraph-ai/stategraph/graph/stream"
	"github.com/stategraph-ai/stategraph/graph/tool"
)

func TestModelCapability(t *testing.T) {
	t.Run("text response appends assistant message", func(t *testing.T) {
		mock := model.NewMock(model.ChatOut{Text: "hello there"})
		cap := &ModelCapability{Model: mock}

		res, err := cap.Invoke(context.Background(), NewState())
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if len(res.Delta.Messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(res.Delta.Messages))
		}
		msg := res.Delta.Messages[0]
		if msg.Role != model.RoleAssistant || msg.Content != "hello there" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if len(res.Events) != 1 || res.Events[0].Kind != stream.KindToken {
			t.Fatalf("expected one token event, got %+v", res.Events)
		}
		if res.Events[0].Token != "hello there" {
			t.Errorf("token event carries %q", res.Events[0].Token)
		}
	})

	t.Run("tool calls recorded and emitted", func(t *testing.T) {
		mock := model.NewMock(model.ChatOut{
			ToolCalls: []model.ToolCall{
				{Name: "search", Input: map[string]interface{}{"q": "go"}},
			},
		})
		cap := &ModelCapability{Model: mock}

		res, err := cap.Invoke(context.Background(), NewState())
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}

		calls, ok := res.Delta.Values[ToolCallsSlot].([]model.ToolCall)
		if !ok || len(calls) != 1 || calls[0].Name != "search" {
			t.Errorf("tool calls not recorded: %v", res.Delta.Values[ToolCallsSlot])
		}
		if len(res.Events) != 1 || res.Events[0].Kind != stream.KindToolCall {
			t.Fatalf("expected one tool-call event, got %+v", res.Events)
		}
		if res.Events[0].ToolName != "search" {
			t.Errorf("event tool name = %q", res.Events[0].ToolName)
		}
	})

	t.Run("model failure is transient", func(t *testing.T) {
		mock := model.NewMockError(errors.New("rate limited"))
		cap := &ModelCapability{Model: mock}

		_, err := cap.Invoke(context.Background(), NewState())
		var ce *CapabilityError
		if !errors.As(err, &ce) || ce.Kind != FailureTransient {
			t.Errorf("expected transient CapabilityError, got %v", err)
		}
	})

	t.Run("passes conversation to model", func(t *testing.T) {
		mock := model.NewMock(model.ChatOut{Text: "ok"})
		cap := &ModelCapability{Model: mock}

		state := NewState().Apply(Delta{
			Messages: []model.Message{{Role: model.RoleUser, Content: "question"}},
		})
		if _, err := cap.Invoke(context.Background(), state); err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if len(mock.Calls) != 1 || len(mock.Calls[0].Messages) != 1 {
			t.Fatalf("conversation not forwarded: %+v", mock.Calls)
		}
	})
}

func TestToolCapability(t *testing.T) {
	t.Run("reads input slot, writes result slot", func(t *testing.T) {
		mock := tool.NewMock("lookup", map[string]interface{}{"answer": 42})
		cap := &ToolCapability{Tool: mock, InputFrom: "query", ResultTo: "found"}

		state := NewState().Apply(Delta{Values: map[string]any{
			"query": map[string]interface{}{"id": "x"},
		}})
		res, err := cap.Invoke(context.Background(), state)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}

		out, ok := res.Delta.Values["found"].(map[string]interface{})
		if !ok || out["answer"] != 42 {
			t.Errorf("result not written: %v", res.Delta.Values)
		}
		if len(res.Events) != 1 || res.Events[0].Kind != stream.KindToolCall {
			t.Errorf("expected tool-call event, got %+v", res.Events)
		}
	})

	t.Run("default result slot from tool name", func(t *testing.T) {
		mock := tool.NewMock("lookup", map[string]interface{}{"v": 1})
		cap := &ToolCapability{Tool: mock}

		res, err := cap.Invoke(context.Background(), NewState())
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if _, ok := res.Delta.Values["lookup_result"]; !ok {
			t.Errorf("expected lookup_result slot, got %v", res.Delta.Values)
		}
	})

	t.Run("missing input slot is fatal", func(t *testing.T) {
		cap := &ToolCapability{Tool: tool.NewMock("t", nil), InputFrom: "absent"}
		_, err := cap.Invoke(context.Background(), NewState())
		var ce *CapabilityError
		if !errors.As(err, &ce) || ce.Kind != FailureFatal {
			t.Errorf("expected fatal CapabilityError, got %v", err)
		}
	})

	t.Run("tool failure is transient", func(t *testing.T) {
		cap := &ToolCapability{Tool: tool.NewMockError("t", errors.New("boom"))}
		_, err := cap.Invoke(context.Background(), NewState())
		var ce *CapabilityError
		if !errors.As(err, &ce) || ce.Kind != FailureTransient {
			t.Errorf("expected transient CapabilityError, got %v", err)
		}
	})
}

func TestDispatchCapability(t *testing.T) {
	t.Run("dispatches recorded calls", func(t *testing.T) {
		reg := tool.NewRegistry(tool.NewMock("search", map[string]interface{}{"hits": 3}))
		cap := &DispatchCapability{Registry: reg}

		state := NewState().Apply(Delta{Values: map[string]any{
			ToolCallsSlot: []model.ToolCall{{Name: "search", Input: map[string]interface{}{"q": "go"}}},
		}})
		res, err := cap.Invoke(context.Background(), state)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if len(res.Events) != 1 || res.Events[0].ToolName != "search" {
			t.Errorf("expected one dispatch event, got %+v", res.Events)
		}
		if len(res.Delta.Messages) != 1 {
			t.Errorf("expected tool result message, got %d", len(res.Delta.Messages))
		}
	})

	t.Run("decodes calls after checkpoint round-trip", func(t *testing.T) {
		reg := tool.NewRegistry(tool.NewMock("search", map[string]interface{}{"hits": 1}))
		cap := &DispatchCapability{Registry: reg}

		state := NewState().Apply(Delta{Values: map[string]any{
			ToolCallsSlot: []model.ToolCall{{Name: "search", Input: map[string]interface{}{"q": "x"}}},
		}})
		// A persisted state comes back as plain JSON values.
		restored, err := state.Clone()
		if err != nil {
			t.Fatalf("Clone failed: %v", err)
		}

		res, err := cap.Invoke(context.Background(), restored)
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if len(res.Events) != 1 {
			t.Errorf("expected dispatch of restored call, got %+v", res.Events)
		}
	})

	t.Run("no calls is a no-op", func(t *testing.T) {
		cap := &DispatchCapability{Registry: tool.NewRegistry()}
		res, err := cap.Invoke(context.Background(), NewState())
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if len(res.Events) != 0 || !res.Delta.Empty() {
			t.Errorf("expected no-op, got %+v", res)
		}
	})

	t.Run("unregistered tool is fatal", func(t *testing.T) {
		cap := &DispatchCapability{Registry: tool.NewRegistry()}
		state := NewState().Apply(Delta{Values: map[string]any{
			ToolCallsSlot: []model.ToolCall{{Name: "ghost"}},
		}})
		_, err := cap.Invoke(context.Background(), state)
		var ce *CapabilityError
		if !errors.As(err, &ce) || ce.Kind != FailureFatal {
			t.Errorf("expected fatal CapabilityError, got %v", err)
		}
	})
}

func TestRouterCapability(t *testing.T) {
	cap := &RouterCapability{
		Slot: "route",
		Decide: func(s State) string {
			if _, ok := s.Value("urgent"); ok {
				return "fast-path"
			}
			return "slow-path"
		},
	}

	res, err := cap.Invoke(context.Background(), NewState())
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Delta.Values["route"] != "slow-path" {
		t.Errorf("expected slow-path, got %v", res.Delta.Values["route"])
	}

	urgent := NewState().Apply(Delta{Values: map[string]any{"urgent": true}})
	res, err = cap.Invoke(context.Background(), urgent)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Delta.Values["route"] != "fast-path" {
		t.Errorf("expected fast-path, got %v", res.Delta.Values["route"])
	}
}

func TestRouterCapabilityMisconfigured(t *testing.T) {
	cap := &RouterCapability{}
	_, err := cap.Invoke(context.Background(), NewState())
	var ce *CapabilityError
	if !errors.As(err, &ce) || ce.Kind != FailureFatal {
		t.Errorf("expected fatal CapabilityError, got %v", err)
	}
}
