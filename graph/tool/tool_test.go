package tool

import (
	"context"
	"testing"
)

func TestFunc(t *testing.T) {
	f := Func{
		ToolName: "double",
		Fn: func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			n := input["n"].(int)
			return map[string]interface{}{"result": n * 2}, nil
		},
	}

	if f.Name() != "double" {
		t.Errorf("Name() = %q", f.Name())
	}
	out, err := f.Call(context.Background(), map[string]interface{}{"n": 21})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out["result"] != 42 {
		t.Errorf("result = %v, want 42", out["result"])
	}
}

func TestRegistry(t *testing.T) {
	a := NewMock("a", nil)
	b := NewMock("b", nil)
	r := NewRegistry(a, b)

	if got, ok := r.Lookup("a"); !ok || got != a {
		t.Error("lookup a failed")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("lookup of unregistered tool succeeded")
	}
}

func TestRegistryLaterDuplicateWins(t *testing.T) {
	first := NewMock("dup", map[string]interface{}{"v": 1})
	second := NewMock("dup", map[string]interface{}{"v": 2})
	r := NewRegistry(first, second)

	got, ok := r.Lookup("dup")
	if !ok || got != second {
		t.Error("expected later registration to win")
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock("rec", map[string]interface{}{"ok": true})

	if _, err := m.Call(context.Background(), map[string]interface{}{"q": "one"}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := m.Call(context.Background(), nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if m.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want 2", m.CallCount())
	}
	calls := m.Calls()
	if calls[0]["q"] != "one" {
		t.Errorf("first call input lost: %v", calls[0])
	}
}

func TestMockHonorsCancellation(t *testing.T) {
	m := NewMock("c", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Call(ctx, nil); err == nil {
		t.Error("expected context error")
	}
}
