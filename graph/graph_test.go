package graph

import (
	"context"
	"errors"
	"testing"
)

func noop() Capability {
	return CapabilityFunc(func(ctx context.Context, s State) (Result, error) {
		return Result{}, nil
	})
}

func TestGraphBuild(t *testing.T) {
	t.Run("valid graph compiles", func(t *testing.T) {
		g := NewGraph()
		if err := g.Add("a", noop()); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := g.Add("b", noop()); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := g.Connect("a", "b", nil); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := g.StartAt("a"); err != nil {
			t.Fatalf("StartAt failed: %v", err)
		}
		if err := g.Compile(); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if g.Start() != "a" {
			t.Errorf("expected start = a, got %q", g.Start())
		}
	})

	t.Run("duplicate node rejected", func(t *testing.T) {
		g := NewGraph()
		_ = g.Add("a", noop())
		err := g.Add("a", noop())
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != "DUPLICATE_NODE" {
			t.Errorf("expected DUPLICATE_NODE, got %v", err)
		}
	})

	t.Run("empty node ID rejected", func(t *testing.T) {
		g := NewGraph()
		if err := g.Add("", noop()); err == nil {
			t.Error("expected error for empty node ID")
		}
	})

	t.Run("nil capability rejected", func(t *testing.T) {
		g := NewGraph()
		if err := g.Add("a", nil); err == nil {
			t.Error("expected error for nil capability")
		}
	})

	t.Run("compile without start fails", func(t *testing.T) {
		g := NewGraph()
		_ = g.Add("a", noop())
		err := g.Compile()
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != "NO_START_NODE" {
			t.Errorf("expected NO_START_NODE, got %v", err)
		}
	})

	t.Run("dangling edge target fails compile", func(t *testing.T) {
		g := NewGraph()
		_ = g.Add("a", noop())
		_ = g.Connect("a", "missing", nil)
		_ = g.StartAt("a")
		err := g.Compile()
		var ee *EngineError
		if !errors.As(err, &ee) || ee.Code != "NODE_NOT_FOUND" {
			t.Errorf("expected NODE_NOT_FOUND, got %v", err)
		}
	})

	t.Run("mutation after compile rejected", func(t *testing.T) {
		g := NewGraph()
		_ = g.Add("a", noop())
		_ = g.StartAt("a")
		if err := g.Compile(); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}

		for name, err := range map[string]error{
			"Add":     g.Add("b", noop()),
			"Connect": g.Connect("a", "a", nil),
			"StartAt": g.StartAt("a"),
		} {
			var ee *EngineError
			if !errors.As(err, &ee) || ee.Code != "GRAPH_COMPILED" {
				t.Errorf("%s after compile: expected GRAPH_COMPILED, got %v", name, err)
			}
		}
	})

	t.Run("compile is idempotent", func(t *testing.T) {
		g := NewGraph()
		_ = g.Add("a", noop())
		_ = g.StartAt("a")
		if err := g.Compile(); err != nil {
			t.Fatalf("first Compile failed: %v", err)
		}
		if err := g.Compile(); err != nil {
			t.Errorf("second Compile failed: %v", err)
		}
	})
}

func TestRoute(t *testing.T) {
	always := func(State) bool { return true }
	never := func(State) bool { return false }

	tests := []struct {
		name  string
		edges []Edge
		want  string
	}{
		{"no edges", nil, ""},
		{"unconditional", []Edge{{To: "x", When: nil}}, "x"},
		{"first match wins", []Edge{{To: "a", When: always}, {To: "b", When: always}}, "a"},
		{"skips non-matching", []Edge{{To: "a", When: never}, {To: "b", When: always}}, "b"},
		{"none match", []Edge{{To: "a", When: never}}, ""},
		{"nil predicate after conditional", []Edge{{To: "a", When: never}, {To: "b", When: nil}}, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &node{id: "n", edges: tt.edges}
			if got := route(n, NewState()); got != tt.want {
				t.Errorf("route() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueIs(t *testing.T) {
	s := NewState().Apply(Delta{Values: map[string]any{"route": "use-tool-a"}})

	if !ValueIs("route", "use-tool-a")(s) {
		t.Error("expected predicate to match")
	}
	if ValueIs("route", "use-tool-b")(s) {
		t.Error("expected predicate not to match different value")
	}
	if ValueIs("missing", "x")(s) {
		t.Error("expected predicate not to match missing slot")
	}
}
