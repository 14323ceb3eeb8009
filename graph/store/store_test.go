package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// testState is a minimal JSON-serializable state for backend tests.
type testState struct {
	Counter int    `json:"counter"`
	Note    string `json:"note"`
}

func cp(seq int, status Status) Checkpoint[testState] {
	return Checkpoint[testState]{
		ThreadID:    "t1",
		ExecutionID: "e1",
		Seq:         seq,
		State:       testState{Counter: seq, Note: "step"},
		NextNode:    "next",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

// runStoreContract exercises the version-checked append contract shared by
// every backend.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store[testState]) {
	ctx := context.Background()

	t.Run("latest on empty thread", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Latest(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("history on empty thread", func(t *testing.T) {
		s := newStore(t)
		hist, err := s.History(ctx, "missing")
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(hist) != 0 {
			t.Errorf("expected empty history, got %d", len(hist))
		}
	})

	t.Run("first append must be seq 1", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, "t1", cp(2, StatusRunning)); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict for seq 2 first, got %v", err)
		}
		if err := s.Append(ctx, "t1", cp(1, StatusRunning)); err != nil {
			t.Errorf("seq 1 first append failed: %v", err)
		}
	})

	t.Run("append enforces latest plus one", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, "t1", cp(1, StatusRunning)); err != nil {
			t.Fatalf("append 1 failed: %v", err)
		}

		for _, seq := range []int{1, 3, 0} {
			if err := s.Append(ctx, "t1", cp(seq, StatusRunning)); !errors.Is(err, ErrVersionConflict) {
				t.Errorf("seq %d: expected ErrVersionConflict, got %v", seq, err)
			}
		}
		if err := s.Append(ctx, "t1", cp(2, StatusRunning)); err != nil {
			t.Errorf("append 2 failed: %v", err)
		}
	})

	t.Run("latest returns newest", func(t *testing.T) {
		s := newStore(t)
		for seq := 1; seq <= 3; seq++ {
			if err := s.Append(ctx, "t1", cp(seq, StatusRunning)); err != nil {
				t.Fatalf("append %d failed: %v", seq, err)
			}
		}

		latest, err := s.Latest(ctx, "t1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if latest.Seq != 3 || latest.State.Counter != 3 {
			t.Errorf("expected seq 3, got %+v", latest)
		}
	})

	t.Run("history ascending", func(t *testing.T) {
		s := newStore(t)
		for seq := 1; seq <= 4; seq++ {
			if err := s.Append(ctx, "t1", cp(seq, StatusRunning)); err != nil {
				t.Fatalf("append %d failed: %v", seq, err)
			}
		}

		hist, err := s.History(ctx, "t1")
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(hist) != 4 {
			t.Fatalf("expected 4 checkpoints, got %d", len(hist))
		}
		for i, got := range hist {
			if got.Seq != i+1 {
				t.Errorf("position %d has seq %d", i, got.Seq)
			}
		}
	})

	t.Run("threads are independent", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, "t1", cp(1, StatusRunning)); err != nil {
			t.Fatalf("append t1 failed: %v", err)
		}
		other := cp(1, StatusRunning)
		other.ThreadID = "t2"
		if err := s.Append(ctx, "t2", other); err != nil {
			t.Errorf("t2 should start at seq 1 independently: %v", err)
		}
	})

	t.Run("round-trips full checkpoint", func(t *testing.T) {
		s := newStore(t)
		in := Checkpoint[testState]{
			ThreadID:    "t1",
			ExecutionID: "exec-42",
			Seq:         1,
			State:       testState{Counter: 7, Note: "paused here"},
			NextNode:    "approval",
			PendingInterrupt: &Interrupt{
				NodeID:       "approval",
				Reason:       "human sign-off",
				ResumeSchema: json.RawMessage(`{"type":"boolean"}`),
			},
			Status:    StatusPaused,
			Err:       "",
			CreatedAt: time.Now().UTC(),
		}
		if err := s.Append(ctx, "t1", in); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		out, err := s.Latest(ctx, "t1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if out.ExecutionID != "exec-42" || out.NextNode != "approval" || out.Status != StatusPaused {
			t.Errorf("fields lost: %+v", out)
		}
		if out.State != in.State {
			t.Errorf("state lost: %+v", out.State)
		}
		if out.PendingInterrupt == nil {
			t.Fatal("interrupt lost")
		}
		if out.PendingInterrupt.Reason != "human sign-off" {
			t.Errorf("interrupt reason lost: %+v", out.PendingInterrupt)
		}
		if string(out.PendingInterrupt.ResumeSchema) != `{"type":"boolean"}` {
			t.Errorf("resume schema lost: %s", out.PendingInterrupt.ResumeSchema)
		}
		if out.CreatedAt.IsZero() {
			t.Error("created_at lost")
		}
	})

	t.Run("records failure cause", func(t *testing.T) {
		s := newStore(t)
		failed := cp(1, StatusFailed)
		failed.Err = "node exploded"
		if err := s.Append(ctx, "t1", failed); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		out, err := s.Latest(ctx, "t1")
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if out.Err != "node exploded" {
			t.Errorf("failure cause lost: %q", out.Err)
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
		StatusRunning:   false,
		StatusPaused:    false,
	}
	for status, want := range terminal {
		if status.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, status.Terminal(), want)
		}
	}
}
