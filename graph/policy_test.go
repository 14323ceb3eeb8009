package graph

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestRetryPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"default valid", DefaultRetryPolicy(), false},
		{"single attempt valid", RetryPolicy{MaxAttempts: 1}, false},
		{"zero attempts invalid", RetryPolicy{MaxAttempts: 0}, true},
		{"negative attempts invalid", RetryPolicy{MaxAttempts: -1}, true},
		{
			"max below base invalid",
			RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Millisecond},
			true,
		},
		{
			"uncapped valid",
			RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRetryPolicy) {
				t.Errorf("expected ErrInvalidRetryPolicy, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBackoffGrowth(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second, // capped
		time.Second,
	}
	for attempt, expected := range want {
		if got := p.backoff(attempt, nil); got != expected {
			t.Errorf("backoff(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Jitter:      true,
	}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		d := p.backoff(1, rng)
		lo := 200 * time.Millisecond
		hi := lo + p.BaseDelay
		if d < lo || d >= hi {
			t.Fatalf("jittered backoff %v outside [%v, %v)", d, lo, hi)
		}
	}
}

func TestBackoffZeroBase(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	if d := p.backoff(0, nil); d != 0 {
		t.Errorf("expected zero delay for zero base, got %v", d)
	}
}
