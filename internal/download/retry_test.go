package download

import (
	"testing"
	"time"
)

func TestRetryPolicyExhausted(t *testing.T) {
	tests := []struct {
		max      int
		attempts int
		want     bool
	}{
		{0, 1, false},
		{0, 1000, false},
		{3, 2, false},
		{3, 3, true},
		{3, 4, true},
		{1, 1, true},
	}

	for _, tt := range tests {
		p := RetryPolicy{MaxAttempts: tt.max}
		if got := p.Exhausted(tt.attempts); got != tt.want {
			t.Errorf("RetryPolicy{MaxAttempts: %d}.Exhausted(%d) = %v, want %v", tt.max, tt.attempts, got, tt.want)
		}
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{
		Cooldown:    100 * time.Millisecond,
		Exponent:    2,
		MaxCooldown: time.Second,
	}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{60, time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempts); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestRetryPolicyDelayEdgeCases(t *testing.T) {
	if got := (RetryPolicy{}).Delay(3); got != 0 {
		t.Errorf("zero policy Delay = %v, want 0", got)
	}

	flat := RetryPolicy{Cooldown: time.Second, Exponent: 0.5}
	if got := flat.Delay(4); got != time.Second {
		t.Errorf("exponent below 1 Delay = %v, want 1s", got)
	}

	uncapped := RetryPolicy{Cooldown: time.Second, Exponent: 10}
	if got := uncapped.Delay(100); got <= 0 {
		t.Errorf("uncapped Delay overflowed to %v", got)
	}
}
