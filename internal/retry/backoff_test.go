package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1600 * time.Millisecond},
	}

	for _, tt := range tests {
		result := ExponentialBackoff(tt.attempt, base)
		if result != tt.expected {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, result, tt.expected)
		}
	}
}

func TestExponentialBackoffClamps(t *testing.T) {
	base := time.Millisecond

	if got := ExponentialBackoff(-3, base); got != base {
		t.Errorf("negative attempt: got %v, want %v", got, base)
	}

	capped := ExponentialBackoff(maxShift, base)
	if got := ExponentialBackoff(1000, base); got != capped {
		t.Errorf("huge attempt: got %v, want cap %v", got, capped)
	}
	if capped <= 0 {
		t.Errorf("cap must stay positive, got %v", capped)
	}
}
