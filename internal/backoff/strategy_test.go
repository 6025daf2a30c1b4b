package backoff

import (
	"testing"
	"time"
)

func TestLinearStrategy(t *testing.T) {
	strategy := LinearStrategy{}

	tests := []struct {
		name     string
		attempt  int
		base     time.Duration
		max      time.Duration
		expected time.Duration
	}{
		{"attempt 1", 1, 100 * time.Millisecond, 5 * time.Second, 100 * time.Millisecond},
		{"attempt 2", 2, 100 * time.Millisecond, 5 * time.Second, 200 * time.Millisecond},
		{"attempt 3", 3, 100 * time.Millisecond, 5 * time.Second, 300 * time.Millisecond},
		{"attempt 0 treated as 1", 0, 100 * time.Millisecond, 5 * time.Second, 100 * time.Millisecond},
		{"capped", 100, 100 * time.Millisecond, time.Second, time.Second},
		{"no cap", 100, 100 * time.Millisecond, 0, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Calculate(tt.attempt, tt.base, tt.max, 0)
			if result != tt.expected {
				t.Errorf("Calculate(%d, %v, %v) = %v, want %v",
					tt.attempt, tt.base, tt.max, result, tt.expected)
			}
		})
	}
}

func TestExponentialStrategy(t *testing.T) {
	strategy := ExponentialStrategy{}

	tests := []struct {
		name       string
		attempt    int
		base       time.Duration
		max        time.Duration
		multiplier float64
		expected   time.Duration
	}{
		{"attempt 1", 1, 100 * time.Millisecond, 5 * time.Second, 2.0, 100 * time.Millisecond},
		{"attempt 2", 2, 100 * time.Millisecond, 5 * time.Second, 2.0, 200 * time.Millisecond},
		{"attempt 3", 3, 100 * time.Millisecond, 5 * time.Second, 2.0, 400 * time.Millisecond},
		{"multiplier 3", 3, 100 * time.Millisecond, 5 * time.Second, 3.0, 900 * time.Millisecond},
		{"capped", 10, 100 * time.Millisecond, time.Second, 2.0, time.Second},
		{"invalid multiplier defaults to 2", 2, 100 * time.Millisecond, 5 * time.Second, 0, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Calculate(tt.attempt, tt.base, tt.max, tt.multiplier)
			if result != tt.expected {
				t.Errorf("Calculate(%d, %v, %v, %f) = %v, want %v",
					tt.attempt, tt.base, tt.max, tt.multiplier, result, tt.expected)
			}
		})
	}
}

func TestExponentialStrategyOverflow(t *testing.T) {
	result := ExponentialStrategy{}.Calculate(10000, time.Second, time.Minute, 10)
	if result != time.Minute {
		t.Errorf("Expected cap of 1m on overflow, got %v", result)
	}
}
