package backoff

import (
	"testing"
	"time"
)

func TestCalculatorJitterBounds(t *testing.T) {
	calc := Linear(100*time.Millisecond, time.Minute)

	for attempt := 1; attempt <= 5; attempt++ {
		for i := 0; i < 50; i++ {
			d := calc.Delay(attempt)
			base := calc.Base(attempt)
			if d < base {
				t.Fatalf("Delay(%d) = %v below base %v", attempt, d, base)
			}
			if d >= base+10*time.Millisecond {
				t.Fatalf("Delay(%d) = %v exceeds jitter window", attempt, d)
			}
		}
	}
}

func TestCalculatorJitterWindow(t *testing.T) {
	tests := []struct {
		base     time.Duration
		expected time.Duration
	}{
		{100 * time.Millisecond, 10 * time.Millisecond},
		{5 * time.Second, 500 * time.Millisecond},
		{30 * time.Second, MaxJitter},
		{0, 0},
	}

	for _, tt := range tests {
		calc := Exponential(tt.base, time.Hour, 2)
		if got := calc.JitterWindow(); got != tt.expected {
			t.Errorf("JitterWindow() with base %v = %v, want %v", tt.base, got, tt.expected)
		}
	}
}

func TestCalculatorDeterministicJitter(t *testing.T) {
	calc := Exponential(time.Second, time.Minute, 2)
	calc.rand = func() float64 { return 0.5 }

	if got := calc.Delay(2); got != 2*time.Second+50*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 2.05s", got)
	}
}

func TestCalculatorRespectsCapWithJitter(t *testing.T) {
	calc := Linear(time.Second, 2*time.Second)
	calc.rand = func() float64 { return 0.99 }

	if got := calc.Delay(5); got != 2*time.Second {
		t.Errorf("Delay(5) = %v, want cap 2s", got)
	}
}

func TestNewCalculatorDefaultsStrategy(t *testing.T) {
	calc := NewCalculator(nil, time.Second, time.Minute, 2)
	if _, ok := calc.Strategy().(ExponentialStrategy); !ok {
		t.Errorf("Expected ExponentialStrategy default, got %T", calc.Strategy())
	}
}
