package backoff

import (
	"math/rand"
	"time"
)

// MaxJitter bounds the random addition applied to every delay.
const MaxJitter = time.Second

// Calculator turns an attempt number into a concrete, jittered retry delay.
type Calculator struct {
	strategy   Strategy
	base       time.Duration
	maxDelay   time.Duration
	multiplier float64
	rand       func() float64
}

// NewCalculator creates a calculator for the given strategy and bounds.
func NewCalculator(strategy Strategy, base, maxDelay time.Duration, multiplier float64) *Calculator {
	if strategy == nil {
		strategy = ExponentialStrategy{}
	}
	return &Calculator{
		strategy:   strategy,
		base:       base,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		rand:       rand.Float64,
	}
}

// Base returns the un-jittered delay for attempt.
func (c *Calculator) Base(attempt int) time.Duration {
	return c.strategy.Calculate(attempt, c.base, c.maxDelay, c.multiplier)
}

// Delay returns the delay for attempt including jitter. Jitter is drawn from
// [0, min(base*0.1, MaxJitter)) and never pushes the delay past the cap.
func (c *Calculator) Delay(attempt int) time.Duration {
	d := c.Base(attempt)

	if window := c.JitterWindow(); window > 0 {
		d += time.Duration(float64(window) * c.rand())
	}
	if c.maxDelay > 0 && d > c.maxDelay {
		d = c.maxDelay
	}
	return d
}

// JitterWindow is the exclusive upper bound of the random addition.
func (c *Calculator) JitterWindow() time.Duration {
	window := c.base / 10
	if window > MaxJitter {
		window = MaxJitter
	}
	return window
}

// Strategy returns the strategy in use.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}

// Linear returns a calculator using LinearStrategy.
func Linear(base, maxDelay time.Duration) *Calculator {
	return NewCalculator(LinearStrategy{}, base, maxDelay, 1)
}

// Exponential returns a calculator using ExponentialStrategy.
func Exponential(base, maxDelay time.Duration, multiplier float64) *Calculator {
	return NewCalculator(ExponentialStrategy{}, base, maxDelay, multiplier)
}
