package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig holds the configuration for segment retry backoff.
type BackoffConfig struct {
	Initial    time.Duration // delay before the first retry
	Max        time.Duration // cap on the delay
	Multiplier float64       // growth per attempt
	JitterPct  float64       // jitter as a fraction of the delay (0.4 = ±20%)
}

// DefaultBackoffConfig returns sensible defaults for segment retries.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    500 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2.0,
		JitterPct:  0.4,
	}
}

// Backoff calculates exponential retry delays with deterministic jitter.
// Each instance is seeded, so a fixed seed reproduces the same delays.
type Backoff struct {
	config   BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff calculator with a deterministic seed.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next delay and increments the attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.Calculate()
	b.attempts++
	return delay
}

// Calculate returns the current delay without incrementing attempts.
func (b *Backoff) Calculate() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))

	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	if b.config.JitterPct > 0 {
		jitterRange := delay * b.config.JitterPct
		delay += jitterRange*b.rng.Float64() - jitterRange/2
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset resets the attempt counter to zero.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the current attempt count.
func (b *Backoff) Attempts() int {
	return b.attempts
}
