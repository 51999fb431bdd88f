// Package throughput estimates available network bandwidth from completed
// segment downloads.
//
// The estimator keeps a bounded sliding window of download samples and
// computes a byte-weighted harmonic mean with exponential time decay.
// The harmonic mean avoids the optimistic bias of an arithmetic mean:
// long throughput-limited transfers dominate, short cache-warmed bursts
// do not. The estimate is fully deterministic for a given sample set —
// decay is computed against the newest sample's timestamp, never against
// the wall clock.
package throughput

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrInsufficientData is returned by Estimate before any sample has been
// observed. Callers treat it as "estimate unknown", not as a failure.
var ErrInsufficientData = errors.New("throughput: no download samples observed yet")

// Sample is one completed segment download. Immutable once observed.
type Sample struct {
	Bytes     int64
	Elapsed   time.Duration
	Timestamp time.Time
}

// BitsPerSecond returns the raw rate of this single sample.
func (s Sample) BitsPerSecond() float64 {
	return float64(s.Bytes) * 8 / s.Elapsed.Seconds()
}

// Config holds estimator tuning options.
type Config struct {
	// WindowSize is the number of samples retained. Oldest samples are
	// evicted first.
	WindowSize int

	// HalfLife is the exponential decay applied to older samples: a
	// sample HalfLife older than the newest counts half as much.
	// Zero disables decay.
	HalfLife time.Duration
}

// DefaultConfig returns the tuning used when the session config does not
// override it.
func DefaultConfig() Config {
	return Config{
		WindowSize: 10,
		HalfLife:   8 * time.Second,
	}
}

// Estimator maintains the sliding sample window.
//
// Within one session the scheduler is the only writer, but snapshots are
// read from outside the loop (TUI, metrics), so access is guarded.
type Estimator struct {
	mu      sync.Mutex
	cfg     Config
	samples []Sample
}

// New creates an Estimator. Non-positive WindowSize falls back to the
// default.
func New(cfg Config) *Estimator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.HalfLife < 0 {
		cfg.HalfLife = 0
	}
	return &Estimator{
		cfg:     cfg,
		samples: make([]Sample, 0, cfg.WindowSize),
	}
}

// Observe appends a sample to the window, evicting the oldest entry when
// capacity is exceeded. Non-positive bytes or elapsed time is a programmer
// error: the transport reports bytes actually transferred and a measured
// elapsed time, both strictly positive for a completed download.
func (e *Estimator) Observe(s Sample) {
	if s.Bytes <= 0 || s.Elapsed <= 0 {
		panic(fmt.Sprintf("throughput: invalid sample bytes=%d elapsed=%v", s.Bytes, s.Elapsed))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) == e.cfg.WindowSize {
		copy(e.samples, e.samples[1:])
		e.samples = e.samples[:len(e.samples)-1]
	}
	e.samples = append(e.samples, s)
}

// Estimate returns the current bandwidth estimate in bits per second, or
// ErrInsufficientData before the first sample.
func (e *Estimator) Estimate() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.samples) == 0 {
		return 0, ErrInsufficientData
	}

	// Decay reference: the newest timestamp in the window. Time-based,
	// not order-based, so permutations of the same samples agree.
	var newest time.Time
	for _, s := range e.samples {
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}

	// Byte-weighted harmonic mean: estimate = sum(w) / sum(w/rate).
	var weightSum, invSum float64
	for _, s := range e.samples {
		w := float64(s.Bytes)
		if e.cfg.HalfLife > 0 {
			age := newest.Sub(s.Timestamp).Seconds()
			w *= math.Exp2(-age / e.cfg.HalfLife.Seconds())
		}
		weightSum += w
		invSum += w / s.BitsPerSecond()
	}
	if invSum == 0 {
		return 0, ErrInsufficientData
	}
	return weightSum / invSum, nil
}

// Len returns the number of samples currently in the window.
func (e *Estimator) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}

// Reset discards all samples.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = e.samples[:0]
}
