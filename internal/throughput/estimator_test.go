package throughput

import (
	"errors"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func TestEstimate_NoSamples(t *testing.T) {
	e := New(DefaultConfig())

	_, err := e.Estimate()
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Estimate() error = %v, want ErrInsufficientData", err)
	}
}

func TestEstimate_SingleSample(t *testing.T) {
	e := New(DefaultConfig())
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: time.Second, Timestamp: time.Now()})

	got, err := e.Estimate()
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if !almostEqual(got, 8e6) {
		t.Errorf("Estimate() = %g, want 8e6", got)
	}
}

func TestEstimate_HarmonicMean(t *testing.T) {
	// Equal timestamps so decay does not differentiate the samples.
	// 8 Mbps and 2 Mbps at equal byte weight: harmonic mean is 3.2 Mbps,
	// well below the 5 Mbps arithmetic mean.
	e := New(Config{WindowSize: 10, HalfLife: 8 * time.Second})
	now := time.Now()
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 1 * time.Second, Timestamp: now})
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 4 * time.Second, Timestamp: now})

	got, err := e.Estimate()
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if !almostEqual(got, 3.2e6) {
		t.Errorf("Estimate() = %g, want 3.2e6", got)
	}
}

func TestEstimate_DecayFavorsRecent(t *testing.T) {
	// The older 8 Mbps sample is one half-life old: its weight halves and
	// the estimate moves toward the recent 2 Mbps sample.
	e := New(Config{WindowSize: 10, HalfLife: 8 * time.Second})
	t0 := time.Now()
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 1 * time.Second, Timestamp: t0})
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 4 * time.Second, Timestamp: t0.Add(8 * time.Second)})

	got, err := e.Estimate()
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}

	want := 1.5e6 / (0.5e6/8e6 + 1e6/2e6)
	if !almostEqual(got, want) {
		t.Errorf("Estimate() = %g, want %g", got, want)
	}
	if got >= 3.2e6 {
		t.Errorf("Estimate() = %g, want below the undecayed 3.2e6", got)
	}
}

func TestEstimate_DeterministicUnderPermutation(t *testing.T) {
	// Same sample set in different observation orders must agree: the decay
	// reference is the newest timestamp in the window, not arrival order.
	t0 := time.Now()
	samples := []Sample{
		{Bytes: 500_000, Elapsed: 1 * time.Second, Timestamp: t0},
		{Bytes: 1_000_000, Elapsed: 2 * time.Second, Timestamp: t0.Add(4 * time.Second)},
		{Bytes: 750_000, Elapsed: 500 * time.Millisecond, Timestamp: t0.Add(8 * time.Second)},
		{Bytes: 2_000_000, Elapsed: 3 * time.Second, Timestamp: t0.Add(12 * time.Second)},
	}

	forward := New(Config{WindowSize: 10, HalfLife: 8 * time.Second})
	for _, s := range samples {
		forward.Observe(s)
	}
	backward := New(Config{WindowSize: 10, HalfLife: 8 * time.Second})
	for i := len(samples) - 1; i >= 0; i-- {
		backward.Observe(samples[i])
	}

	a, err := forward.Estimate()
	if err != nil {
		t.Fatalf("forward Estimate() error: %v", err)
	}
	b, err := backward.Estimate()
	if err != nil {
		t.Fatalf("backward Estimate() error: %v", err)
	}
	if math.Abs(a-b) > 1e-6*a {
		t.Errorf("permuted estimates disagree: %g vs %g", a, b)
	}
}

func TestObserve_WindowEviction(t *testing.T) {
	e := New(Config{WindowSize: 2})
	now := time.Now()

	// The slow first sample is evicted by the third observation.
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 100 * time.Second, Timestamp: now})
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 1 * time.Second, Timestamp: now})
	e.Observe(Sample{Bytes: 1_000_000, Elapsed: 1 * time.Second, Timestamp: now})

	if e.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", e.Len())
	}

	got, err := e.Estimate()
	if err != nil {
		t.Fatalf("Estimate() error: %v", err)
	}
	if !almostEqual(got, 8e6) {
		t.Errorf("Estimate() = %g, want 8e6 after eviction", got)
	}
}

func TestObserve_InvalidSamplePanics(t *testing.T) {
	testCases := []struct {
		name   string
		sample Sample
	}{
		{"zero bytes", Sample{Bytes: 0, Elapsed: time.Second}},
		{"negative bytes", Sample{Bytes: -1, Elapsed: time.Second}},
		{"zero elapsed", Sample{Bytes: 100, Elapsed: 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Observe did not panic")
				}
			}()
			New(DefaultConfig()).Observe(tc.sample)
		})
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.Observe(Sample{Bytes: 100, Elapsed: time.Second, Timestamp: time.Now()})
	e.Reset()

	if e.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", e.Len())
	}
	if _, err := e.Estimate(); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Estimate() after Reset error = %v, want ErrInsufficientData", err)
	}
}

func TestSample_BitsPerSecond(t *testing.T) {
	s := Sample{Bytes: 250_000, Elapsed: 2 * time.Second}
	if got := s.BitsPerSecond(); !almostEqual(got, 1e6) {
		t.Errorf("BitsPerSecond() = %g, want 1e6", got)
	}
}
