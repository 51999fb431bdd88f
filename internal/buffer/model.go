// Package buffer simulates a player's playout buffer and playback clock.
//
// The model is a small state machine driven by the scheduler: Enqueue adds
// downloaded media duration, Advance drains it by wall-clock elapsed time.
// Stall accounting is exact: stall duration is the sum of wall-clock spans
// spent in the Stalled state, independent of download latency jitter.
package buffer

import (
	"fmt"
	"sync"
	"time"
)

// State is the playback state.
type State int

const (
	// PreStart: playback has not begun; the buffer is filling toward the
	// startup threshold.
	PreStart State = iota

	// Playing: the playback clock advances and drains the buffer.
	Playing

	// Stalled: the buffer ran dry after playback started.
	Stalled

	// Ended: the playback clock reached the total media duration.
	Ended
)

func (s State) String() string {
	switch s {
	case PreStart:
		return "pre-start"
	case Playing:
		return "playing"
	case Stalled:
		return "stalled"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is an immutable view of the buffer at one instant.
type Snapshot struct {
	State         State
	Level         time.Duration // buffered media duration, never negative
	PlaybackTime  time.Duration // simulated playback position
	StallCount    int
	StallDuration time.Duration
}

// Stalled reports whether the snapshot was taken in the Stalled state.
func (s Snapshot) Stalled() bool { return s.State == Stalled }

// Config holds buffer model options.
type Config struct {
	// StartupThreshold is the buffered duration required before playback
	// begins.
	StartupThreshold time.Duration

	// TotalDuration is the total media duration for finite manifests,
	// 0 when unbounded (live).
	TotalDuration time.Duration
}

// Model owns the buffer state. The scheduler is the only writer; Snapshot
// may be read from outside the loop.
type Model struct {
	mu  sync.Mutex
	cfg Config

	state    State
	level    time.Duration
	playback time.Duration

	stallCount    int
	stallDuration time.Duration
}

// New creates a buffer model in the PreStart state.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// Enqueue adds downloaded media duration to the buffer. In PreStart,
// reaching the startup threshold starts playback. In Stalled, any refill
// above zero resumes playback. A non-positive duration is a programmer
// error: segment durations come from the manifest, which rejects them at
// parse time.
func (m *Model) Enqueue(d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("buffer: non-positive segment duration %v", d))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Ended {
		return
	}
	m.level += d

	switch m.state {
	case PreStart:
		if m.level >= m.cfg.StartupThreshold {
			m.state = Playing
		}
	case Stalled:
		m.state = Playing
	}
}

// Advance moves the simulation forward by elapsed wall-clock time. While
// Playing it drains the buffer and advances the playback clock; if the
// buffer runs dry mid-span the model transitions to Stalled and the rest
// of the span counts as stall time. While Stalled the whole span counts
// as stall time. PreStart and Ended spans drain nothing.
func (m *Model) Advance(elapsed time.Duration) {
	if elapsed < 0 {
		panic(fmt.Sprintf("buffer: negative elapsed %v", elapsed))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Playing:
		drained := elapsed
		if drained > m.level {
			drained = m.level
		}
		m.level -= drained
		m.playback += drained

		if m.cfg.TotalDuration > 0 && m.playback >= m.cfg.TotalDuration {
			m.state = Ended
			return
		}
		if remainder := elapsed - drained; remainder > 0 {
			m.state = Stalled
			m.stallCount++
			m.stallDuration += remainder
		}
	case Stalled:
		m.stallDuration += elapsed
	}
}

// Finish drains any remaining buffered media into the playback clock and
// ends the session. Called by the scheduler once the manifest is exhausted.
func (m *Model) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playback += m.level
	m.level = 0
	m.state = Ended
}

// Snapshot returns the current state.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		State:         m.state,
		Level:         m.level,
		PlaybackTime:  m.playback,
		StallCount:    m.stallCount,
		StallDuration: m.stallDuration,
	}
}
