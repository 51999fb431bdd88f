// Package abr implements the pluggable adaptive-bitrate decision rules.
//
// A Rule chooses one representation from the target adaptation set given
// the current buffer snapshot and throughput estimate. The rule set is
// closed: throughput, buffer-occupancy, and hybrid, selected once at
// session configuration time.
package abr

import (
	"fmt"
	"time"

	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/mpd"
)

// Context bundles everything a rule may consult for one decision. It is
// assembled fresh by the scheduler every cycle.
type Context struct {
	// Buffer is the buffer state at decision time.
	Buffer buffer.Snapshot

	// Throughput is the current bandwidth estimate in bits per second.
	// Valid only when ThroughputKnown is true; before the first download
	// sample it is unknown and rules must treat that as a legitimate
	// input state, not a failure.
	Throughput      float64
	ThroughputKnown bool

	// Previous is the representation chosen for the previous segment,
	// nil on the first cycle. Used for equal-bitrate tie-breaking.
	Previous *mpd.Representation

	// AdaptationSet is the target set. The chosen representation must
	// belong to it.
	AdaptationSet *mpd.AdaptationSet
}

// Rule is the single decision capability all algorithms implement.
type Rule interface {
	// Name identifies the algorithm in logs and reports.
	Name() string

	// Decide returns the representation to download next. It never
	// returns a representation outside ctx.AdaptationSet.
	Decide(ctx Context) (*mpd.Representation, error)
}

var _ Rule = (*ThroughputRule)(nil)
var _ Rule = (*BufferRule)(nil)
var _ Rule = (*HybridRule)(nil)

// Decision is the immutable record of one choice, archived by the
// statistics recorder and consumed by the scheduler.
type Decision struct {
	AdaptationSetID string
	SegmentIndex    int
	Representation  *mpd.Representation
	DecidedAt       time.Time
}

// Config selects and tunes the decision rule.
type Config struct {
	// Algorithm is "throughput", "buffer", or "hybrid".
	Algorithm string

	// SafetyMargin scales the throughput estimate before comparing
	// against declared bitrates. Must be in (0, 1).
	SafetyMargin float64

	// Reservoir is the buffer level below which the buffer rule pins the
	// lowest bitrate.
	Reservoir time.Duration

	// Cushion is the buffer range above the reservoir over which the
	// buffer rule scales up to the cap. Zero defaults to 2×Reservoir.
	Cushion time.Duration

	// CapBitrate bounds the buffer rule's target, 0 = no cap.
	CapBitrate int64
}

// Algorithm name constants.
const (
	AlgorithmThroughput = "throughput"
	AlgorithmBuffer     = "buffer"
	AlgorithmHybrid     = "hybrid"
)

// NewRule builds the configured rule. Unknown algorithm names fail; the
// set of rules is closed by design.
func NewRule(cfg Config) (Rule, error) {
	cushion := cfg.Cushion
	if cushion <= 0 {
		cushion = 2 * cfg.Reservoir
	}
	switch cfg.Algorithm {
	case AlgorithmThroughput:
		return &ThroughputRule{Margin: cfg.SafetyMargin}, nil
	case AlgorithmBuffer:
		return &BufferRule{Reservoir: cfg.Reservoir, Cushion: cushion, Cap: cfg.CapBitrate}, nil
	case AlgorithmHybrid:
		return &HybridRule{
			Throughput: ThroughputRule{Margin: cfg.SafetyMargin},
			Buffer:     BufferRule{Reservoir: cfg.Reservoir, Cushion: cushion, Cap: cfg.CapBitrate},
		}, nil
	default:
		return nil, fmt.Errorf("abr: unknown algorithm %q", cfg.Algorithm)
	}
}

// pick returns the highest-bitrate representation not exceeding maxBitrate.
// When several representations share that bitrate, the previous choice wins
// to minimize switches. Falls back to the lowest representation when none
// qualify. Returns nil only for an empty set.
func pick(set *mpd.AdaptationSet, maxBitrate int64, previous *mpd.Representation) *mpd.Representation {
	reps := set.Representations
	if len(reps) == 0 {
		return nil
	}

	// Representations are sorted by bitrate ascending.
	best := -1
	for i, r := range reps {
		if r.Bitrate <= maxBitrate {
			best = i
		}
	}
	if best < 0 {
		return set.Lowest()
	}

	chosen := reps[best]
	if previous != nil && previous.Bitrate == chosen.Bitrate && set.Contains(previous) {
		return set.ByID(previous.ID)
	}
	return chosen
}
