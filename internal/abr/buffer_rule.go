package abr

import (
	"time"

	"github.com/streamtools/go-dash-emulator/internal/mpd"
)

// BufferRule maps the current buffer level to a target bitrate. Below the
// reservoir it pins the lowest bitrate; across the cushion above the
// reservoir the target scales linearly up to the cap (or the highest
// available bitrate). The mapping is monotonically non-decreasing in
// buffer level. Throughput is consulted only as an upper bound, so the
// rule never starts a download that cannot complete before a stall.
type BufferRule struct {
	Reservoir time.Duration
	Cushion   time.Duration

	// Cap bounds the target bitrate, 0 = uncapped.
	Cap int64
}

func (r *BufferRule) Name() string { return AlgorithmBuffer }

func (r *BufferRule) Decide(ctx Context) (*mpd.Representation, error) {
	set := ctx.AdaptationSet
	if len(set.Representations) == 0 {
		return nil, ErrEmptyAdaptationSet
	}

	target := r.targetBitrate(ctx.Buffer.Level, set)

	// Upper bound from throughput, without the safety margin: the buffer
	// is the primary signal, the estimate only guards against stalls.
	if ctx.ThroughputKnown && int64(ctx.Throughput) < target {
		target = int64(ctx.Throughput)
	}
	return pick(set, target, ctx.Previous), nil
}

// targetBitrate is the monotone utility function of buffer level.
func (r *BufferRule) targetBitrate(level time.Duration, set *mpd.AdaptationSet) int64 {
	low := set.Lowest().Bitrate
	high := set.Highest().Bitrate
	if r.Cap > 0 && r.Cap < high {
		high = r.Cap
	}

	if level <= r.Reservoir {
		return low
	}
	if r.Cushion <= 0 || level >= r.Reservoir+r.Cushion {
		return high
	}
	frac := float64(level-r.Reservoir) / float64(r.Cushion)
	return low + int64(frac*float64(high-low))
}
