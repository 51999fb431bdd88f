package abr

import (
	"github.com/streamtools/go-dash-emulator/internal/mpd"
)

// HybridRule prefers the buffer-occupancy choice but caps it by the
// throughput rule's ceiling: of the two candidates, the lower bitrate wins.
type HybridRule struct {
	Throughput ThroughputRule
	Buffer     BufferRule
}

func (r *HybridRule) Name() string { return AlgorithmHybrid }

func (r *HybridRule) Decide(ctx Context) (*mpd.Representation, error) {
	fromBuffer, err := r.Buffer.Decide(ctx)
	if err != nil {
		return nil, err
	}
	if !ctx.ThroughputKnown {
		// No ceiling to apply yet; the buffer rule already handles the
		// cold start conservatively.
		return fromBuffer, nil
	}
	fromThroughput, err := r.Throughput.Decide(ctx)
	if err != nil {
		return nil, err
	}
	if fromThroughput.Bitrate < fromBuffer.Bitrate {
		return fromThroughput, nil
	}
	return fromBuffer, nil
}
