package abr

import (
	"errors"

	"github.com/streamtools/go-dash-emulator/internal/mpd"
)

// ErrEmptyAdaptationSet is returned when the target set has no
// representations. This indicates a manifest the parser should have
// rejected; it is not an expected runtime state.
var ErrEmptyAdaptationSet = errors.New("abr: adaptation set has no representations")

// ThroughputRule chooses the highest-bitrate representation whose declared
// bitrate fits under the throughput estimate scaled by a safety margin.
// Unknown throughput or no qualifying representation falls back to the
// lowest bitrate.
type ThroughputRule struct {
	// Margin scales the estimate, e.g. 0.9 leaves 10% headroom.
	Margin float64
}

func (r *ThroughputRule) Name() string { return AlgorithmThroughput }

func (r *ThroughputRule) Decide(ctx Context) (*mpd.Representation, error) {
	if len(ctx.AdaptationSet.Representations) == 0 {
		return nil, ErrEmptyAdaptationSet
	}
	if !ctx.ThroughputKnown {
		return ctx.AdaptationSet.Lowest(), nil
	}
	ceiling := int64(ctx.Throughput * r.Margin)
	return pick(ctx.AdaptationSet, ceiling, ctx.Previous), nil
}
