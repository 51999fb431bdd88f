package mpd

import (
	"fmt"
	"time"
)

// ManifestError reports a malformed or unsupported manifest. It is fatal:
// a session must not start from a manifest that failed to parse.
type ManifestError struct {
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("manifest: %s", e.Reason)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// ErrSegmentOutOfRange is returned by SegmentAt for indexes past the end of
// a finite timeline, or not yet available on a live timeline.
var ErrSegmentOutOfRange = &ManifestError{Reason: "segment index out of range"}

// Manifest is the parsed MPD document. Built once at session start and,
// for dynamic manifests, refreshed via Merge.
type Manifest struct {
	// Type is "static" (on-demand) or "dynamic" (live).
	Type string

	// MediaPresentationDuration is 0 for dynamic manifests.
	MediaPresentationDuration time.Duration
	MinBufferTime             time.Duration
	MinimumUpdatePeriod       time.Duration

	BaseURL string
	Periods []*Period
}

// Live reports whether the manifest describes a live (dynamic) presentation.
func (m *Manifest) Live() bool { return m.Type == "dynamic" }

// TotalDuration returns the total media duration and whether it is known.
// Dynamic manifests without a declared duration return (0, false).
func (m *Manifest) TotalDuration() (time.Duration, bool) {
	if m.MediaPresentationDuration > 0 {
		return m.MediaPresentationDuration, true
	}
	return 0, false
}

// AdaptationSets returns all adaptation sets across all periods, in
// document order.
func (m *Manifest) AdaptationSets() []*AdaptationSet {
	var sets []*AdaptationSet
	for _, p := range m.Periods {
		sets = append(sets, p.AdaptationSets...)
	}
	return sets
}

// Period is one timeline span of the presentation.
type Period struct {
	ID             string
	Start          time.Duration
	Duration       time.Duration // 0 = unbounded (live)
	AdaptationSets []*AdaptationSet
}

// AdaptationSet groups interchangeable representations of one media type.
// Representations are kept sorted by bitrate ascending.
type AdaptationSet struct {
	ID          string
	ContentType string // "video", "audio", ...

	Representations []*Representation
}

// Lowest returns the lowest-bitrate representation, or nil if empty.
func (as *AdaptationSet) Lowest() *Representation {
	if len(as.Representations) == 0 {
		return nil
	}
	return as.Representations[0]
}

// Highest returns the highest-bitrate representation, or nil if empty.
func (as *AdaptationSet) Highest() *Representation {
	if len(as.Representations) == 0 {
		return nil
	}
	return as.Representations[len(as.Representations)-1]
}

// Contains reports whether rep belongs to this adaptation set.
func (as *AdaptationSet) Contains(rep *Representation) bool {
	for _, r := range as.Representations {
		if r == rep || r.ID == rep.ID {
			return true
		}
	}
	return false
}

// ByID returns the representation with the given id, or nil.
func (as *AdaptationSet) ByID(id string) *Representation {
	for _, r := range as.Representations {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Representation is one quality variant. The descriptor fields are immutable
// once parsed; only the timeline grows on live refresh.
type Representation struct {
	ID      string
	Bitrate int64 // declared bits per second
	Width   int
	Height  int
	Codecs  string

	// InitURL is the initialization segment URL, empty if none.
	InitURL string

	timeline timeline
}

// SegmentCount returns the number of addressable segments. open is true for
// open-ended live timelines, in which case n is the count currently known;
// live timelines addressed by a flat segment duration have no advertised
// count and report a maximal n, with every index resolvable by SegmentAt.
func (r *Representation) SegmentCount() (n int, open bool) {
	return r.timeline.count()
}

// SegmentAt resolves segment i (0-based) to its time range and URL.
// Returns ErrSegmentOutOfRange past the end of the timeline.
func (r *Representation) SegmentAt(i int) (Segment, error) {
	return r.timeline.segmentAt(i)
}

// Segment is one addressable media segment of a representation.
type Segment struct {
	RepresentationID string
	Index            int

	URL       string
	ByteRange string // "first-last" bytes, empty = whole resource

	Start    time.Duration
	Duration time.Duration

	// Size is the declared byte size, 0 when unknown until downloaded.
	Size int64
}
