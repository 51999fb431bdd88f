package mpd

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timeline resolves segment indexes to concrete segments on demand.
// Implementations must be cheap per call: live timelines are unbounded and
// are never materialized eagerly.
type timeline interface {
	// segmentAt resolves segment i, or ErrSegmentOutOfRange.
	segmentAt(i int) (Segment, error)

	// count returns the number of known segments and whether the timeline
	// is open-ended (live).
	count() (n int, open bool)
}

// listTimeline addresses segments through an explicit <SegmentList>.
type listTimeline struct {
	repID    string
	duration time.Duration // nominal duration per segment

	urls   []string
	ranges []string // parallel to urls, "" = none
}

func (t *listTimeline) count() (int, bool) { return len(t.urls), false }

func (t *listTimeline) segmentAt(i int) (Segment, error) {
	if i < 0 || i >= len(t.urls) {
		return Segment{}, ErrSegmentOutOfRange
	}
	return Segment{
		RepresentationID: t.repID,
		Index:            i,
		URL:              t.urls[i],
		ByteRange:        t.ranges[i],
		Start:            time.Duration(i) * t.duration,
		Duration:         t.duration,
	}, nil
}

// templateTimeline addresses segments through a <SegmentTemplate> with a
// fixed nominal duration: media URL with $Number$/$Time$ substitution,
// startNumber offset, and an optional <SegmentTimeline> correcting the
// per-segment durations.
type templateTimeline struct {
	repID     string
	bandwidth int64
	media     string
	baseURL   string

	timescale   int64
	segDuration int64 // in timescale units, used when runs is empty
	startNumber int64

	// runs is the flattened SegmentTimeline: start/duration pairs in
	// timescale units. Empty when the template declares a flat duration.
	runs []timelineRun

	// total is the number of segments, -1 for open-ended live timelines.
	total int
}

type timelineRun struct {
	start    int64 // media time of first segment in run
	duration int64 // per-segment duration
	repeat   int64 // number of segments in run is repeat+1
}

func (t *templateTimeline) count() (int, bool) {
	if t.total < 0 {
		if len(t.runs) == 0 {
			// Flat-duration live template: the document advertises no
			// timeline, so every index is addressable on request.
			return math.MaxInt, true
		}
		return t.known(), true
	}
	return t.total, false
}

// known returns the number of segments currently resolvable on an
// open-ended timeline.
func (t *templateTimeline) known() int {
	n := 0
	for _, r := range t.runs {
		n += int(r.repeat) + 1
	}
	return n
}

func (t *templateTimeline) segmentAt(i int) (Segment, error) {
	if i < 0 {
		return Segment{}, ErrSegmentOutOfRange
	}

	var startUnits, durUnits int64
	if len(t.runs) > 0 {
		idx := int64(i)
		found := false
		for _, r := range t.runs {
			n := r.repeat + 1
			if idx < n {
				startUnits = r.start + idx*r.duration
				durUnits = r.duration
				found = true
				break
			}
			idx -= n
		}
		if !found {
			return Segment{}, ErrSegmentOutOfRange
		}
	} else {
		if t.total >= 0 && i >= t.total {
			return Segment{}, ErrSegmentOutOfRange
		}
		startUnits = int64(i) * t.segDuration
		durUnits = t.segDuration
	}

	url := expandTemplate(t.media, t.repID, t.bandwidth, t.startNumber+int64(i), startUnits)
	return Segment{
		RepresentationID: t.repID,
		Index:            i,
		URL:              resolveURL(t.baseURL, url),
		Start:            unitsToDuration(startUnits, t.timescale),
		Duration:         unitsToDuration(durUnits, t.timescale),
	}, nil
}

func unitsToDuration(units, timescale int64) time.Duration {
	if timescale <= 0 {
		timescale = 1
	}
	return time.Duration(float64(units) / float64(timescale) * float64(time.Second))
}

// expandTemplate substitutes the standard MPD template identifiers.
// Width formatting ($Number%05d$) is supported for Number and Time.
func expandTemplate(media, repID string, bandwidth, number, mediaTime int64) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(media, '$')
		if open < 0 {
			b.WriteString(media)
			return b.String()
		}
		b.WriteString(media[:open])
		rest := media[open+1:]
		close := strings.IndexByte(rest, '$')
		if close < 0 {
			// Unterminated identifier, emit literally.
			b.WriteString(media[open:])
			return b.String()
		}
		ident := rest[:close]
		media = rest[close+1:]

		name, format := ident, ""
		if pct := strings.IndexByte(ident, '%'); pct >= 0 {
			name, format = ident[:pct], ident[pct:]
		}

		switch name {
		case "": // "$$" escapes a literal dollar sign
			b.WriteByte('$')
		case "RepresentationID":
			b.WriteString(repID)
		case "Bandwidth":
			b.WriteString(formatTemplateInt(bandwidth, format))
		case "Number":
			b.WriteString(formatTemplateInt(number, format))
		case "Time":
			b.WriteString(formatTemplateInt(mediaTime, format))
		default:
			// Unknown identifier, emit literally so the failure is visible
			// in the requested URL rather than silently swallowed.
			b.WriteByte('$')
			b.WriteString(ident)
			b.WriteByte('$')
		}
	}
}

func formatTemplateInt(v int64, format string) string {
	if format == "" {
		return strconv.FormatInt(v, 10)
	}
	// MPD template formats are of the form "%0[width]d".
	width := 0
	f := strings.TrimPrefix(format, "%")
	f = strings.TrimSuffix(f, "d")
	f = strings.TrimPrefix(f, "0")
	if f != "" {
		if w, err := strconv.Atoi(f); err == nil {
			width = w
		}
	}
	s := strconv.FormatInt(v, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// resolveURL joins a segment reference against its base URL. References
// that are already absolute are returned unchanged.
func resolveURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if strings.Contains(ref, "://") || base == "" {
		return ref
	}
	if strings.HasSuffix(base, "/") {
		return base + ref
	}
	// Drop the last path element of the base, as a browser would.
	if i := strings.LastIndexByte(base, '/'); i >= 0 && strings.Count(base, "/") > 2 {
		return base[:i+1] + ref
	}
	return base + "/" + ref
}
