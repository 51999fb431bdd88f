package mpd

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"
)

// Parse decodes and validates an MPD document. The returned manifest is
// ready for scheduling: every representation has a resolved segment
// timeline. Malformed documents and unrecognized segment addressing
// schemes fail with a *ManifestError.
func Parse(raw []byte) (*Manifest, error) {
	return ParseWithBase(raw, "")
}

// ParseWithBase is Parse with an explicit base URL (typically the manifest
// URL) used to resolve relative segment references.
func ParseWithBase(raw []byte, baseURL string) (*Manifest, error) {
	var doc mpdXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &ManifestError{Reason: "malformed XML", Err: err}
	}

	mtype := doc.Type
	if mtype == "" {
		mtype = "static"
	}
	if mtype != "static" && mtype != "dynamic" {
		return nil, &ManifestError{Reason: fmt.Sprintf("unsupported MPD type %q", mtype)}
	}

	total, err := parseISODuration(doc.MediaPresentationDuration)
	if err != nil {
		return nil, &ManifestError{Reason: "mediaPresentationDuration", Err: err}
	}
	minBuffer, err := parseISODuration(doc.MinBufferTime)
	if err != nil {
		return nil, &ManifestError{Reason: "minBufferTime", Err: err}
	}
	updatePeriod, err := parseISODuration(doc.MinimumUpdatePeriod)
	if err != nil {
		return nil, &ManifestError{Reason: "minimumUpdatePeriod", Err: err}
	}
	if mtype == "static" && total <= 0 {
		return nil, &ManifestError{Reason: "static MPD missing mediaPresentationDuration"}
	}

	if doc.BaseURL != "" {
		baseURL = resolveURL(baseURL, doc.BaseURL)
	}

	m := &Manifest{
		Type:                      mtype,
		MediaPresentationDuration: total,
		MinBufferTime:             minBuffer,
		MinimumUpdatePeriod:       updatePeriod,
		BaseURL:                   baseURL,
	}

	if len(doc.Periods) == 0 {
		return nil, &ManifestError{Reason: "no Period elements"}
	}

	for pi, px := range doc.Periods {
		period, err := buildPeriod(px, pi, baseURL, total, mtype == "dynamic")
		if err != nil {
			return nil, err
		}
		m.Periods = append(m.Periods, period)
	}
	return m, nil
}

func buildPeriod(px periodXML, index int, baseURL string, mpdDuration time.Duration, live bool) (*Period, error) {
	start, err := parseISODuration(px.Start)
	if err != nil {
		return nil, &ManifestError{Reason: fmt.Sprintf("Period[%d] start", index), Err: err}
	}
	dur, err := parseISODuration(px.Duration)
	if err != nil {
		return nil, &ManifestError{Reason: fmt.Sprintf("Period[%d] duration", index), Err: err}
	}
	if dur == 0 && !live {
		dur = mpdDuration - start
	}

	id := px.ID
	if id == "" {
		id = fmt.Sprintf("period-%d", index)
	}
	if px.BaseURL != "" {
		baseURL = resolveURL(baseURL, px.BaseURL)
	}

	period := &Period{ID: id, Start: start, Duration: dur}
	if len(px.AdaptationSets) == 0 {
		return nil, &ManifestError{Reason: fmt.Sprintf("Period %q has no AdaptationSet", id)}
	}

	for ai, ax := range px.AdaptationSets {
		as, err := buildAdaptationSet(ax, id, ai, baseURL, dur, live)
		if err != nil {
			return nil, err
		}
		period.AdaptationSets = append(period.AdaptationSets, as)
	}
	return period, nil
}

func buildAdaptationSet(ax adaptationSetXML, periodID string, index int, baseURL string, periodDuration time.Duration, live bool) (*AdaptationSet, error) {
	id := ax.ID
	if id == "" {
		// Synthesized ids carry the period so sets without an id stay
		// distinguishable across periods.
		id = fmt.Sprintf("%s-adaptation-%d", periodID, index)
	}
	contentType := ax.ContentType
	if contentType == "" {
		contentType = contentTypeFromMime(ax.MimeType)
	}

	as := &AdaptationSet{ID: id, ContentType: contentType}
	if len(ax.Representations) == 0 {
		return nil, &ManifestError{Reason: fmt.Sprintf("AdaptationSet %q has no Representation", id)}
	}

	for _, rx := range ax.Representations {
		rep, err := buildRepresentation(rx, ax.SegmentTemplate, baseURL, periodDuration, live)
		if err != nil {
			return nil, err
		}
		as.Representations = append(as.Representations, rep)
	}

	// Total order by bitrate ascending; equal bitrates keep document order
	// so tie-breaking downstream is stable.
	sort.SliceStable(as.Representations, func(i, j int) bool {
		return as.Representations[i].Bitrate < as.Representations[j].Bitrate
	})
	return as, nil
}

func buildRepresentation(rx representationXML, inherited *segmentTemplateXML, baseURL string, periodDuration time.Duration, live bool) (*Representation, error) {
	if rx.ID == "" {
		return nil, &ManifestError{Reason: "Representation missing id"}
	}
	if rx.Bandwidth <= 0 {
		return nil, &ManifestError{Reason: fmt.Sprintf("Representation %q missing bandwidth", rx.ID)}
	}
	if rx.BaseURL != "" {
		baseURL = resolveURL(baseURL, rx.BaseURL)
	}

	rep := &Representation{
		ID:      rx.ID,
		Bitrate: rx.Bandwidth,
		Width:   rx.Width,
		Height:  rx.Height,
		Codecs:  rx.Codecs,
	}

	switch {
	case rx.SegmentList != nil:
		tl, initURL, err := buildListTimeline(rx.SegmentList, rx.ID, baseURL)
		if err != nil {
			return nil, err
		}
		rep.timeline = tl
		rep.InitURL = initURL
	case rx.SegmentTemplate != nil || inherited != nil:
		tmpl := rx.SegmentTemplate
		if tmpl == nil {
			tmpl = inherited
		}
		tl, initURL, err := buildTemplateTimeline(tmpl, rx.ID, rx.Bandwidth, baseURL, periodDuration, live)
		if err != nil {
			return nil, err
		}
		rep.timeline = tl
		rep.InitURL = initURL
	default:
		return nil, &ManifestError{Reason: fmt.Sprintf("Representation %q: no recognized segment addressing", rx.ID)}
	}
	return rep, nil
}

func buildListTimeline(lx *segmentListXML, repID, baseURL string) (timeline, string, error) {
	if len(lx.SegmentURLs) == 0 {
		return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: empty SegmentList", repID)}
	}
	timescale := lx.Timescale
	if timescale <= 0 {
		timescale = 1
	}
	if lx.Duration <= 0 {
		return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: SegmentList missing duration", repID)}
	}

	tl := &listTimeline{
		repID:    repID,
		duration: unitsToDuration(lx.Duration, timescale),
	}
	for _, su := range lx.SegmentURLs {
		ref := su.Media
		if ref == "" {
			ref = su.SourceURL
		}
		tl.urls = append(tl.urls, resolveURL(baseURL, ref))
		tl.ranges = append(tl.ranges, su.MediaRange)
	}

	var initURL string
	if lx.Initialization != nil {
		initURL = resolveURL(baseURL, lx.Initialization.SourceURL)
	}
	return tl, initURL, nil
}

func buildTemplateTimeline(tx *segmentTemplateXML, repID string, bandwidth int64, baseURL string, periodDuration time.Duration, live bool) (timeline, string, error) {
	if tx.Media == "" {
		return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: SegmentTemplate missing media", repID)}
	}
	timescale := tx.Timescale
	if timescale <= 0 {
		timescale = 1
	}
	startNumber := int64(1)
	if tx.StartNumber != nil {
		startNumber = *tx.StartNumber
	}

	tl := &templateTimeline{
		repID:       repID,
		bandwidth:   bandwidth,
		media:       tx.Media,
		baseURL:     baseURL,
		timescale:   timescale,
		startNumber: startNumber,
		total:       -1,
	}

	// A bounded period is complete even in a live presentation; only the
	// live edge stays open-ended.
	open := live && periodDuration <= 0

	if tx.Timeline != nil {
		// Explicit timeline corrections: flatten <S> runs.
		var cursor int64
		for _, e := range tx.Timeline.Entries {
			if e.D <= 0 {
				return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: SegmentTimeline entry with non-positive duration", repID)}
			}
			start := cursor
			if e.T != nil {
				start = *e.T
			}
			repeat := e.R
			if repeat < 0 {
				// "repeat until period end": requires a bounded period.
				if periodDuration <= 0 {
					return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: open repeat without period duration", repID)}
				}
				endUnits := int64(periodDuration.Seconds() * float64(timescale))
				repeat = (endUnits-start)/e.D - 1
				if repeat < 0 {
					repeat = 0
				}
			}
			tl.runs = append(tl.runs, timelineRun{start: start, duration: e.D, repeat: repeat})
			cursor = start + (repeat+1)*e.D
		}
		if open {
			tl.total = -1
		} else {
			tl.total = tl.known()
		}
	} else {
		if tx.Duration <= 0 {
			return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: SegmentTemplate missing duration", repID)}
		}
		tl.segDuration = tx.Duration
		if open {
			tl.total = -1
		} else {
			// Round up: a trailing partial segment is still a segment.
			segDur := unitsToDuration(tx.Duration, timescale)
			n := int((periodDuration + segDur - 1) / segDur)
			if n <= 0 {
				return nil, "", &ManifestError{Reason: fmt.Sprintf("Representation %q: period too short for any segment", repID)}
			}
			tl.total = n
		}
	}

	var initURL string
	if tx.Initialization != "" {
		initURL = resolveURL(baseURL, expandTemplate(tx.Initialization, repID, bandwidth, 0, 0))
	}
	return tl, initURL, nil
}

func contentTypeFromMime(mime string) string {
	switch {
	case len(mime) >= 5 && mime[:5] == "video":
		return "video"
	case len(mime) >= 5 && mime[:5] == "audio":
		return "audio"
	default:
		return mime
	}
}
