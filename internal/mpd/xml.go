// Package mpd parses DASH Media Presentation Description (MPD) documents
// and models the manifest for the emulator: periods, adaptation sets,
// representations, and per-representation segment timelines.
//
// Parsing is two-phase: the raw XML is decoded into the document types in
// this file, then built into the validated model in model.go. Segment
// addressing (explicit SegmentList or SegmentTemplate) is resolved lazily
// so open-ended live timelines never materialize eagerly.
package mpd

import "encoding/xml"

// http://mpeg.chiariglione.org/standards/mpeg-dash
// https://www.brendanlong.com/the-structure-of-an-mpeg-dash-mpd.html

// mpdXML is the root XML element of an MPD document.
type mpdXML struct {
	XMLName                   xml.Name    `xml:"MPD"`
	Type                      string      `xml:"type,attr"` // "static" or "dynamic"
	Profiles                  string      `xml:"profiles,attr"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"` // PT0H9M56.46S
	MinBufferTime             string      `xml:"minBufferTime,attr"`
	MinimumUpdatePeriod       string      `xml:"minimumUpdatePeriod,attr"`
	BaseURL                   string      `xml:"BaseURL"`
	Periods                   []periodXML `xml:"Period"`
}

type periodXML struct {
	ID             string             `xml:"id,attr"`
	Start          string             `xml:"start,attr"`
	Duration       string             `xml:"duration,attr"`
	BaseURL        string             `xml:"BaseURL"`
	AdaptationSets []adaptationSetXML `xml:"AdaptationSet"`
}

type adaptationSetXML struct {
	ID               string              `xml:"id,attr"`
	ContentType      string              `xml:"contentType,attr"`
	MimeType         string              `xml:"mimeType,attr"`
	Lang             string              `xml:"lang,attr"`
	SegmentAlignment bool                `xml:"segmentAlignment,attr"`
	SegmentTemplate  *segmentTemplateXML `xml:"SegmentTemplate"`
	Representations  []representationXML `xml:"Representation"`
}

type representationXML struct {
	ID              string              `xml:"id,attr"`
	Bandwidth       int64               `xml:"bandwidth,attr"`
	Width           int                 `xml:"width,attr"`
	Height          int                 `xml:"height,attr"`
	Codecs          string              `xml:"codecs,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	FrameRate       string              `xml:"frameRate,attr"`
	BaseURL         string              `xml:"BaseURL"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
	SegmentList     *segmentListXML     `xml:"SegmentList"`
}

type segmentTemplateXML struct {
	Timescale      int64               `xml:"timescale,attr"`
	Duration       int64               `xml:"duration,attr"`
	StartNumber    *int64              `xml:"startNumber,attr"`
	Media          string              `xml:"media,attr"`
	Initialization string              `xml:"initialization,attr"`
	Timeline       *segmentTimelineXML `xml:"SegmentTimeline"`
}

type segmentTimelineXML struct {
	Entries []timelineEntryXML `xml:"S"`
}

// timelineEntryXML is one <S> element: a run of (R+1) segments of duration D
// starting at media time T (T optional, defaults to end of previous run).
type timelineEntryXML struct {
	T *int64 `xml:"t,attr"`
	D int64  `xml:"d,attr"`
	R int64  `xml:"r,attr"`
}

type segmentListXML struct {
	Timescale      int64           `xml:"timescale,attr"`
	Duration       int64           `xml:"duration,attr"`
	Initialization *segmentURLXML  `xml:"Initialization"`
	SegmentURLs    []segmentURLXML `xml:"SegmentURL"`
}

type segmentURLXML struct {
	Media      string `xml:"media,attr"`
	SourceURL  string `xml:"sourceURL,attr"`
	MediaRange string `xml:"mediaRange,attr"`
}
